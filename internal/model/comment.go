package model

import (
	"errors"
	"time"
)

const MaxCommentLength = 5000

// Comment represents a comment or a reply on a post. ParentID is nil for
// top-level comments.
type Comment struct {
	ID        int64     `db:"id" json:"id"`
	Content   string    `db:"content" json:"content"`
	PostID    int64     `db:"post_id" json:"postId"`
	AuthorID  int64     `db:"author_id" json:"authorId"`
	ParentID  *int64    `db:"parent_id" json:"parentId"`
	Version   int       `db:"version" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`

	// Populated fields
	Author  *UserSummary `db:"-" json:"author,omitempty"`
	Replies []Comment    `db:"-" json:"replies,omitempty"`
}

// CommentRequest is the body for creating or editing a comment.
type CommentRequest struct {
	Content string `json:"content"`
	Parent  *int64 `json:"parent"`
}

var (
	ErrCommentNotFound     = errors.New("comment not found")
	ErrNotCommentOwner     = errors.New("not comment owner")
	ErrContentRequired     = errors.New("content is required")
	ErrContentTooLong      = errors.New("content too long")
	ErrParentWrongPost     = errors.New("parent comment belongs to another post")
	ErrCommentDeleteDenied = errors.New("not allowed to delete comment")
)
