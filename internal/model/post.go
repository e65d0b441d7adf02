package model

import (
	"errors"
	"strings"
	"time"
)

// Post is an authored article. Title, Content and Category may be empty only
// while IsDraft is set.
type Post struct {
	ID            int64      `db:"id" json:"id"`
	Title         string     `db:"title" json:"title"`
	Slug          *string    `db:"slug" json:"slug"`
	Category      string     `db:"category" json:"category"`
	Content       string     `db:"content" json:"content"`
	Image         *string    `db:"image" json:"image"`
	ImageKey      *string    `db:"image_key" json:"-"`
	AuthorID      int64      `db:"author_id" json:"authorId"`
	IsDraft       bool       `db:"is_draft" json:"isDraft"`
	PublishedAt   *time.Time `db:"published_at" json:"publishedAt"`
	Views         int64      `db:"views" json:"views"`
	LikeCount     int        `db:"like_count" json:"likeCount"`
	BookmarkCount int        `db:"bookmark_count" json:"bookmarkCount"`
	Deleted       bool       `db:"deleted" json:"-"`
	Version       int        `db:"version" json:"-"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`

	// Populated fields
	Author       *UserSummary `db:"-" json:"author,omitempty"`
	Comments     []Comment    `db:"-" json:"comments,omitempty"`
	IsLiked      *bool        `db:"-" json:"isLiked,omitempty"`
	IsBookmarked *bool        `db:"-" json:"isBookmarked,omitempty"`
}

// Normalize applies the write-time rules shared by every post mutation.
func (p *Post) Normalize() {
	p.Title = strings.TrimSpace(p.Title)
	p.Category = strings.ToLower(strings.TrimSpace(p.Category))
}

// PostRequest is the body for create, draft and update operations.
type PostRequest struct {
	Title    *string `json:"title"`
	Category *string `json:"category"`
	Content  *string `json:"content"`
}

// Apply copies the provided fields onto p.
func (r *PostRequest) Apply(p *Post) {
	if r.Title != nil {
		p.Title = *r.Title
	}
	if r.Category != nil {
		p.Category = *r.Category
	}
	if r.Content != nil {
		p.Content = *r.Content
	}
	p.Normalize()
}

// LikeResult is returned by like/unlike.
type LikeResult struct {
	Liked      bool `json:"liked"`
	TotalLikes int  `json:"totalLikes"`
}

// BookmarkResult is returned by bookmark/unbookmark.
type BookmarkResult struct {
	Bookmarked     bool `json:"bookmarked"`
	TotalBookmarks int  `json:"totalBookmarks"`
}

var (
	ErrPostNotFound      = errors.New("post not found")
	ErrPostNotDraft      = errors.New("post is not a draft")
	ErrDraftDeleteOnly   = errors.New("only drafts can be deleted")
	ErrPostAlreadyPublic = errors.New("post is already published")
)
