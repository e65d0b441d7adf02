package model

import (
	"errors"
	"time"
)

// Notification types
const (
	NotificationTypeLike    = "like"
	NotificationTypeComment = "comment"
)

// Notification represents a single notification record in the database.
type Notification struct {
	ID          int64     `db:"id" json:"id"`
	RecipientID int64     `db:"recipient_id" json:"recipientId"`
	SenderID    int64     `db:"sender_id" json:"senderId"`
	Type        string    `db:"type" json:"type"` // like, comment
	PostID      *int64    `db:"post_id" json:"postId,omitempty"`
	CommentID   *int64    `db:"comment_id" json:"commentId,omitempty"`
	IsRead      bool      `db:"is_read" json:"isRead"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`

	// Joined fields for display
	Sender *NotificationSender `db:"sender" json:"sender,omitempty"`
	Post   *NotificationPost   `db:"post" json:"post,omitempty"`
}

type NotificationSender struct {
	ID       int64  `db:"id" json:"id"`
	FullName string `db:"full_name" json:"fullName"`
	Avatar   string `db:"avatar" json:"avatar"`
}

type NotificationPost struct {
	ID    *int64  `db:"id" json:"id"`
	Title *string `db:"title" json:"title"`
}

var ErrNotificationNotFound = errors.New("notification not found")
