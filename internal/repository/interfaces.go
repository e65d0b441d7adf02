package repository

import (
	"context"
	"time"

	"inkwell/internal/model"
)

type UserRepository interface {
	Store[model.User]

	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error)
	GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	SetVerificationToken(ctx context.Context, id int64, tokenHash *string, expires *time.Time) error
	// MarkVerified reports false when the account was not pending.
	MarkVerified(ctx context.Context, id int64) (bool, error)
	MarkWelcomeSent(ctx context.Context, id int64) (bool, error)
	SetResetToken(ctx context.Context, id int64, tokenHash *string, expires *time.Time) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string, changedAt time.Time) error
	Deactivate(ctx context.Context, id int64) error
	GetSummaries(ctx context.Context, ids []int64) (map[int64]model.UserSummary, error)
}

type PostRepository interface {
	Store[model.Post]

	GetByID(ctx context.Context, postID int64) (*model.Post, error)
	GetByIDOrSlug(ctx context.Context, idOrSlug string) (*model.Post, error)
	IncrementViews(ctx context.Context, postID int64) (int64, error)
	// Like methods report whether a row changed and the resulting counter.
	Like(ctx context.Context, postID, userID int64) (bool, int, error)
	Unlike(ctx context.Context, postID, userID int64) (bool, int, error)
	Bookmark(ctx context.Context, postID, userID int64) (bool, int, error)
	Unbookmark(ctx context.Context, postID, userID int64) (bool, int, error)
	ViewerState(ctx context.Context, postID, userID int64) (liked, bookmarked bool, err error)
	ListByAuthor(ctx context.Context, authorID int64, drafts bool) ([]model.Post, error)
	ListLikedBy(ctx context.Context, userID int64) ([]model.Post, error)
	ListBookmarkedBy(ctx context.Context, userID int64) ([]model.Post, error)
	Publish(ctx context.Context, postID int64, slug *string, publishedAt time.Time) (*model.Post, error)
	DeleteDraft(ctx context.Context, postID int64) error
}

type CommentRepository interface {
	Store[model.Comment]

	GetByID(ctx context.Context, commentID int64) (*model.Comment, error)
	Create(ctx context.Context, comment *model.Comment) error
	UpdateContent(ctx context.Context, commentID int64, content string) (*model.Comment, error)
	// ListReplies returns the replies to parentIDs, oldest first.
	ListReplies(ctx context.Context, parentIDs []int64) ([]model.Comment, error)
	// DeleteWithReplies removes a comment and its direct replies in one statement.
	DeleteWithReplies(ctx context.Context, commentID int64) (int64, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	// ListForRecipient returns notifications newest first, with sender and post populated.
	ListForRecipient(ctx context.Context, recipientID int64) ([]model.Notification, error)
	MarkRead(ctx context.Context, id, recipientID int64) (*model.Notification, error)
	MarkAllRead(ctx context.Context, recipientID int64) (int64, error)
}
