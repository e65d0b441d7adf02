package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"inkwell/internal/model"
)

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Create inserts a new notification.
func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	stmt := `
		INSERT INTO notifications (recipient_id, sender_id, type, post_id, comment_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, is_read, created_at
	`
	err := r.db.QueryRowxContext(ctx, stmt, n.RecipientID, n.SenderID, n.Type, n.PostID, n.CommentID).
		Scan(&n.ID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListForRecipient returns every notification for recipientID, newest first,
// with sender and post details joined in.
func (r *notificationRepository) ListForRecipient(ctx context.Context, recipientID int64) ([]model.Notification, error) {
	stmt := `
		SELECT n.id, n.recipient_id, n.sender_id, n.type, n.post_id, n.comment_id, n.is_read, n.created_at,
		       u.id AS "sender.id", u.full_name AS "sender.full_name", u.avatar AS "sender.avatar",
		       p.id AS "post.id", p.title AS "post.title"
		FROM notifications n
		JOIN users u ON u.id = n.sender_id
		LEFT JOIN posts p ON p.id = n.post_id
		WHERE n.recipient_id = $1
		ORDER BY n.created_at DESC, n.id DESC
	`

	type notifRow struct {
		ID             int64     `db:"id"`
		RecipientID    int64     `db:"recipient_id"`
		SenderID       int64     `db:"sender_id"`
		Type           string    `db:"type"`
		PostID         *int64    `db:"post_id"`
		CommentID      *int64    `db:"comment_id"`
		IsRead         bool      `db:"is_read"`
		CreatedAt      time.Time `db:"created_at"`
		SenderIDJoined int64     `db:"sender.id"`
		SenderFullName string    `db:"sender.full_name"`
		SenderAvatar   string    `db:"sender.avatar"`
		PostIDJoined   *int64    `db:"post.id"`
		PostTitle      *string   `db:"post.title"`
	}

	var rows []notifRow
	if err := r.db.SelectContext(ctx, &rows, stmt, recipientID); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	notifications := make([]model.Notification, len(rows))
	for i, row := range rows {
		notifications[i] = model.Notification{
			ID:          row.ID,
			RecipientID: row.RecipientID,
			SenderID:    row.SenderID,
			Type:        row.Type,
			PostID:      row.PostID,
			CommentID:   row.CommentID,
			IsRead:      row.IsRead,
			CreatedAt:   row.CreatedAt,
			Sender: &model.NotificationSender{
				ID:       row.SenderIDJoined,
				FullName: row.SenderFullName,
				Avatar:   row.SenderAvatar,
			},
		}
		if row.PostIDJoined != nil {
			notifications[i].Post = &model.NotificationPost{ID: row.PostIDJoined, Title: row.PostTitle}
		}
	}
	return notifications, nil
}

// MarkRead marks one notification as read. Notifications of other
// recipients are reported as not found.
func (r *notificationRepository) MarkRead(ctx context.Context, id, recipientID int64) (*model.Notification, error) {
	var n model.Notification
	err := r.db.GetContext(ctx, &n, `
		UPDATE notifications SET is_read = TRUE
		WHERE id = $1 AND recipient_id = $2
		RETURNING id, recipient_id, sender_id, type, post_id, comment_id, is_read, created_at
	`, id, recipientID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mark notification as read: %w", err)
	}
	return &n, nil
}

// MarkAllRead marks every unread notification of recipientID as read.
func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE WHERE recipient_id = $1 AND is_read = FALSE
	`, recipientID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications as read: %w", err)
	}
	return result.RowsAffected()
}
