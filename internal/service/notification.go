package service

import (
	"context"

	log "github.com/sirupsen/logrus"

	"inkwell/internal/model"
	"inkwell/internal/repository"
)

// NotificationService records like/comment activity for post authors and
// serves the recipient's inbox.
type NotificationService struct {
	notifRepo repository.NotificationRepository
}

func NewNotificationService(notifRepo repository.NotificationRepository) *NotificationService {
	return &NotificationService{notifRepo: notifRepo}
}

// Notify records an event for recipientID. Self-notifications are skipped.
// Delivery is best effort: failures are logged and never fail the action
// that triggered them.
func (s *NotificationService) Notify(ctx context.Context, recipientID, senderID int64, notifType string, postID, commentID *int64) {
	if recipientID == senderID {
		return
	}

	n := &model.Notification{
		RecipientID: recipientID,
		SenderID:    senderID,
		Type:        notifType,
		PostID:      postID,
		CommentID:   commentID,
	}
	if err := s.notifRepo.Create(ctx, n); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"recipient_id": recipientID,
			"sender_id":    senderID,
			"type":         notifType,
		}).Warn("[NotificationService] Failed to create notification")
	}
}

// List returns the caller's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID int64) ([]model.Notification, error) {
	return s.notifRepo.ListForRecipient(ctx, userID)
}

// MarkRead marks one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID int64) (*model.Notification, error) {
	return s.notifRepo.MarkRead(ctx, notificationID, userID)
}

// MarkAllRead marks every unread notification of the caller as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.notifRepo.MarkAllRead(ctx, userID)
}
