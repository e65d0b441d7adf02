package handler

import (
	"context"
	"net/http"

	"inkwell/internal/httputil"
	"inkwell/internal/model"
)

// Notifications is the inbox used by NotificationHandler.
type Notifications interface {
	List(ctx context.Context, userID int64) ([]model.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID int64) (*model.Notification, error)
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
}

type NotificationHandler struct {
	notifications Notifications
}

func NewNotificationHandler(notifications Notifications) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List handles GET /api/notifications
// Returns the caller's notifications, newest first.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.notifications.List(r.Context(), currentUser(r).ID)
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	if list == nil {
		list = []model.Notification{}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  httputil.StatusSuccess,
		"results": len(list),
		"data":    list,
	})
}

// MarkRead handles PATCH /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	n, err := h.notifications.MarkRead(r.Context(), currentUser(r).ID, id)
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, n)
}

// MarkAllRead handles PATCH /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	if _, err := h.notifications.MarkAllRead(r.Context(), currentUser(r).ID); err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "All notifications marked as read")
}
