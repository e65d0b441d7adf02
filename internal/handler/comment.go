package handler

import (
	"context"
	"net/http"
	"net/url"

	"inkwell/internal/httputil"
	"inkwell/internal/model"
	"inkwell/internal/service"
)

// Comments is the comment workflow used by CommentHandler.
type Comments interface {
	ListForPost(ctx context.Context, caller *model.User, postID int64, params url.Values) (*service.Page[model.Comment], error)
	Create(ctx context.Context, caller *model.User, postID int64, req *model.CommentRequest) (*model.Comment, error)
	Update(ctx context.Context, caller *model.User, commentID int64, req *model.CommentRequest) (*model.Comment, error)
	Delete(ctx context.Context, caller *model.User, commentID int64) error
}

type CommentHandler struct {
	comments Comments
}

func NewCommentHandler(comments Comments) *CommentHandler {
	return &CommentHandler{comments: comments}
}

// List handles GET /api/posts/{id}/comments
// Returns top-level comments with their replies; totals count top-level only.
func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "id")
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	page, err := h.comments.ListForPost(r.Context(), currentUser(r), postID, r.URL.Query())
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	writePage(w, page)
}

// Create handles POST /api/posts/{id}/comments
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "id")
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	var req model.CommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	comment, err := h.comments.Create(r.Context(), currentUser(r), postID, &req)
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, comment)
}

// Update handles PATCH /api/posts/{id}/comments/{commentId}
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "commentId")
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	var req model.CommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	comment, err := h.comments.Update(r.Context(), currentUser(r), id, &req)
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  httputil.StatusSuccess,
		"message": "Comment updated successfully",
		"data":    comment,
	})
}

// Delete handles DELETE /api/posts/{id}/comments/{commentId}
// Removes the comment together with its replies.
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "commentId")
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	if err := h.comments.Delete(r.Context(), currentUser(r), id); err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Comment and its replies deleted")
}
