package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"inkwell/internal/httputil"
	"inkwell/internal/model"
	"inkwell/internal/service"
)

// Posts is the post workflow used by PostHandler.
type Posts interface {
	Create(ctx context.Context, caller *model.User, req *model.PostRequest, draft bool, image *service.ImageFile) (*model.Post, error)
	List(ctx context.Context, caller *model.User, params url.Values) (*service.Page[model.Post], error)
	Get(ctx context.Context, viewer *model.User, idOrSlug string) (*model.Post, error)
	Update(ctx context.Context, caller *model.User, postID int64, patch map[string]json.RawMessage, image *service.ImageFile) (*model.Post, error)
	UpdateDraft(ctx context.Context, caller *model.User, postID int64, patch map[string]json.RawMessage, image *service.ImageFile) (*model.Post, error)
	Delete(ctx context.Context, caller *model.User, postID int64) error
	PublishDraft(ctx context.Context, caller *model.User, postID int64) (*model.Post, error)
	DeleteDraft(ctx context.Context, caller *model.User, postID int64) error
	Like(ctx context.Context, caller *model.User, postID int64) (*model.LikeResult, error)
	Unlike(ctx context.Context, caller *model.User, postID int64) (*model.LikeResult, error)
	Bookmark(ctx context.Context, caller *model.User, postID int64) (*model.BookmarkResult, error)
	Unbookmark(ctx context.Context, caller *model.User, postID int64) (*model.BookmarkResult, error)
	Mine(ctx context.Context, caller *model.User, collection string) ([]model.Post, error)
}

type PostHandler struct {
	posts Posts
}

func NewPostHandler(posts Posts) *PostHandler {
	return &PostHandler{posts: posts}
}

// Create handles POST /api/posts
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, false)
}

// CreateDraft handles POST /api/posts/draft
func (h *PostHandler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, true)
}

func (h *PostHandler) create(w http.ResponseWriter, r *http.Request, draft bool) {
	up, err := readUpload(w, r, model.PostImageFormField)
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	defer up.cleanup()

	var req model.PostRequest
	if err := up.decodeInto(&req); err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	post, err := h.posts.Create(r.Context(), currentUser(r), &req, draft, up.image)
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, post)
}

// List handles GET /api/posts
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.posts.List(r.Context(), currentUser(r), r.URL.Query())
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	writePage(w, page)
}

// Get handles GET /api/posts/{id}; id may be a numeric id or a slug.
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.Get(r.Context(), currentUser(r), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, post)
}

// Update handles PATCH /api/posts/{id}
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, h.posts.Update)
}

// UpdateDraft handles PATCH /api/posts/drafts/{id}
func (h *PostHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, h.posts.UpdateDraft)
}

type postUpdater func(ctx context.Context, caller *model.User, postID int64, patch map[string]json.RawMessage, image *service.ImageFile) (*model.Post, error)

func (h *PostHandler) update(w http.ResponseWriter, r *http.Request, apply postUpdater) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	up, err := readUpload(w, r, model.PostImageFormField)
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	defer up.cleanup()

	post, err := apply(r.Context(), currentUser(r), id, up.fields, up.image)
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, post)
}

// Delete handles DELETE /api/posts/{id} (soft delete).
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	if err := h.posts.Delete(r.Context(), currentUser(r), id); err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	writeDeleted(w)
}

// PublishDraft handles PATCH /api/posts/{id}/publishDraft
func (h *PostHandler) PublishDraft(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	post, err := h.posts.PublishDraft(r.Context(), currentUser(r), id)
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, post)
}

// DeleteDraft handles DELETE /api/posts/drafts/{id}
func (h *PostHandler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	if err := h.posts.DeleteDraft(r.Context(), currentUser(r), id); err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Draft deleted successfully")
}

// Like handles POST /api/posts/{id}/like
func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, func(ctx context.Context, caller *model.User, id int64) (interface{}, error) {
		return h.posts.Like(ctx, caller, id)
	})
}

// Unlike handles DELETE /api/posts/{id}/like
func (h *PostHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, func(ctx context.Context, caller *model.User, id int64) (interface{}, error) {
		return h.posts.Unlike(ctx, caller, id)
	})
}

// Bookmark handles POST /api/posts/{id}/bookmark
func (h *PostHandler) Bookmark(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, func(ctx context.Context, caller *model.User, id int64) (interface{}, error) {
		return h.posts.Bookmark(ctx, caller, id)
	})
}

// Unbookmark handles DELETE /api/posts/{id}/bookmark
func (h *PostHandler) Unbookmark(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, func(ctx context.Context, caller *model.User, id int64) (interface{}, error) {
		return h.posts.Unbookmark(ctx, caller, id)
	})
}

func (h *PostHandler) toggle(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, caller *model.User, id int64) (interface{}, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	res, err := fn(r.Context(), currentUser(r), id)
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, res)
}

// Mine handles GET /api/posts/my/{collection}
func (h *PostHandler) Mine(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.Mine(r.Context(), currentUser(r), chi.URLParam(r, "collection"))
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	if posts == nil {
		posts = []model.Post{}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  httputil.StatusSuccess,
		"results": len(posts),
		"data":    posts,
	})
}
