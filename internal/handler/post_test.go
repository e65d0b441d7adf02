package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/internal/model"
	"inkwell/internal/service"
	"inkwell/internal/transport/http/middleware"
)

type fakePosts struct {
	Posts
	createFn func(ctx context.Context, caller *model.User, req *model.PostRequest, draft bool, image *service.ImageFile) (*model.Post, error)
	updateFn func(ctx context.Context, caller *model.User, id int64, patch map[string]json.RawMessage, image *service.ImageFile) (*model.Post, error)
	mineFn   func(ctx context.Context, caller *model.User, collection string) ([]model.Post, error)
	deleted  []int64
}

func (f *fakePosts) Create(ctx context.Context, caller *model.User, req *model.PostRequest, draft bool, image *service.ImageFile) (*model.Post, error) {
	return f.createFn(ctx, caller, req, draft, image)
}

func (f *fakePosts) Update(ctx context.Context, caller *model.User, id int64, patch map[string]json.RawMessage, image *service.ImageFile) (*model.Post, error) {
	return f.updateFn(ctx, caller, id, patch, image)
}

func (f *fakePosts) Delete(ctx context.Context, caller *model.User, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakePosts) Mine(ctx context.Context, caller *model.User, collection string) ([]model.Post, error) {
	return f.mineFn(ctx, caller, collection)
}

var writer = &model.User{ID: 3, Role: model.RoleAuthor}

// postRouter mounts the handler the way the real router does, with the
// caller already authenticated.
func postRouter(posts Posts) http.Handler {
	h := NewPostHandler(posts)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithUser(r.Context(), writer)))
		})
	})
	r.Post("/api/posts", h.Create)
	r.Post("/api/posts/draft", h.CreateDraft)
	r.Patch("/api/posts/{id}", h.Update)
	r.Delete("/api/posts/{id}", h.Delete)
	r.Get("/api/posts/my/{collection}", h.Mine)
	return r
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		part, err := mw.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestPostHandler_CreateMultipart(t *testing.T) {
	var (
		gotReq   *model.PostRequest
		gotDraft bool
		gotImage []byte
	)
	posts := &fakePosts{createFn: func(ctx context.Context, caller *model.User, req *model.PostRequest, draft bool, image *service.ImageFile) (*model.Post, error) {
		gotReq, gotDraft = req, draft
		require.NotNil(t, image)
		gotImage, _ = io.ReadAll(image.File)
		return &model.Post{ID: 10, Title: *req.Title, AuthorID: caller.ID}, nil
	}}

	body, contentType := multipartBody(t, map[string]string{"title": "Go Generics", "content": "Body", "category": "Tech"}, model.PostImageFormField, "cover.png", []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/api/posts", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	postRouter(posts).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.False(t, gotDraft)
	assert.Equal(t, "Go Generics", *gotReq.Title)
	assert.Equal(t, "Tech", *gotReq.Category)
	assert.Equal(t, []byte("png-bytes"), gotImage)
	assert.Contains(t, rec.Body.String(), `"authorId":3`)
}

func TestPostHandler_CreateDraftJSON(t *testing.T) {
	var gotDraft bool
	posts := &fakePosts{createFn: func(ctx context.Context, caller *model.User, req *model.PostRequest, draft bool, image *service.ImageFile) (*model.Post, error) {
		gotDraft = draft
		assert.Nil(t, image)
		assert.Nil(t, req.Content)
		return &model.Post{ID: 11, IsDraft: true}, nil
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/posts/draft", strings.NewReader(`{"title":"Half an idea"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	postRouter(posts).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, gotDraft)
}

func TestPostHandler_UpdatePassesPatch(t *testing.T) {
	var gotPatch map[string]json.RawMessage
	posts := &fakePosts{updateFn: func(ctx context.Context, caller *model.User, id int64, patch map[string]json.RawMessage, image *service.ImageFile) (*model.Post, error) {
		assert.Equal(t, int64(7), id)
		gotPatch = patch
		return &model.Post{ID: id}, nil
	}}

	req := httptest.NewRequest(http.MethodPatch, "/api/posts/7", strings.NewReader(`{"title":"New","views":99}`))
	rec := httptest.NewRecorder()
	postRouter(posts).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"New"`, string(gotPatch["title"]))
	assert.Contains(t, gotPatch, "views", "field filtering happens in the service")
}

func TestPostHandler_BadRequests(t *testing.T) {
	posts := &fakePosts{}

	rec := httptest.NewRecorder()
	postRouter(posts).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/posts/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid identifier")

	rec = httptest.NewRecorder()
	postRouter(posts).ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/api/posts/7", strings.NewReader(`{"title":`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid request body")
}

func TestPostHandler_Delete(t *testing.T) {
	posts := &fakePosts{}

	rec := httptest.NewRecorder()
	postRouter(posts).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/posts/7", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","message":"Data deleted successfully"}`, rec.Body.String())
	assert.Equal(t, []int64{7}, posts.deleted)
}

func TestPostHandler_Mine(t *testing.T) {
	posts := &fakePosts{mineFn: func(ctx context.Context, caller *model.User, collection string) ([]model.Post, error) {
		if collection != service.CollectionDrafts {
			return nil, model.ErrDocumentNotFound
		}
		return []model.Post{{ID: 1, IsDraft: true}, {ID: 2, IsDraft: true}}, nil
	}}

	rec := httptest.NewRecorder()
	postRouter(posts).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts/my/drafts", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"results":2`)

	rec = httptest.NewRecorder()
	postRouter(posts).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/posts/my/everything", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
