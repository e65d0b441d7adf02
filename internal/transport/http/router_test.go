package http

import (
	"context"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"inkwell/internal/config"
	"inkwell/internal/handler"
	"inkwell/internal/model"
	authmw "inkwell/internal/transport/http/middleware"
)

type stubAuth struct {
	handler.Authenticator
}

func (stubAuth) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResult, error) {
	return nil, model.ErrInvalidCredentials
}

func (stubAuth) Authenticate(ctx context.Context, raw string) (*model.User, error) {
	if raw == "reader" {
		return &model.User{ID: 1, Role: model.RoleReader}, nil
	}
	return nil, model.ErrTokenInvalid
}

func newTestRouter() stdhttp.Handler {
	cfg := &config.Config{Env: config.EnvDevelopment, RefreshTokenTTL: time.Hour}
	return NewRouter(RouterConfig{
		AuthHandler:         handler.NewAuthHandler(stubAuth{}, cfg),
		UserHandler:         handler.NewUserHandler(nil, nil),
		PostHandler:         handler.NewPostHandler(nil),
		CommentHandler:      handler.NewCommentHandler(nil),
		NotificationHandler: handler.NewNotificationHandler(nil),
		Authenticator:       stubAuth{},
		AuthLimiter:         authmw.NewRateLimiter(nil, 2, time.Hour),
		FrontendURL:         "http://localhost:5173",
	})
}

func do(h stdhttp.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(`{"email":"a@b.c","password":"x"}`))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	rec := do(newTestRouter(), stdhttp.MethodGet, "/health", "")
	assert.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_NotFound(t *testing.T) {
	rec := do(newTestRouter(), stdhttp.MethodGet, "/api/nope", "")
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Can't find /api/nope on this server")
	assert.Contains(t, rec.Body.String(), `"status":"fail"`)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	rec := do(newTestRouter(), stdhttp.MethodPut, "/health", "")
	assert.Equal(t, stdhttp.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_Guards(t *testing.T) {
	r := newTestRouter()

	rec := do(r, stdhttp.MethodGet, "/api/users/me", "")
	assert.Equal(t, stdhttp.StatusUnauthorized, rec.Code)

	rec = do(r, stdhttp.MethodGet, "/api/users", "reader")
	assert.Equal(t, stdhttp.StatusForbidden, rec.Code)

	rec = do(r, stdhttp.MethodPost, "/api/posts", "reader")
	assert.Equal(t, stdhttp.StatusForbidden, rec.Code)

	rec = do(r, stdhttp.MethodGet, "/api/notifications", "bad")
	assert.Equal(t, stdhttp.StatusUnauthorized, rec.Code)
}

func TestRouter_AuthRateLimit(t *testing.T) {
	r := newTestRouter()

	assert.Equal(t, stdhttp.StatusUnauthorized, do(r, stdhttp.MethodPost, "/api/auth/login", "").Code)
	assert.Equal(t, stdhttp.StatusUnauthorized, do(r, stdhttp.MethodPost, "/api/auth/login", "").Code)
	assert.Equal(t, stdhttp.StatusTooManyRequests, do(r, stdhttp.MethodPost, "/api/auth/login", "").Code)

	// Other auth routes are not limited.
	assert.Equal(t, stdhttp.StatusOK, do(r, stdhttp.MethodGet, "/api/auth/logout", "").Code)
}

func TestRouter_CheckAuthIsOptional(t *testing.T) {
	rec := do(newTestRouter(), stdhttp.MethodGet, "/api/auth/check-auth", "bad")
	assert.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"isAuthenticated":false`)
}
