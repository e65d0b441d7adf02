package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"inkwell/internal/config"
	"inkwell/internal/httputil"
	"inkwell/internal/model"
	"inkwell/internal/service"
)

// Authenticator is the account lifecycle used by AuthHandler.
type Authenticator interface {
	Signup(ctx context.Context, req *model.SignupRequest) (*model.User, error)
	VerifyEmail(ctx context.Context, rawToken string) (string, error)
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResult, error)
	Refresh(ctx context.Context, rawRefresh string) (string, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, rawToken string, req *model.ResetPasswordRequest) (*model.AuthResult, error)
	ChangePassword(ctx context.Context, user *model.User, req *model.ChangePasswordRequest) (*model.AuthResult, error)
}

// AuthHandler groups auth-related HTTP endpoints and their dependencies.
type AuthHandler struct {
	auth       Authenticator
	refreshTTL time.Duration
	secure     bool
}

// NewAuthHandler wires dependencies for authentication endpoints.
func NewAuthHandler(auth Authenticator, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		auth:       auth,
		refreshTTL: cfg.RefreshTokenTTL,
		secure:     cfg.IsProduction(),
	}
}

type tokenResponse struct {
	Status      string      `json:"status"`
	AccessToken string      `json:"accessToken"`
	Data        interface{} `json:"data,omitempty"`
}

type userData struct {
	User *model.User `json:"user"`
}

func (h *AuthHandler) refreshCookie(value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     model.RefreshCookieName,
		Value:    value,
		Path:     "/api/auth",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if h.secure {
		c.SameSite = http.SameSiteStrictMode
	}
	return c
}

// sendTokens sets the refresh cookie and returns the access token with the user.
func (h *AuthHandler) sendTokens(w http.ResponseWriter, status int, res *model.AuthResult) {
	http.SetCookie(w, h.refreshCookie(res.RefreshToken, int(h.refreshTTL.Seconds())))
	httputil.WriteJSON(w, status, tokenResponse{
		Status:      httputil.StatusSuccess,
		AccessToken: res.AccessToken,
		Data:        userData{User: res.User},
	})
}

// Signup handles POST /api/auth/signup. No session is started until the
// email address is verified.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req model.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	user, err := h.auth.Signup(r.Context(), &req)
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"status":  httputil.StatusSuccess,
		"message": "Signup successful! Please check your email to verify your account.",
		"data":    userData{User: user},
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	res, err := h.auth.Login(r.Context(), &req)
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	h.sendTokens(w, http.StatusOK, res)
}

// RefreshToken handles POST /api/auth/refresh-token. The refresh token is
// only ever read from the cookie.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(model.RefreshCookieName)
	if err != nil || cookie.Value == "" {
		httputil.WriteErr(w, r, model.ErrNoRefreshToken)
		return
	}

	access, err := h.auth.Refresh(r.Context(), cookie.Value)
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, tokenResponse{
		Status:      httputil.StatusSuccess,
		AccessToken: access,
	})
}

// Logout handles GET /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.refreshCookie("", -1))
	httputil.WriteMessage(w, http.StatusOK, "Logged out successfully")
}

// VerifyEmail handles GET /api/auth/verify-email/{token}.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	redirect, err := h.auth.VerifyEmail(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	message := "Email verified successfully"
	if redirect == service.RedirectAlreadyVerified {
		message = "Email already verified"
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":     httputil.StatusSuccess,
		"verified":   true,
		"message":    message,
		"redirectTo": redirect,
	})
}

// ResendVerification handles POST /api/auth/resend-verification.
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req model.EmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	if err := h.auth.ResendVerification(r.Context(), req.Email); err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Verification email resent")
}

// ForgotPassword handles POST /api/auth/forgotPassword.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req model.EmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Password reset link sent to email")
}

// ResetPassword handles PATCH /api/auth/reset-password/{token} and logs the
// user in.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req model.ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	res, err := h.auth.ResetPassword(r.Context(), chi.URLParam(r, "token"), &req)
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	h.sendTokens(w, http.StatusOK, res)
}

// UpdateMyPassword handles PATCH /api/auth/updateMyPassword.
func (h *AuthHandler) UpdateMyPassword(w http.ResponseWriter, r *http.Request) {
	var req model.ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	res, err := h.auth.ChangePassword(r.Context(), currentUser(r), &req)
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	h.sendTokens(w, http.StatusOK, res)
}

// CheckAuth handles GET /api/auth/check-auth behind optional auth.
func (h *AuthHandler) CheckAuth(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"isAuthenticated": false,
			"user":            nil,
		})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"isAuthenticated": true,
		"user": model.AuthUser{
			Name:   user.FullName,
			Email:  user.Email,
			Avatar: user.Avatar,
		},
	})
}
