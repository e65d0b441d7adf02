package model

import "errors"

// Token verification failures. Both mean the caller has to re-authenticate;
// they are kept apart so clients can tell "refresh" from "log in again".
var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")

	ErrNotLoggedIn         = errors.New("missing bearer token")
	ErrNoRefreshToken      = errors.New("missing refresh token")
	ErrRefreshTokenInvalid = errors.New("refresh token invalid")
	ErrResetTokenInvalid   = errors.New("reset token is invalid or has expired")
)

// RefreshCookieName is the HttpOnly cookie carrying the refresh token.
const RefreshCookieName = "refreshToken"

// AuthResult is what a successful login-like operation hands back to the
// transport: the user plus both credentials.
type AuthResult struct {
	User         *User
	AccessToken  string
	RefreshToken string
}
