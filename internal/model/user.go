package model

import (
	"errors"
	"time"
)

// Roles
const (
	RoleReader = "reader"
	RoleAuthor = "author"
	RoleAdmin  = "admin"
)

// Email verification states
const (
	EmailPending  = "pending"
	EmailVerified = "verified"
)

// User represents a user in the system
type User struct {
	ID             int64   `db:"id" json:"id"`
	Username       string  `db:"username" json:"username" validate:"required,max=50"`
	FullName       string  `db:"full_name" json:"fullName" validate:"required,fullname,max=100"`
	Email          string  `db:"email" json:"email" validate:"required,email"`
	PhoneNumber    string  `db:"phone_number" json:"phoneNumber" validate:"required,max=32"`
	PasswordHashed string  `db:"password_hashed" json:"-"` // "-" hides from JSON output
	Role           string  `db:"role" json:"role" validate:"required,oneof=reader author admin"`
	Avatar         string  `db:"avatar" json:"avatar"`
	AvatarKey      *string `db:"avatar_key" json:"-"`
	Bio            *string `db:"bio" json:"bio"`
	EmailVerified  string  `db:"email_verified" json:"emailVerified"`

	WelcomeEmailSent bool       `db:"welcome_email_sent" json:"-"`
	Active           bool       `db:"active" json:"-"`
	PasswordChanged  *time.Time `db:"password_changed_at" json:"-"`

	EmailVerificationToken   *string    `db:"email_verification_token" json:"-"`
	EmailVerificationExpires *time.Time `db:"email_verification_expires" json:"-"`
	PasswordResetToken       *string    `db:"password_reset_token" json:"-"`
	PasswordResetExpires     *time.Time `db:"password_reset_expires" json:"-"`

	Version   int       `db:"version" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// IsVerified reports whether the account has consumed its verification token.
func (u *User) IsVerified() bool {
	return u.EmailVerified == EmailVerified
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ChangedPasswordAfter reports whether the password was changed after a token
// issued at issuedAt. Token timestamps have second precision.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChanged == nil {
		return false
	}
	return issuedAt.Unix() < u.PasswordChanged.Unix()
}

func (u *User) Summary() *UserSummary {
	return &UserSummary{
		ID:       u.ID,
		Username: u.Username,
		FullName: u.FullName,
		Avatar:   u.Avatar,
	}
}

// UserSummary is the public projection embedded in posts, comments and notifications.
type UserSummary struct {
	ID       int64  `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	FullName string `db:"full_name" json:"fullName"`
	Avatar   string `db:"avatar" json:"avatar"`
}

// SignupRequest represents the data needed to register a new user
type SignupRequest struct {
	Username        string `json:"username" validate:"required,max=50"`
	FullName        string `json:"fullName" validate:"required,fullname,max=100"`
	Email           string `json:"email" validate:"required,email"`
	PhoneNumber     string `json:"phoneNumber" validate:"required,max=32"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// CreateUserRequest is the admin-only variant of signup with an explicit role.
type CreateUserRequest struct {
	SignupRequest
	Role string `json:"role" validate:"omitempty,oneof=reader author admin"`
}

// LoginRequest represents the data needed to log in
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

type ChangePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// AuthUser is the check-auth projection.
type AuthUser struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

var (
	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = errors.New("user not found")

	// ErrUsernameExists is returned when attempting to create a user with a taken username
	ErrUsernameExists = errors.New("username already taken")

	// ErrEmailExists is returned when attempting to create a user with a taken email
	ErrEmailExists = errors.New("email already in use")

	// ErrInvalidCredentials is returned when login credentials are incorrect
	ErrInvalidCredentials = errors.New("incorrect email or password")

	ErrMissingCredentials = errors.New("email and password required")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrAlreadyVerified    = errors.New("email already verified")
	ErrTokenInvalidOrUsed = errors.New("token is invalid or has expired")
	ErrWrongPassword      = errors.New("current password is wrong")
	ErrPasswordUpdate     = errors.New("password fields not allowed")
	ErrEmailUpdate        = errors.New("email cannot be changed")
	ErrEmailDelivery      = errors.New("email delivery failed")
	ErrUserInactive       = errors.New("user no longer exists")
	ErrPasswordChanged    = errors.New("password changed after token issue")
)
