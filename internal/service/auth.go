package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"inkwell/internal/config"
	"inkwell/internal/model"
	"inkwell/internal/repository"
)

const (
	verificationTokenTTL = 24 * time.Hour
	resetTokenTTL        = 10 * time.Minute
	tokenBytes           = 32
)

// Redirect targets returned by VerifyEmail.
const (
	RedirectVerified        = "/login?verified=true"
	RedirectAlreadyVerified = "/login?alreadyVerified=true"
)

// Mailer sends the transactional emails of the account lifecycle.
type Mailer interface {
	SendVerification(ctx context.Context, user *model.User, url string) error
	SendWelcome(ctx context.Context, user *model.User, url string) error
	SendPasswordReset(ctx context.Context, user *model.User, url string) error
}

// AuthService handles signup, email verification, sessions and password
// management.
type AuthService struct {
	users       repository.UserRepository
	tokens      *TokenService
	mailer      Mailer
	frontendURL string
	avatarURL   string
	bcryptCost  int
	now         func() time.Time
}

func NewAuthService(users repository.UserRepository, tokens *TokenService, mailer Mailer, cfg *config.Config) *AuthService {
	return &AuthService{
		users:       users,
		tokens:      tokens,
		mailer:      mailer,
		frontendURL: cfg.FrontendURL,
		avatarURL:   cfg.DefaultAvatarURL,
		bcryptCost:  bcrypt.DefaultCost,
		now:         time.Now,
	}
}

// Signup creates a pending account and emails its verification link.
// No session is issued until the address is verified.
func (s *AuthService) Signup(ctx context.Context, req *model.SignupRequest) (*model.User, error) {
	req.Email = normalizeEmail(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	req.FullName = strings.TrimSpace(req.FullName)
	if err := model.Validate(req); err != nil {
		return nil, err
	}

	raw, hash, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}
	expires := s.now().Add(verificationTokenTTL)

	user, err := s.createAccount(ctx, req, model.RoleReader, func(u *model.User) {
		u.EmailVerified = model.EmailPending
		u.EmailVerificationToken = &hash
		u.EmailVerificationExpires = &expires
	})
	if err != nil {
		return nil, err
	}

	if err := s.mailer.SendVerification(ctx, user, s.link("verify-email", raw)); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrEmailDelivery, err)
	}

	log.WithField("user_id", user.ID).Info("[AuthService] User signed up")
	return user, nil
}

// CreateAccount is the admin path: the account is verified immediately and
// may carry any role.
func (s *AuthService) CreateAccount(ctx context.Context, req *model.CreateUserRequest) (*model.User, error) {
	req.Email = normalizeEmail(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	req.FullName = strings.TrimSpace(req.FullName)
	if err := model.Validate(req); err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = model.RoleReader
	}
	return s.createAccount(ctx, &req.SignupRequest, role, func(u *model.User) {
		u.EmailVerified = model.EmailVerified
	})
}

func (s *AuthService) createAccount(ctx context.Context, req *model.SignupRequest, role string, prepare func(*model.User)) (*model.User, error) {
	exists, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, model.ErrEmailExists
	}

	exists, err = s.users.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return nil, model.ErrUsernameExists
	}

	hashed, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:       req.Username,
		FullName:       req.FullName,
		Email:          req.Email,
		PhoneNumber:    req.PhoneNumber,
		PasswordHashed: hashed,
		Role:           role,
		Avatar:         s.avatarURL,
		Active:         true,
	}
	prepare(user)
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// VerifyEmail consumes a verification token. It returns the frontend path
// the client should redirect to.
func (s *AuthService) VerifyEmail(ctx context.Context, rawToken string) (string, error) {
	user, err := s.users.GetByVerificationToken(ctx, hashToken(rawToken), s.now())
	if errors.Is(err, model.ErrUserNotFound) {
		return "", model.ErrTokenInvalidOrUsed
	}
	if err != nil {
		return "", err
	}

	if user.IsVerified() {
		return RedirectAlreadyVerified, nil
	}

	changed, err := s.users.MarkVerified(ctx, user.ID)
	if err != nil {
		return "", err
	}
	if !changed {
		// A concurrent request got there first.
		return RedirectAlreadyVerified, nil
	}

	if !user.WelcomeEmailSent {
		s.sendWelcome(ctx, user)
	}
	return RedirectVerified, nil
}

func (s *AuthService) sendWelcome(ctx context.Context, user *model.User) {
	logger := log.WithField("user_id", user.ID)
	if err := s.mailer.SendWelcome(ctx, user, s.frontendURL+"/"); err != nil {
		logger.WithError(err).Warn("[AuthService] Welcome email failed")
		return
	}
	if _, err := s.users.MarkWelcomeSent(ctx, user.ID); err != nil {
		logger.WithError(err).Warn("[AuthService] Failed to record welcome email")
	}
}

// ResendVerification issues a fresh verification token, replacing any
// previous one.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if user.IsVerified() {
		return model.ErrAlreadyVerified
	}

	raw, hash, err := newOpaqueToken()
	if err != nil {
		return err
	}
	expires := s.now().Add(verificationTokenTTL)
	if err := s.users.SetVerificationToken(ctx, user.ID, &hash, &expires); err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}

	if err := s.mailer.SendVerification(ctx, user, s.link("verify-email", raw)); err != nil {
		return fmt.Errorf("%w: %v", model.ErrEmailDelivery, err)
	}
	return nil
}

// Login checks credentials and issues a token pair. Unknown emails, wrong
// passwords and deactivated accounts are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResult, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, model.ErrMissingCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		return nil, model.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHashed), []byte(req.Password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}

	if !user.IsVerified() {
		return nil, model.ErrEmailNotVerified
	}

	return s.issue(user)
}

// Refresh exchanges a refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, rawRefresh string) (string, error) {
	if rawRefresh == "" {
		return "", model.ErrNoRefreshToken
	}

	claims, err := s.tokens.VerifyRefresh(rawRefresh)
	if errors.Is(err, model.ErrTokenExpired) {
		return "", model.ErrTokenExpired
	}
	if err != nil {
		return "", model.ErrRefreshTokenInvalid
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return "", model.ErrUserInactive
	}
	if err != nil {
		return "", err
	}
	if user.ChangedPasswordAfter(claims.IssuedAt) {
		return "", model.ErrPasswordChanged
	}

	return s.tokens.SignAccess(user.ID)
}

// Authenticate resolves an access token to its active user.
func (s *AuthService) Authenticate(ctx context.Context, rawAccess string) (*model.User, error) {
	claims, err := s.tokens.VerifyAccess(rawAccess)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		return nil, model.ErrUserInactive
	}
	if err != nil {
		return nil, err
	}
	if user.ChangedPasswordAfter(claims.IssuedAt) {
		return nil, model.ErrPasswordChanged
	}
	return user, nil
}

// ForgotPassword emails a short-lived reset link. If delivery fails the
// token is cleared again.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}

	raw, hash, err := newOpaqueToken()
	if err != nil {
		return err
	}
	expires := s.now().Add(resetTokenTTL)
	if err := s.users.SetResetToken(ctx, user.ID, &hash, &expires); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	if err := s.mailer.SendPasswordReset(ctx, user, s.link("reset-password", raw)); err != nil {
		if clearErr := s.users.SetResetToken(ctx, user.ID, nil, nil); clearErr != nil {
			log.WithError(clearErr).WithField("user_id", user.ID).Error("[AuthService] Failed to clear reset token")
		}
		return fmt.Errorf("%w: %v", model.ErrEmailDelivery, err)
	}
	return nil
}

// ResetPassword sets a new password from a reset token and logs the user in.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken string, req *model.ResetPasswordRequest) (*model.AuthResult, error) {
	user, err := s.users.GetByResetToken(ctx, hashToken(rawToken), s.now())
	if errors.Is(err, model.ErrUserNotFound) {
		return nil, model.ErrResetTokenInvalid
	}
	if err != nil {
		return nil, err
	}

	if err := model.Validate(req); err != nil {
		return nil, err
	}

	if err := s.setPassword(ctx, user, req.Password); err != nil {
		return nil, err
	}
	return s.issue(user)
}

// ChangePassword verifies the current password, stores the new one and
// issues fresh tokens so the caller's session survives the change.
func (s *AuthService) ChangePassword(ctx context.Context, user *model.User, req *model.ChangePasswordRequest) (*model.AuthResult, error) {
	if err := model.Validate(req); err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHashed), []byte(req.PasswordCurrent)); err != nil {
		return nil, model.ErrWrongPassword
	}

	if err := s.setPassword(ctx, user, req.Password); err != nil {
		return nil, err
	}
	return s.issue(user)
}

// setPassword stamps password_changed_at one second in the past so tokens
// issued right after the change are not rejected as stale.
func (s *AuthService) setPassword(ctx context.Context, user *model.User, password string) error {
	hashed, err := s.hashPassword(password)
	if err != nil {
		return err
	}

	changedAt := s.now().Add(-time.Second)
	if err := s.users.UpdatePassword(ctx, user.ID, hashed, changedAt); err != nil {
		return err
	}

	user.PasswordHashed = hashed
	user.PasswordChanged = &changedAt
	user.PasswordResetToken = nil
	user.PasswordResetExpires = nil
	return nil
}

func (s *AuthService) issue(user *model.User) (*model.AuthResult, error) {
	access, refresh, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, err
	}
	return &model.AuthResult{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func (s *AuthService) link(path, token string) string {
	return fmt.Sprintf("%s/%s/%s", s.frontendURL, path, token)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// newOpaqueToken returns a random hex token and the sha256 hash that is
// stored in its place.
func newOpaqueToken() (raw, hash string, err error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate token: %w", err)
	}
	raw = hex.EncodeToString(buf)
	return raw, hashToken(raw), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
