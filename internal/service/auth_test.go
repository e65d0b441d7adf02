package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"inkwell/internal/config"
	"inkwell/internal/model"
)

func newTestAuthService(users *mockUserRepository, mailer *mockMailer) *AuthService {
	svc := NewAuthService(users, newTestTokenService(), mailer, &config.Config{
		FrontendURL:      "http://localhost:3000",
		DefaultAvatarURL: "https://cdn.test/default.png",
	})
	svc.bcryptCost = bcrypt.MinCost
	return svc
}

func signupRequest() *model.SignupRequest {
	return &model.SignupRequest{
		Username:        "ada",
		FullName:        "Ada Lovelace",
		Email:           " Ada@Example.com ",
		PhoneNumber:     "0123456789",
		Password:        "password123",
		PasswordConfirm: "password123",
	}
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func verifiedUser(t *testing.T) *model.User {
	return &model.User{
		ID:             7,
		Email:          "ada@example.com",
		FullName:       "Ada Lovelace",
		PasswordHashed: hashed(t, "password123"),
		Role:           model.RoleReader,
		EmailVerified:  model.EmailVerified,
		Active:         true,
	}
}

// =============================================================================
// SIGNUP / VERIFY
// =============================================================================

func TestAuthService_Signup_CreatesPendingAccount(t *testing.T) {
	users := newMockUserRepository()
	mailer := &mockMailer{}
	svc := newTestAuthService(users, mailer)

	user, err := svc.Signup(context.Background(), signupRequest())
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, model.EmailPending, user.EmailVerified)
	assert.Equal(t, model.RoleReader, user.Role)
	assert.Equal(t, "https://cdn.test/default.png", user.Avatar)
	assert.NotEqual(t, "password123", user.PasswordHashed)

	require.Len(t, mailer.calls, 1)
	call := mailer.calls[0]
	assert.Equal(t, "verify", call.template)
	require.True(t, strings.HasPrefix(call.url, "http://localhost:3000/verify-email/"))

	// Only the hash of the emailed token is stored.
	raw := strings.TrimPrefix(call.url, "http://localhost:3000/verify-email/")
	require.NotNil(t, user.EmailVerificationToken)
	assert.Equal(t, hashToken(raw), *user.EmailVerificationToken)
	assert.NotEqual(t, raw, *user.EmailVerificationToken)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), *user.EmailVerificationExpires, time.Minute)
}

func TestAuthService_Signup_Duplicates(t *testing.T) {
	users := newMockUserRepository()
	users.existsByEmailFn = func(ctx context.Context, email string) (bool, error) { return true, nil }
	svc := newTestAuthService(users, &mockMailer{})

	_, err := svc.Signup(context.Background(), signupRequest())
	assert.ErrorIs(t, err, model.ErrEmailExists)
	assert.Empty(t, users.createCalls)

	users.existsByEmailFn = nil
	users.existsByUsernameFn = func(ctx context.Context, username string) (bool, error) { return true, nil }
	_, err = svc.Signup(context.Background(), signupRequest())
	assert.ErrorIs(t, err, model.ErrUsernameExists)
}

func TestAuthService_Signup_ValidatesInput(t *testing.T) {
	users := newMockUserRepository()
	svc := newTestAuthService(users, &mockMailer{})

	req := signupRequest()
	req.PasswordConfirm = "different1"
	_, err := svc.Signup(context.Background(), req)
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)

	req = signupRequest()
	req.FullName = "Ada"
	_, err = svc.Signup(context.Background(), req)
	require.ErrorAs(t, err, &verrs)
	assert.Empty(t, users.createCalls)
}

func TestAuthService_Signup_MailFailureKeepsPendingAccount(t *testing.T) {
	users := newMockUserRepository()
	svc := newTestAuthService(users, &mockMailer{err: errors.New("smtp down")})

	_, err := svc.Signup(context.Background(), signupRequest())
	assert.ErrorIs(t, err, model.ErrEmailDelivery)
	require.Len(t, users.createCalls, 1)
	assert.Equal(t, model.EmailPending, users.createCalls[0].EmailVerified)
}

func TestAuthService_CreateAccount_IsVerified(t *testing.T) {
	users := newMockUserRepository()
	mailer := &mockMailer{}
	svc := newTestAuthService(users, mailer)

	user, err := svc.CreateAccount(context.Background(), &model.CreateUserRequest{SignupRequest: *signupRequest(), Role: model.RoleAuthor})
	require.NoError(t, err)
	assert.True(t, user.IsVerified())
	assert.Equal(t, model.RoleAuthor, user.Role)
	assert.Empty(t, mailer.calls)
}

func TestAuthService_VerifyEmail_InvalidToken(t *testing.T) {
	users := newMockUserRepository()
	svc := newTestAuthService(users, &mockMailer{})

	_, err := svc.VerifyEmail(context.Background(), "nope")
	assert.ErrorIs(t, err, model.ErrTokenInvalidOrUsed)
	assert.Zero(t, users.markVerifiedCalls)
}

func TestAuthService_VerifyEmail_AlreadyVerifiedIsNoop(t *testing.T) {
	users := newMockUserRepository()
	users.getByVerificationTokenFn = func(ctx context.Context, hash string, now time.Time) (*model.User, error) {
		return verifiedUser(t), nil
	}
	mailer := &mockMailer{}
	svc := newTestAuthService(users, mailer)

	redirect, err := svc.VerifyEmail(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, RedirectAlreadyVerified, redirect)
	assert.Zero(t, users.markVerifiedCalls)
	assert.Empty(t, mailer.calls)
}

func TestAuthService_VerifyEmail_SendsWelcomeOnce(t *testing.T) {
	var lookedUp string
	users := newMockUserRepository()
	users.getByVerificationTokenFn = func(ctx context.Context, hash string, now time.Time) (*model.User, error) {
		lookedUp = hash
		return &model.User{ID: 7, Email: "ada@example.com", EmailVerified: model.EmailPending}, nil
	}
	mailer := &mockMailer{}
	svc := newTestAuthService(users, mailer)

	redirect, err := svc.VerifyEmail(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, RedirectVerified, redirect)
	assert.Equal(t, hashToken("tok"), lookedUp)
	assert.Equal(t, 1, users.markVerifiedCalls)
	require.Len(t, mailer.calls, 1)
	assert.Equal(t, "welcome", mailer.calls[0].template)
	assert.Equal(t, 1, users.markWelcomeSentCalls)
}

func TestAuthService_VerifyEmail_WelcomeFailureStillVerifies(t *testing.T) {
	users := newMockUserRepository()
	users.getByVerificationTokenFn = func(ctx context.Context, hash string, now time.Time) (*model.User, error) {
		return &model.User{ID: 7, EmailVerified: model.EmailPending}, nil
	}
	svc := newTestAuthService(users, &mockMailer{welcome: errors.New("smtp down")})

	redirect, err := svc.VerifyEmail(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, RedirectVerified, redirect)
	assert.Zero(t, users.markWelcomeSentCalls)
}

func TestAuthService_VerifyEmail_WelcomeAlreadySent(t *testing.T) {
	users := newMockUserRepository()
	users.getByVerificationTokenFn = func(ctx context.Context, hash string, now time.Time) (*model.User, error) {
		return &model.User{ID: 7, EmailVerified: model.EmailPending, WelcomeEmailSent: true}, nil
	}
	mailer := &mockMailer{}
	svc := newTestAuthService(users, mailer)

	_, err := svc.VerifyEmail(context.Background(), "tok")
	require.NoError(t, err)
	assert.Empty(t, mailer.calls)
}

func TestAuthService_ResendVerification(t *testing.T) {
	users := newMockUserRepository()
	mailer := &mockMailer{}
	svc := newTestAuthService(users, mailer)

	err := svc.ResendVerification(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, model.ErrUserNotFound)

	users.getByEmailFn = func(ctx context.Context, email string) (*model.User, error) { return verifiedUser(t), nil }
	err = svc.ResendVerification(context.Background(), "ada@example.com")
	assert.ErrorIs(t, err, model.ErrAlreadyVerified)

	var stored *string
	users.getByEmailFn = func(ctx context.Context, email string) (*model.User, error) {
		return &model.User{ID: 7, Email: email, EmailVerified: model.EmailPending}, nil
	}
	users.setVerificationTokenFn = func(ctx context.Context, id int64, hash *string, expires *time.Time) error {
		stored = hash
		return nil
	}
	require.NoError(t, svc.ResendVerification(context.Background(), "ada@example.com"))
	require.Len(t, mailer.calls, 1)
	require.NotNil(t, stored)
	assert.Equal(t, hashToken(strings.TrimPrefix(mailer.calls[0].url, "http://localhost:3000/verify-email/")), *stored)
}

// =============================================================================
// LOGIN / REFRESH
// =============================================================================

func TestAuthService_Login(t *testing.T) {
	users := newMockUserRepository()
	svc := newTestAuthService(users, &mockMailer{})
	ctx := context.Background()

	_, err := svc.Login(ctx, &model.LoginRequest{Email: "ada@example.com"})
	assert.ErrorIs(t, err, model.ErrMissingCredentials)

	_, err = svc.Login(ctx, &model.LoginRequest{Email: "ghost@example.com", Password: "password123"})
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)

	user := verifiedUser(t)
	users.getByEmailFn = func(ctx context.Context, email string) (*model.User, error) { return user, nil }

	_, err = svc.Login(ctx, &model.LoginRequest{Email: "ada@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, model.ErrInvalidCredentials)

	res, err := svc.Login(ctx, &model.LoginRequest{Email: "ADA@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, user, res.User)
}

func TestAuthService_Login_PendingEmail(t *testing.T) {
	users := newMockUserRepository()
	users.getByEmailFn = func(ctx context.Context, email string) (*model.User, error) {
		u := verifiedUser(t)
		u.EmailVerified = model.EmailPending
		return u, nil
	}
	svc := newTestAuthService(users, &mockMailer{})

	_, err := svc.Login(context.Background(), &model.LoginRequest{Email: "ada@example.com", Password: "password123"})
	assert.ErrorIs(t, err, model.ErrEmailNotVerified)
}

func TestAuthService_Refresh(t *testing.T) {
	users := newMockUserRepository()
	svc := newTestAuthService(users, &mockMailer{})
	ctx := context.Background()

	_, err := svc.Refresh(ctx, "")
	assert.ErrorIs(t, err, model.ErrNoRefreshToken)

	_, err = svc.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, model.ErrRefreshTokenInvalid)

	access, refresh, err := svc.tokens.IssuePair(7)
	require.NoError(t, err)

	// An access token is not a refresh token.
	_, err = svc.Refresh(ctx, access)
	assert.ErrorIs(t, err, model.ErrRefreshTokenInvalid)

	_, err = svc.Refresh(ctx, refresh)
	assert.ErrorIs(t, err, model.ErrUserInactive)

	user := verifiedUser(t)
	users.getByIDFn = func(ctx context.Context, id int64) (*model.User, error) { return user, nil }
	fresh, err := svc.Refresh(ctx, refresh)
	require.NoError(t, err)
	claims, err := svc.tokens.VerifyAccess(fresh)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)

	changed := time.Now().Add(time.Hour)
	user.PasswordChanged = &changed
	_, err = svc.Refresh(ctx, refresh)
	assert.ErrorIs(t, err, model.ErrPasswordChanged)
}

func TestAuthService_Refresh_Expired(t *testing.T) {
	users := newMockUserRepository()
	svc := newTestAuthService(users, &mockMailer{})

	svc.tokens.now = func() time.Time { return time.Now().Add(-30 * 24 * time.Hour) }
	refresh, err := svc.tokens.SignRefresh(7)
	require.NoError(t, err)
	svc.tokens.now = time.Now

	_, err = svc.Refresh(context.Background(), refresh)
	assert.ErrorIs(t, err, model.ErrTokenExpired)
}

func TestAuthService_Authenticate(t *testing.T) {
	users := newMockUserRepository()
	user := verifiedUser(t)
	users.getByIDFn = func(ctx context.Context, id int64) (*model.User, error) { return user, nil }
	svc := newTestAuthService(users, &mockMailer{})

	access, err := svc.tokens.SignAccess(7)
	require.NoError(t, err)

	got, err := svc.Authenticate(context.Background(), access)
	require.NoError(t, err)
	assert.Equal(t, user, got)

	_, err = svc.Authenticate(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, model.ErrTokenInvalid)
}

// =============================================================================
// PASSWORDS
// =============================================================================

func TestAuthService_ForgotPassword_ClearsTokenOnMailFailure(t *testing.T) {
	users := newMockUserRepository()
	users.getByEmailFn = func(ctx context.Context, email string) (*model.User, error) { return verifiedUser(t), nil }
	mailer := &mockMailer{err: errors.New("smtp down")}
	svc := newTestAuthService(users, mailer)

	err := svc.ForgotPassword(context.Background(), "ada@example.com")
	assert.ErrorIs(t, err, model.ErrEmailDelivery)
	require.Len(t, users.resetTokenCalls, 2)
	assert.NotNil(t, users.resetTokenCalls[0])
	assert.Nil(t, users.resetTokenCalls[1])
}

func TestAuthService_ForgotPassword_SendsLink(t *testing.T) {
	users := newMockUserRepository()
	users.getByEmailFn = func(ctx context.Context, email string) (*model.User, error) { return verifiedUser(t), nil }
	var expires *time.Time
	users.setResetTokenFn = func(ctx context.Context, id int64, hash *string, exp *time.Time) error {
		expires = exp
		return nil
	}
	mailer := &mockMailer{}
	svc := newTestAuthService(users, mailer)

	require.NoError(t, svc.ForgotPassword(context.Background(), "ada@example.com"))
	require.Len(t, mailer.calls, 1)
	assert.True(t, strings.HasPrefix(mailer.calls[0].url, "http://localhost:3000/reset-password/"))
	require.NotNil(t, expires)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), *expires, time.Minute)
}

func TestAuthService_ResetPassword(t *testing.T) {
	users := newMockUserRepository()
	svc := newTestAuthService(users, &mockMailer{})
	ctx := context.Background()
	req := &model.ResetPasswordRequest{Password: "newpassword", PasswordConfirm: "newpassword"}

	_, err := svc.ResetPassword(ctx, "bad", req)
	assert.ErrorIs(t, err, model.ErrResetTokenInvalid)

	var changedAt time.Time
	users.getByResetTokenFn = func(ctx context.Context, hash string, now time.Time) (*model.User, error) {
		return verifiedUser(t), nil
	}
	users.updatePasswordFn = func(ctx context.Context, id int64, hash string, at time.Time) error {
		changedAt = at
		return nil
	}

	res, err := svc.ResetPassword(ctx, "good", req)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(res.User.PasswordHashed), []byte("newpassword")))
	assert.True(t, changedAt.Before(time.Now()))
	assert.NotEmpty(t, res.AccessToken)

	// Tokens issued right after the change must still be accepted.
	claims, err := svc.tokens.VerifyAccess(res.AccessToken)
	require.NoError(t, err)
	assert.False(t, res.User.ChangedPasswordAfter(claims.IssuedAt))
}

func TestAuthService_ChangePassword(t *testing.T) {
	users := newMockUserRepository()
	svc := newTestAuthService(users, &mockMailer{})
	user := verifiedUser(t)

	_, err := svc.ChangePassword(context.Background(), user, &model.ChangePasswordRequest{
		PasswordCurrent: "wrong-one", Password: "newpassword", PasswordConfirm: "newpassword",
	})
	assert.ErrorIs(t, err, model.ErrWrongPassword)

	res, err := svc.ChangePassword(context.Background(), user, &model.ChangePasswordRequest{
		PasswordCurrent: "password123", Password: "newpassword", PasswordConfirm: "newpassword",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.RefreshToken)
	assert.NotNil(t, user.PasswordChanged)
}
