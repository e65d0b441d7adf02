package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"inkwell/internal/model"
	"inkwell/internal/query"
)

// UserResource whitelists the user columns exposed to list queries.
var UserResource = &query.Resource{
	Table: "users",
	Columns: map[string]string{
		"id":            "id",
		"username":      "username",
		"fullName":      "full_name",
		"email":         "email",
		"phoneNumber":   "phone_number",
		"role":          "role",
		"avatar":        "avatar",
		"bio":           "bio",
		"emailVerified": "email_verified",
		"createdAt":     "created_at",
		"updatedAt":     "updated_at",
	},
	Order: []string{"id", "username", "fullName", "email", "phoneNumber", "role", "avatar", "bio",
		"emailVerified", "createdAt", "updatedAt"},
	SearchFields: []string{"username", "fullName", "email"},
	DefaultLimit: query.DefaultLimit,
}

// userColumns is the full row, including the private auth columns.
const userColumns = `id, username, full_name, email, phone_number, password_hashed, role, avatar, avatar_key,
	bio, email_verified, welcome_email_sent, active, password_changed_at,
	email_verification_token, email_verification_expires, password_reset_token, password_reset_expires,
	version, created_at, updated_at`

// ActiveUser is the explicit predicate excluding deactivated accounts.
var ActiveUser = sq.Eq{"active": true}

var userTable = Table[model.User]{
	Resource: UserResource,
	Insertable: func(u *model.User) map[string]interface{} {
		return map[string]interface{}{
			"username":                   u.Username,
			"full_name":                  u.FullName,
			"email":                      u.Email,
			"phone_number":               u.PhoneNumber,
			"password_hashed":            u.PasswordHashed,
			"role":                       u.Role,
			"avatar":                     u.Avatar,
			"email_verified":             u.EmailVerified,
			"email_verification_token":   u.EmailVerificationToken,
			"email_verification_expires": u.EmailVerificationExpires,
		}
	},
	Updatable: func(u *model.User) map[string]interface{} {
		return map[string]interface{}{
			"username":       u.Username,
			"full_name":      u.FullName,
			"phone_number":   u.PhoneNumber,
			"role":           u.Role,
			"avatar":         u.Avatar,
			"avatar_key":     u.AvatarKey,
			"bio":            u.Bio,
			"email_verified": u.EmailVerified,
		}
	},
	Private: []string{"avatar_key", "active"},
}

type userRepository struct {
	Store[model.User]
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{Store: NewStore(db, userTable), db: db}
}

// Create inserts a new user, mapping unique violations to domain errors.
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	err := r.Store.Insert(ctx, user)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		switch pqErr.Constraint {
		case "users_email_key":
			return model.ErrEmailExists
		case "users_username_key":
			return model.ErrUsernameExists
		}
	}
	return err
}

func (r *userRepository) getOne(ctx context.Context, where string, args ...interface{}) (*model.User, error) {
	stmt := `SELECT ` + userColumns + ` FROM users WHERE active = TRUE AND ` + where
	var user model.User
	err := r.db.GetContext(ctx, &user, stmt, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// GetByID returns an active user including private auth columns.
func (r *userRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getOne(ctx, `id = $1`, id)
}

// GetByEmail looks up an active user by lowercased email.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getOne(ctx, `email = $1`, email)
}

// GetByVerificationToken matches an unexpired verification token hash.
func (r *userRepository) GetByVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error) {
	return r.getOne(ctx, `email_verification_token = $1 AND email_verification_expires > $2`, tokenHash, now)
}

// GetByResetToken matches an unexpired password reset token hash.
func (r *userRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error) {
	return r.getOne(ctx, `password_reset_token = $1 AND password_reset_expires > $2`, tokenHash, now)
}

// ExistsByEmail checks all rows, active or not, since the unique index does too.
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email)
	if err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}
	return exists, nil
}

func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username)
	if err != nil {
		return false, fmt.Errorf("check username exists: %w", err)
	}
	return exists, nil
}

func (r *userRepository) execOne(ctx context.Context, op, stmt string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// SetVerificationToken stores (or clears, with nil) the verification token hash.
func (r *userRepository) SetVerificationToken(ctx context.Context, id int64, tokenHash *string, expires *time.Time) error {
	return r.execOne(ctx, "set verification token", `
		UPDATE users SET email_verification_token = $1, email_verification_expires = $2, updated_at = NOW()
		WHERE id = $3
	`, tokenHash, expires, id)
}

// MarkVerified moves a pending account to verified and clears its token.
// It reports false when the account was already verified.
func (r *userRepository) MarkVerified(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET email_verified = 'verified', email_verification_token = NULL, email_verification_expires = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND email_verified = 'pending'
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark verified: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows == 1, nil
}

// MarkWelcomeSent flips the welcome flag, reporting false if it was already set.
func (r *userRepository) MarkWelcomeSent(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET welcome_email_sent = TRUE WHERE id = $1 AND welcome_email_sent = FALSE
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark welcome sent: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows == 1, nil
}

// SetResetToken stores (or clears, with nil) the password reset token hash.
func (r *userRepository) SetResetToken(ctx context.Context, id int64, tokenHash *string, expires *time.Time) error {
	return r.execOne(ctx, "set reset token", `
		UPDATE users SET password_reset_token = $1, password_reset_expires = $2, updated_at = NOW()
		WHERE id = $3
	`, tokenHash, expires, id)
}

// UpdatePassword stores a new hash, stamps password_changed_at and clears any reset token.
func (r *userRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string, changedAt time.Time) error {
	return r.execOne(ctx, "update password", `
		UPDATE users
		SET password_hashed = $1, password_changed_at = $2,
		    password_reset_token = NULL, password_reset_expires = NULL,
		    version = version + 1, updated_at = NOW()
		WHERE id = $3
	`, passwordHash, changedAt, id)
}

// Deactivate marks the account inactive; the row is kept.
func (r *userRepository) Deactivate(ctx context.Context, id int64) error {
	return r.execOne(ctx, "deactivate user", `
		UPDATE users SET active = FALSE, updated_at = NOW() WHERE id = $1 AND active = TRUE
	`, id)
}

// GetSummaries returns public summaries of active users keyed by id.
func (r *userRepository) GetSummaries(ctx context.Context, ids []int64) (map[int64]model.UserSummary, error) {
	out := make(map[int64]model.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var users []model.UserSummary
	err := r.db.SelectContext(ctx, &users, `
		SELECT id, username, full_name, avatar FROM users WHERE id = ANY($1) AND active = TRUE
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get user summaries: %w", err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}
