package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strings"

	sq "github.com/Masterminds/squirrel"
	log "github.com/sirupsen/logrus"

	"inkwell/internal/model"
	"inkwell/internal/repository"
)

// selfFields are the profile fields a user may change on their own account.
var selfFields = []string{"fullName", "phoneNumber", "bio", "username"}

// UserService handles profile management and the admin user routes.
type UserService struct {
	factory *Factory[model.User]
	repo    repository.UserRepository
	images  Images
}

func NewUserService(repo repository.UserRepository, images Images) *UserService {
	return &UserService{
		factory: NewFactory[model.User](repo, Descriptor[model.User]{
			Scope: []sq.Sqlizer{repository.ActiveUser},
			Prepare: func(u *model.User) {
				u.Username = strings.TrimSpace(u.Username)
				u.FullName = strings.TrimSpace(u.FullName)
			},
			Updatable: []string{"username", "fullName", "phoneNumber", "role", "bio"},
		}),
		repo:   repo,
		images: images,
	}
}

// Me returns the caller's current profile.
func (s *UserService) Me(ctx context.Context, caller *model.User) (*model.User, error) {
	return s.factory.GetOne(ctx, caller.ID)
}

// present reports whether a patch carries a non-empty value for key.
func present(patch map[string]json.RawMessage, key string) bool {
	v, ok := patch[key]
	if !ok {
		return false
	}
	v = bytes.TrimSpace(v)
	return len(v) > 0 && !bytes.Equal(v, []byte("null")) && !bytes.Equal(v, []byte(`""`))
}

// UpdateMe changes the caller's profile fields and, optionally, their avatar.
// Passwords and the email address cannot be changed here.
func (s *UserService) UpdateMe(ctx context.Context, caller *model.User, patch map[string]json.RawMessage, avatar *ImageFile) (*model.User, error) {
	if present(patch, "password") || present(patch, "passwordConfirm") {
		return nil, model.ErrPasswordUpdate
	}
	if present(patch, "email") {
		return nil, model.ErrEmailUpdate
	}

	filtered := make(map[string]json.RawMessage, len(selfFields))
	for _, f := range selfFields {
		if v, ok := patch[f]; ok {
			filtered[f] = v
		}
	}

	var mutations []Mutation[model.User]
	var uploaded *model.UploadResult
	var oldKey *string
	if avatar != nil {
		res, err := s.images.Upload(ctx, model.AvatarImage, avatar.File, avatar.Header)
		if err != nil {
			return nil, err
		}
		uploaded = res
		mutations = append(mutations, func(u *model.User) []string {
			oldKey = u.AvatarKey
			u.Avatar = res.URL
			u.AvatarKey = &res.Key
			return []string{"avatar", "avatar_key"}
		})
	}

	user, err := s.factory.Update(ctx, caller, caller.ID, filtered, mutations...)
	if err != nil {
		if uploaded != nil {
			s.images.DeleteObject(ctx, &uploaded.Key)
		}
		return nil, err
	}

	s.images.DeleteObject(ctx, oldKey)
	return user, nil
}

// DeleteMe deactivates the caller's account. The row is kept.
func (s *UserService) DeleteMe(ctx context.Context, caller *model.User) error {
	if err := s.repo.Deactivate(ctx, caller.ID); err != nil {
		return err
	}
	log.WithField("user_id", caller.ID).Info("[UserService] Account deactivated")
	return nil
}

// List pages through active users.
func (s *UserService) List(ctx context.Context, caller *model.User, params url.Values) (*Page[model.User], error) {
	return s.factory.List(ctx, caller, params)
}

func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	return s.factory.GetOne(ctx, id)
}

func (s *UserService) Update(ctx context.Context, caller *model.User, id int64, patch map[string]json.RawMessage) (*model.User, error) {
	return s.factory.Update(ctx, caller, id, patch)
}

// Delete permanently removes a user and releases their avatar.
func (s *UserService) Delete(ctx context.Context, caller *model.User, id int64) error {
	user, err := s.factory.Delete(ctx, caller, id)
	if err != nil {
		return err
	}
	s.images.DeleteObject(ctx, user.AvatarKey)
	return nil
}
