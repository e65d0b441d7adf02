package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"inkwell/internal/httputil"
	"inkwell/internal/model"
	"inkwell/internal/service"
)

// Users is the profile and admin user management used by UserHandler.
type Users interface {
	Me(ctx context.Context, caller *model.User) (*model.User, error)
	UpdateMe(ctx context.Context, caller *model.User, patch map[string]json.RawMessage, avatar *service.ImageFile) (*model.User, error)
	DeleteMe(ctx context.Context, caller *model.User) error
	List(ctx context.Context, caller *model.User, params url.Values) (*service.Page[model.User], error)
	Get(ctx context.Context, id int64) (*model.User, error)
	Update(ctx context.Context, caller *model.User, id int64, patch map[string]json.RawMessage) (*model.User, error)
	Delete(ctx context.Context, caller *model.User, id int64) error
}

// AccountCreator creates verified accounts on behalf of an admin.
type AccountCreator interface {
	CreateAccount(ctx context.Context, req *model.CreateUserRequest) (*model.User, error)
}

type UserHandler struct {
	users    Users
	accounts AccountCreator
}

func NewUserHandler(users Users, accounts AccountCreator) *UserHandler {
	return &UserHandler{users: users, accounts: accounts}
}

// Me handles GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Me(r.Context(), currentUser(r))
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, userData{User: user})
}

// UpdateMe handles PATCH /api/users/updateMe with a JSON body or a multipart
// form carrying an optional avatar.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	up, err := readUpload(w, r, model.AvatarFormField)
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	defer up.cleanup()

	user, err := h.users.UpdateMe(r.Context(), currentUser(r), up.fields, up.image)
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, userData{User: user})
}

// DeleteMe handles DELETE /api/users/deleteMe. The account is deactivated,
// not removed.
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	if err := h.users.DeleteMe(r.Context(), currentUser(r)); err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /api/users (admin).
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.users.List(r.Context(), currentUser(r), r.URL.Query())
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	writePage(w, page)
}

// Create handles POST /api/users (admin).
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	user, err := h.accounts.CreateAccount(r.Context(), &req)
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, userData{User: user})
}

// Get handles GET /api/users/{id} (admin).
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, userData{User: user})
}

// Update handles PATCH /api/users/{id} (admin).
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	patch := map[string]json.RawMessage{}
	if err := decodeJSON(w, r, &patch); err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	user, err := h.users.Update(r.Context(), currentUser(r), id, patch)
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, userData{User: user})
}

// Delete handles DELETE /api/users/{id} (admin). This is a hard delete.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteErr(w, r, err)
		return
	}

	if err := h.users.Delete(r.Context(), currentUser(r), id); err != nil {
		httputil.WriteErr(w, r, err)
		return
	}
	writeDeleted(w)
}
