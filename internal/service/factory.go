package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	sq "github.com/Masterminds/squirrel"

	"inkwell/internal/model"
	"inkwell/internal/query"
	"inkwell/internal/repository"
)

// Descriptor declares how a resource plugs into the generic factory.
type Descriptor[T any] struct {
	// SoftDelete marks rows deleted instead of removing them.
	SoftDelete bool
	// FilterDeleted hides soft-deleted rows from reads.
	FilterDeleted bool
	// Scope is applied to every read regardless of caller.
	Scope []sq.Sqlizer

	// SetUser stamps the caller on create. Nil means no author column.
	SetUser func(rec *T, userID int64)
	// Owner returns the owning user id. Nil means route gating alone decides.
	Owner func(rec *T) int64
	// ListScope adds caller-dependent predicates to List.
	ListScope func(caller *model.User, params url.Values) []sq.Sqlizer
	// Prepare normalises a record before validation on create and update.
	Prepare func(rec *T)
	// Populate fills derived fields (authors, replies) after reads.
	Populate func(ctx context.Context, recs []T) error

	// Updatable lists the API fields a PATCH may change.
	Updatable []string
}

// Page is one page of a list plus its metadata.
type Page[T any] struct {
	Items       []T
	CurrentPage int
	TotalPages  int
	Total       int
}

// Mutation applies a change that cannot travel in a JSON patch (an uploaded
// image, say) and returns the columns it touched.
type Mutation[T any] func(rec *T) []string

// Factory implements create/read/update/delete/list for any resource
// described by a Descriptor.
type Factory[T any] struct {
	store repository.Store[T]
	desc  Descriptor[T]
}

func NewFactory[T any](store repository.Store[T], desc Descriptor[T]) *Factory[T] {
	return &Factory[T]{store: store, desc: desc}
}

func (f *Factory[T]) readScope() []sq.Sqlizer {
	scope := append([]sq.Sqlizer{}, f.desc.Scope...)
	if f.desc.FilterDeleted {
		scope = append(scope, sq.Eq{"deleted": false})
	}
	return scope
}

func (f *Factory[T]) populate(ctx context.Context, recs []T) error {
	if f.desc.Populate == nil || len(recs) == 0 {
		return nil
	}
	return f.desc.Populate(ctx, recs)
}

// Create stamps the caller, validates and inserts rec.
func (f *Factory[T]) Create(ctx context.Context, caller *model.User, rec *T) (*T, error) {
	if f.desc.SetUser != nil && caller != nil {
		f.desc.SetUser(rec, caller.ID)
	}
	if f.desc.Prepare != nil {
		f.desc.Prepare(rec)
	}
	if err := model.Validate(rec); err != nil {
		return nil, err
	}

	if err := f.store.Insert(ctx, rec); err != nil {
		return nil, err
	}

	recs := []T{*rec}
	if err := f.populate(ctx, recs); err != nil {
		return nil, err
	}
	return &recs[0], nil
}

// Fetch returns the stored record without populating it.
func (f *Factory[T]) Fetch(ctx context.Context, id int64) (*T, error) {
	rec, err := f.store.FindByID(ctx, id, f.readScope()...)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, model.ErrDocumentNotFound
	}
	return rec, err
}

// GetOne returns a populated record.
func (f *Factory[T]) GetOne(ctx context.Context, id int64) (*T, error) {
	rec, err := f.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	recs := []T{*rec}
	if err := f.populate(ctx, recs); err != nil {
		return nil, err
	}
	return &recs[0], nil
}

// Authorize reports whether caller may modify rec: admins always, otherwise
// only the owner.
func (f *Factory[T]) Authorize(caller *model.User, rec *T) bool {
	if caller == nil {
		return false
	}
	if caller.IsAdmin() || f.desc.Owner == nil {
		return true
	}
	return f.desc.Owner(rec) == caller.ID
}

// Update merges patch into the stored record, keeping only updatable
// fields, revalidates and persists it.
func (f *Factory[T]) Update(ctx context.Context, caller *model.User, id int64, patch map[string]json.RawMessage, mutations ...Mutation[T]) (*T, error) {
	rec, err := f.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !f.Authorize(caller, rec) {
		return nil, model.ErrUpdateForbidden
	}

	allowed := make(map[string]json.RawMessage, len(f.desc.Updatable))
	columns := make([]string, 0, len(f.desc.Updatable))
	res := f.store.Resource()
	for _, field := range f.desc.Updatable {
		v, ok := patch[field]
		if !ok {
			continue
		}
		allowed[field] = v
		columns = append(columns, res.Columns[field])
	}

	if len(allowed) > 0 {
		raw, err := json.Marshal(allowed)
		if err != nil {
			return nil, fmt.Errorf("encode patch: %w", err)
		}
		if err := json.Unmarshal(raw, rec); err != nil {
			return nil, model.ErrInvalidJSONBody
		}
	}
	for _, m := range mutations {
		columns = append(columns, m(rec)...)
	}

	if f.desc.Prepare != nil {
		f.desc.Prepare(rec)
	}
	if err := model.Validate(rec); err != nil {
		return nil, err
	}

	if len(columns) == 0 {
		return f.GetOne(ctx, id)
	}
	if err := f.store.Update(ctx, id, rec, columns); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.ErrDocumentNotFound
		}
		return nil, err
	}

	recs := []T{*rec}
	if err := f.populate(ctx, recs); err != nil {
		return nil, err
	}
	return &recs[0], nil
}

// Delete removes rec, or marks it deleted for soft-delete resources. The
// removed record is returned so callers can release attached resources.
func (f *Factory[T]) Delete(ctx context.Context, caller *model.User, id int64) (*T, error) {
	rec, err := f.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if !f.Authorize(caller, rec) {
		return nil, model.ErrDeleteForbidden
	}

	if f.desc.SoftDelete {
		err = f.store.SoftDelete(ctx, id)
	} else {
		err = f.store.Delete(ctx, id)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, model.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List runs the query pipeline over the caller's visible rows. scope adds
// route-level predicates such as the parent post of a comment list.
func (f *Factory[T]) List(ctx context.Context, caller *model.User, params url.Values, scope ...sq.Sqlizer) (*Page[T], error) {
	base := f.readScope()
	if f.desc.ListScope != nil {
		base = append(base, f.desc.ListScope(caller, params)...)
	}
	base = append(base, scope...)

	features := query.New(f.store.Resource(), params, base...).Apply()
	if err := features.Err(); err != nil {
		return nil, err
	}

	recs, total, err := f.store.List(ctx, features)
	if err != nil {
		return nil, err
	}
	if err := f.populate(ctx, recs); err != nil {
		return nil, err
	}

	return &Page[T]{
		Items:       recs,
		CurrentPage: features.Page(),
		TotalPages:  features.TotalPages(total),
		Total:       total,
	}, nil
}
