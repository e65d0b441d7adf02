package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"inkwell/internal/query"
)

// ErrNotFound is returned by Store when no row matches.
var ErrNotFound = errors.New("record not found")

// Table binds an entity type to its SQL table.
type Table[T any] struct {
	Resource *query.Resource

	// Insertable returns the column values written by Insert.
	Insertable func(rec *T) map[string]interface{}
	// Updatable returns the column values Update may write.
	Updatable func(rec *T) map[string]interface{}
	// Private columns are loaded by single-row reads but never listed.
	Private []string
}

// Store is the generic persistence used by the resource factory.
type Store[T any] interface {
	Insert(ctx context.Context, rec *T) error
	FindByID(ctx context.Context, id int64, scope ...sq.Sqlizer) (*T, error)
	Update(ctx context.Context, id int64, rec *T, columns []string) error
	Delete(ctx context.Context, id int64) error
	SoftDelete(ctx context.Context, id int64) error
	List(ctx context.Context, f *query.Features) ([]T, int, error)
	Resource() *query.Resource
}

type sqlStore[T any] struct {
	db    *sqlx.DB
	table Table[T]
}

// NewStore returns a Store for table backed by db.
func NewStore[T any](db *sqlx.DB, table Table[T]) Store[T] {
	return &sqlStore[T]{db: db, table: table}
}

func (s *sqlStore[T]) Resource() *query.Resource {
	return s.table.Resource
}

func (s *sqlStore[T]) columns() []string {
	return append(s.table.Resource.DefaultColumns(), s.table.Private...)
}

func (s *sqlStore[T]) returning() string {
	return "RETURNING " + strings.Join(s.columns(), ", ")
}

// Insert writes rec and scans the stored row (ids, defaults, timestamps) back into it.
func (s *sqlStore[T]) Insert(ctx context.Context, rec *T) error {
	q, args, err := query.Builder.
		Insert(s.table.Resource.Table).
		SetMap(s.table.Insertable(rec)).
		Suffix(s.returning()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert %s: %w", s.table.Resource.Table, err)
	}

	if err := s.db.QueryRowxContext(ctx, q, args...).StructScan(rec); err != nil {
		return fmt.Errorf("insert %s: %w", s.table.Resource.Table, err)
	}
	return nil
}

func (s *sqlStore[T]) FindByID(ctx context.Context, id int64, scope ...sq.Sqlizer) (*T, error) {
	b := query.Builder.
		Select(s.columns()...).
		From(s.table.Resource.Table).
		Where(sq.Eq{"id": id})
	for _, w := range scope {
		b = b.Where(w)
	}

	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select %s: %w", s.table.Resource.Table, err)
	}

	var rec T
	err = s.db.GetContext(ctx, &rec, q, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.table.Resource.Table, err)
	}
	return &rec, nil
}

// Update writes the named columns of rec and bumps version/updated_at.
func (s *sqlStore[T]) Update(ctx context.Context, id int64, rec *T, columns []string) error {
	values := s.table.Updatable(rec)
	set := make(map[string]interface{}, len(columns)+2)
	for _, col := range columns {
		v, ok := values[col]
		if !ok {
			return fmt.Errorf("update %s: column %q is not updatable", s.table.Resource.Table, col)
		}
		set[col] = v
	}
	set["updated_at"] = sq.Expr("NOW()")
	set["version"] = sq.Expr("version + 1")

	q, args, err := query.Builder.
		Update(s.table.Resource.Table).
		SetMap(set).
		Where(sq.Eq{"id": id}).
		Suffix(s.returning()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update %s: %w", s.table.Resource.Table, err)
	}

	err = s.db.QueryRowxContext(ctx, q, args...).StructScan(rec)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", s.table.Resource.Table, err)
	}
	return nil
}

func (s *sqlStore[T]) Delete(ctx context.Context, id int64) error {
	return s.exec(ctx, "delete", query.Builder.Delete(s.table.Resource.Table).Where(sq.Eq{"id": id}))
}

func (s *sqlStore[T]) SoftDelete(ctx context.Context, id int64) error {
	return s.exec(ctx, "soft delete", query.Builder.
		Update(s.table.Resource.Table).
		Set("deleted", true).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}))
}

func (s *sqlStore[T]) exec(ctx context.Context, op string, b sq.Sqlizer) error {
	q, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build %s %s: %w", op, s.table.Resource.Table, err)
	}

	result, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, s.table.Resource.Table, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// List runs the page and count queries built by f.
func (s *sqlStore[T]) List(ctx context.Context, f *query.Features) ([]T, int, error) {
	q, args, err := f.ToSQL()
	if err != nil {
		return nil, 0, err
	}

	records := []T{}
	if err := s.db.SelectContext(ctx, &records, q, args...); err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", s.table.Resource.Table, err)
	}

	cq, cargs, err := f.CountSQL()
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := s.db.GetContext(ctx, &total, cq, cargs...); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", s.table.Resource.Table, err)
	}

	return records, total, nil
}
