// Package query turns list query strings into SQL.
//
// A Features value runs the stages filter → search → sort → fields →
// paginate over a Resource. Stages may be chained in any order but
// pagination only affects the page query; the count query carries the
// filter and search predicates and nothing else.
package query

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

const (
	DefaultPage  = 1
	DefaultLimit = 100
	PostLimit    = 10
	DefaultSort  = "-createdAt"
)

// Reserved keys never become filters.
var reserved = map[string]struct{}{
	"page":   {},
	"limit":  {},
	"sort":   {},
	"fields": {},
	"search": {},
}

// isSentinel reports placeholder values sent by clients for "no filter".
func isSentinel(v string) bool {
	return v == "" || v == "undefined" || v == "All"
}

var operatorKey = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\[(gte|gt|lte|lt)\]$`)

// Builder produces Postgres ($n) placeholders.
var Builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Resource describes a listable table. Columns maps API field names to SQL
// columns; it is also the whitelist for filter, sort and field selection.
type Resource struct {
	Table        string
	Columns      map[string]string
	Order        []string // API fields in default select order
	SearchFields []string
	DefaultLimit int
}

// FieldError reports a query parameter naming an unknown field.
type FieldError struct {
	Param string
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s field: %s", e.Param, e.Field)
}

// Features accumulates the SQL derived from one request's query string.
type Features struct {
	res    *Resource
	params url.Values

	where   []sq.Sqlizer
	orderBy []string
	columns []string
	page    int
	limit   int
	err     error
}

// New starts a pipeline over res. scope predicates are the caller's base
// filter (soft-delete exclusion, draft visibility, parent scoping) and are
// applied to both the page and the count query.
func New(res *Resource, params url.Values, scope ...sq.Sqlizer) *Features {
	f := &Features{
		res:    res,
		params: params,
		page:   DefaultPage,
		limit:  res.defaultLimit(),
	}
	f.where = append(f.where, scope...)
	return f
}

func (r *Resource) defaultLimit() int {
	if r.DefaultLimit > 0 {
		return r.DefaultLimit
	}
	return DefaultLimit
}

// Apply runs every stage in the canonical order.
func (f *Features) Apply() *Features {
	return f.Filter().Search().Sort().LimitFields().Paginate()
}

// Filter turns the non-reserved parameters into equality and range predicates.
func (f *Features) Filter() *Features {
	if f.err != nil {
		return f
	}

	keys := make([]string, 0, len(f.params))
	for k := range f.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if _, skip := reserved[key]; skip {
			continue
		}

		values := make([]string, 0, len(f.params[key]))
		for _, v := range f.params[key] {
			if !isSentinel(v) {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}

		field, op := key, ""
		if m := operatorKey.FindStringSubmatch(key); m != nil {
			field, op = m[1], m[2]
		}

		col, ok := f.res.Columns[field]
		if !ok {
			f.err = &FieldError{Param: "filter", Field: field}
			return f
		}

		switch op {
		case "gte":
			f.where = append(f.where, sq.GtOrEq{col: values[0]})
		case "gt":
			f.where = append(f.where, sq.Gt{col: values[0]})
		case "lte":
			f.where = append(f.where, sq.LtOrEq{col: values[0]})
		case "lt":
			f.where = append(f.where, sq.Lt{col: values[0]})
		default:
			if len(values) == 1 {
				f.where = append(f.where, sq.Eq{col: values[0]})
			} else {
				f.where = append(f.where, sq.Eq{col: values})
			}
		}
	}
	return f
}

// Search applies a case-insensitive partial match over the resource's search
// fields, or over fields when given.
func (f *Features) Search(fields ...string) *Features {
	if f.err != nil {
		return f
	}

	term := strings.TrimSpace(f.params.Get("search"))
	if term == "" || term == "undefined" {
		return f
	}
	if len(fields) == 0 {
		fields = f.res.SearchFields
	}
	if len(fields) == 0 {
		return f
	}

	pattern := "%" + escapeLike(term) + "%"
	or := make(sq.Or, 0, len(fields))
	for _, field := range fields {
		col, ok := f.res.Columns[field]
		if !ok {
			f.err = &FieldError{Param: "search", Field: field}
			return f
		}
		or = append(or, sq.ILike{col: pattern})
	}
	f.where = append(f.where, or)
	return f
}

// Sort orders by the comma-separated sort parameter; "-" means descending.
func (f *Features) Sort() *Features {
	if f.err != nil {
		return f
	}

	raw := f.params.Get("sort")
	if strings.TrimSpace(raw) == "" {
		raw = DefaultSort
	}

	f.orderBy = f.orderBy[:0]
	for _, key := range strings.Split(raw, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		dir := "ASC"
		if strings.HasPrefix(key, "-") {
			dir = "DESC"
			key = key[1:]
		}
		col, ok := f.res.Columns[key]
		if !ok {
			f.err = &FieldError{Param: "sort", Field: key}
			return f
		}
		f.orderBy = append(f.orderBy, col+" "+dir)
	}
	// id breaks ties so pages never overlap
	f.orderBy = append(f.orderBy, "id DESC")
	return f
}

// LimitFields restricts the selected columns. The id column is always kept.
func (f *Features) LimitFields() *Features {
	if f.err != nil {
		return f
	}

	raw := strings.TrimSpace(f.params.Get("fields"))
	if raw == "" {
		f.columns = nil
		return f
	}

	cols := []string{"id"}
	seen := map[string]bool{"id": true}
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		col, ok := f.res.Columns[field]
		if !ok {
			f.err = &FieldError{Param: "fields", Field: field}
			return f
		}
		if !seen[col] {
			seen[col] = true
			cols = append(cols, col)
		}
	}
	f.columns = cols
	return f
}

// Paginate reads page and limit, falling back to defaults for missing or
// non-positive values.
func (f *Features) Paginate() *Features {
	f.page = positiveInt(f.params.Get("page"), DefaultPage)
	f.limit = positiveInt(f.params.Get("limit"), f.res.defaultLimit())
	return f
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// Err returns the first stage error.
func (f *Features) Err() error { return f.err }

func (f *Features) Page() int  { return f.page }
func (f *Features) Limit() int { return f.limit }

// Skip is the number of rows before the current page.
func (f *Features) Skip() int { return (f.page - 1) * f.limit }

// Fields returns the API names of the selected fields, or nil when the
// default projection applies.
func (f *Features) Fields() []string {
	if f.columns == nil {
		return nil
	}
	byCol := make(map[string]string, len(f.res.Columns))
	for field, col := range f.res.Columns {
		byCol[col] = field
	}
	out := make([]string, 0, len(f.columns))
	for _, col := range f.columns {
		out = append(out, byCol[col])
	}
	return out
}

// SelectColumns returns the projection for the page query.
func (f *Features) SelectColumns() []string {
	if f.columns != nil {
		return f.columns
	}
	return f.res.DefaultColumns()
}

// DefaultColumns lists every public column in declaration order.
func (r *Resource) DefaultColumns() []string {
	cols := make([]string, 0, len(r.Order))
	for _, field := range r.Order {
		cols = append(cols, r.Columns[field])
	}
	return cols
}

// SelectBuilder returns the page query.
func (f *Features) SelectBuilder() sq.SelectBuilder {
	b := Builder.Select(f.SelectColumns()...).From(f.res.Table)
	for _, w := range f.where {
		b = b.Where(w)
	}
	if len(f.orderBy) > 0 {
		b = b.OrderBy(f.orderBy...)
	}
	return b.Limit(uint64(f.limit)).Offset(uint64(f.Skip()))
}

// CountBuilder returns a COUNT(*) over the same filter and search predicates.
func (f *Features) CountBuilder() sq.SelectBuilder {
	b := Builder.Select("COUNT(*)").From(f.res.Table)
	for _, w := range f.where {
		b = b.Where(w)
	}
	return b
}

// ToSQL renders the page query.
func (f *Features) ToSQL() (string, []interface{}, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	return f.SelectBuilder().ToSql()
}

// CountSQL renders the count query.
func (f *Features) CountSQL() (string, []interface{}, error) {
	if f.err != nil {
		return "", nil, f.err
	}
	return f.CountBuilder().ToSql()
}

// TotalPages is ceil(total/limit).
func (f *Features) TotalPages(total int) int {
	return int(math.Ceil(float64(total) / float64(f.limit)))
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
