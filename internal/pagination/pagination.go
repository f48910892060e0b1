// Package pagination implements page/per_page/keyword/order handling for
// list endpoints backed by Postgres.
package pagination

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// Params are the list query parameters shared by every list endpoint.
type Params struct {
	Page    int    `form:"page" json:"page"`
	PerPage int    `form:"per_page" json:"per_page"`
	Keyword string `form:"keyword" json:"keyword,omitempty"`
	Order   string `form:"order" json:"order,omitempty"`
}

// Normalize clamps page and per_page into their valid ranges.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = DefaultPerPage
	}
	if p.PerPage > MaxPerPage {
		p.PerPage = MaxPerPage
	}
	p.Keyword = strings.TrimSpace(p.Keyword)
	return p
}

func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Meta describes the page that was returned.
type Meta struct {
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

func NewMeta(page, perPage, total int) Meta {
	totalPages := 0
	if total > 0 && perPage > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(perPage)))
	}
	return Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1 && totalPages > 0,
	}
}

// OrderBy is one resolved sort key.
type OrderBy struct {
	Field  string
	Column string
	Desc   bool
}

// ParseOrder parses "field:dir;field2:dir". Unknown fields are dropped,
// a missing or unrecognized direction means ascending.
func ParseOrder(order string, sortable map[string]string) []OrderBy {
	var out []OrderBy
	for _, part := range strings.Split(order, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field, dir, _ := strings.Cut(part, ":")
		field = strings.TrimSpace(field)
		column, ok := sortable[field]
		if !ok {
			continue
		}
		out = append(out, OrderBy{
			Field:  field,
			Column: column,
			Desc:   strings.EqualFold(strings.TrimSpace(dir), "desc"),
		})
	}
	return out
}

type condition struct {
	expr string
	args []any
}

// Query is a paginated SELECT. Columns and From are trusted SQL fragments;
// user input only ever reaches the statement as bind arguments or through
// the Sortable whitelist.
type Query struct {
	Columns       string
	From          string
	SearchColumns []string
	Sortable      map[string]string
	DefaultOrder  string

	conds []condition
}

// Where adds an AND condition. Each ? in expr is bound to the next arg.
func (q *Query) Where(expr string, args ...any) *Query {
	q.conds = append(q.conds, condition{expr: expr, args: args})
	return q
}

// Build renders the count and page statements for p.
func (q *Query) Build(p Params) (countSQL string, countArgs []any, pageSQL string, pageArgs []any) {
	p = p.Normalize()

	var args []any
	bind := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var where []string
	for _, c := range q.conds {
		expr := c.expr
		for _, a := range c.args {
			expr = strings.Replace(expr, "?", bind(a), 1)
		}
		where = append(where, expr)
	}
	if p.Keyword != "" && len(q.SearchColumns) > 0 {
		ph := bind("%" + p.Keyword + "%")
		ors := make([]string, len(q.SearchColumns))
		for i, col := range q.SearchColumns {
			ors[i] = col + " ILIKE " + ph
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}

	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	countSQL = "SELECT COUNT(*) FROM " + q.From + whereSQL
	countArgs = append([]any(nil), args...)

	order := ParseOrder(p.Order, q.Sortable)
	if len(order) == 0 {
		order = ParseOrder(q.DefaultOrder, q.Sortable)
	}
	orderSQL := ""
	if len(order) > 0 {
		keys := make([]string, len(order))
		for i, o := range order {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			keys[i] = o.Column + " " + dir
		}
		orderSQL = " ORDER BY " + strings.Join(keys, ", ")
	}

	limit := bind(p.PerPage)
	offset := bind(p.Offset())
	pageSQL = "SELECT " + q.Columns + " FROM " + q.From + whereSQL + orderSQL + " LIMIT " + limit + " OFFSET " + offset
	return countSQL, countArgs, pageSQL, args
}

// Queryer is satisfied by *sql.DB and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Fetch runs q and scans one page of rows with scan.
func Fetch[T any](ctx context.Context, db Queryer, q *Query, p Params, scan func(*sql.Rows) (T, error)) ([]T, Meta, error) {
	p = p.Normalize()
	countSQL, countArgs, pageSQL, pageArgs := q.Build(p)

	var total int
	if err := db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, Meta{}, fmt.Errorf("count: %w", err)
	}

	items := make([]T, 0, p.PerPage)
	if total > 0 {
		rows, err := db.QueryContext(ctx, pageSQL, pageArgs...)
		if err != nil {
			return nil, Meta{}, fmt.Errorf("list: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			item, err := scan(rows)
			if err != nil {
				return nil, Meta{}, fmt.Errorf("scan: %w", err)
			}
			items = append(items, item)
		}
		if err := rows.Err(); err != nil {
			return nil, Meta{}, err
		}
	}
	return items, NewMeta(p.Page, p.PerPage, total), nil
}
