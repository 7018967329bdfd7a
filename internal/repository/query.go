package repository

import (
	"context"
	"database/sql"
	"strings"
)

// querier is satisfied by both *sql.DB and *sql.Tx so read helpers can run
// inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// Page describes a list request.  Limit -1 returns every row.
type Page struct {
	Search string
	Page   int
	Limit  int
}

// Normalize applies the list defaults: page 1, limit 10.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit == 0 || p.Limit < -1 {
		p.Limit = 10
	}
	return p
}

// Clause returns the LIMIT/OFFSET suffix and its args, or nothing when all
// rows were requested.
func (p Page) Clause() (string, []any) {
	if p.Limit == -1 {
		return "", nil
	}
	return " LIMIT ? OFFSET ?", []any{p.Limit, (p.Page - 1) * p.Limit}
}

// LikePattern builds a case-insensitive LIKE argument.
func LikePattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}
