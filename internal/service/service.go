// Package service implements the auth, account, role and user flows.  Every
// flow that writes runs in exactly one transaction and reports failures as
// apperr kinds; capability checks happen in route middleware before a
// service is reached.
package service

import (
	"context"
	"database/sql"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/rbac-backend/internal/apperr"
	"github.com/iliyamo/rbac-backend/internal/database"
)

func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	return database.WithTx(ctx, db, fn)
}

func wrap(op string, err error) error { return apperr.Wrap(op, err) }

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }

// nowUTC reads f, or the wall clock when f is nil.
func nowUTC(f func() time.Time) time.Time {
	if f == nil {
		return time.Now().UTC()
	}
	return f().UTC()
}

// Column widths of the core schema; longer input is rejected or clipped
// before it reaches MySQL.
const (
	maxEmailLen     = 50
	maxFullNameLen  = 50
	maxRoleNameLen  = 30
	maxUserAgentLen = 255
	maxIPLen        = 45
)

func tooLong(s string, n int) bool { return utf8.RuneCountInString(s) > n }

// clip cuts s to at most n runes.
func clip(s string, n int) string {
	if !tooLong(s, n) {
		return s
	}
	return string([]rune(s)[:n])
}
