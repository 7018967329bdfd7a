package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/rbac-backend/internal/model"
)

// TokenRepo persists issued refresh tokens in auth_tokens.  The
// refresh_token column holds the keyed hash of the token, never the token.
// Rows are deleted, not flagged, when a session ends.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

const tokenColumns = "auth_id, user_id, refresh_token, COALESCE(user_agent, ''), COALESCE(ip_address, ''), created_at, expires_at"

func scanToken(s rowScanner) (model.AuthToken, error) {
	var t model.AuthToken
	err := s.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.UserAgent, &t.IPAddress, &t.CreatedAt, &t.ExpiresAt)
	return t, err
}

// CreateTx inserts a session row and sets its ID.
func (r *TokenRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.AuthToken) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO auth_tokens (user_id, refresh_token, user_agent, ip_address, expires_at) VALUES (?, ?, ?, ?, ?)",
		t.UserID, t.TokenHash, t.UserAgent, t.IPAddress, t.ExpiresAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// FindByHashTx locks and returns the row for a refresh token hash,
// whatever its expiry.  Two concurrent refreshes of the same token
// serialize on the row lock; the loser sees sql.ErrNoRows.
func (r *TokenRepo) FindByHashTx(ctx context.Context, tx *sql.Tx, hash string) (model.AuthToken, error) {
	return scanToken(tx.QueryRowContext(ctx,
		"SELECT "+tokenColumns+" FROM auth_tokens WHERE refresh_token = ? LIMIT 1 FOR UPDATE", hash))
}

// FindActiveForUserTx locks and returns the unexpired row matching hash and
// owned by userID.
func (r *TokenRepo) FindActiveForUserTx(ctx context.Context, tx *sql.Tx, userID uint64, hash string, now time.Time) (model.AuthToken, error) {
	return scanToken(tx.QueryRowContext(ctx,
		"SELECT "+tokenColumns+" FROM auth_tokens WHERE user_id = ? AND refresh_token = ? AND expires_at > ? LIMIT 1 FOR UPDATE",
		userID, hash, now))
}

// DeleteTx removes one session row.
func (r *TokenRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM auth_tokens WHERE auth_id = ?", id)
	return err
}

// DeleteByIDForUserTx removes a session only if userID owns it.  It returns
// the number of rows removed (0 or 1).
func (r *TokenRepo) DeleteByIDForUserTx(ctx context.Context, tx *sql.Tx, id, userID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx, "DELETE FROM auth_tokens WHERE auth_id = ? AND user_id = ?", id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteAllForUserTx removes every session of userID regardless of expiry.
func (r *TokenRepo) DeleteAllForUserTx(ctx context.Context, tx *sql.Tx, userID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx, "DELETE FROM auth_tokens WHERE user_id = ?", userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteOthersForUserTx removes every session of userID except the one
// whose hash is keepHash.
func (r *TokenRepo) DeleteOthersForUserTx(ctx context.Context, tx *sql.Tx, userID uint64, keepHash string) (int64, error) {
	res, err := tx.ExecContext(ctx,
		"DELETE FROM auth_tokens WHERE user_id = ? AND refresh_token <> ?", userID, keepHash)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountForUserTx counts the sessions of userID, live or expired.
func (r *TokenRepo) CountForUserTx(ctx context.Context, tx *sql.Tx, userID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM auth_tokens WHERE user_id = ?", userID).Scan(&n)
	return n, err
}

// ListByUser returns the sessions of userID, newest first.
func (r *TokenRepo) ListByUser(ctx context.Context, userID uint64) ([]model.AuthToken, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+tokenColumns+" FROM auth_tokens WHERE user_id = ? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.AuthToken{}
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteExpired purges rows whose expiry is at or before now.  Nothing in
// the request path calls it; it backs the reaper command.
func (r *TokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM auth_tokens WHERE expires_at <= ?", now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
