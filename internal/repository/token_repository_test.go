package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/rbac-backend/internal/model"
)

var tokenCols = []string{"auth_id", "user_id", "refresh_token", "user_agent", "ip_address", "created_at", "expires_at"}

func TestTokenRepo_CreateAndFind(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)
	tx := beginTx(t, db, mock)
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	exp := now.Add(7 * 24 * time.Hour)

	mock.ExpectExec(`INSERT INTO auth_tokens`).
		WithArgs(uint64(3), "abc123", "curl/8", "10.0.0.1", exp).
		WillReturnResult(sqlmock.NewResult(11, 1))
	tok := &model.AuthToken{UserID: 3, TokenHash: "abc123", UserAgent: "curl/8", IPAddress: "10.0.0.1", ExpiresAt: exp}
	require.NoError(t, repo.CreateTx(context.Background(), tx, tok))
	assert.Equal(t, uint64(11), tok.ID)

	mock.ExpectQuery(`FROM auth_tokens WHERE refresh_token = \? LIMIT 1 FOR UPDATE`).
		WithArgs("abc123").
		WillReturnRows(sqlmock.NewRows(tokenCols).AddRow(11, 3, "abc123", "curl/8", "10.0.0.1", now, exp))
	found, err := repo.FindByHashTx(context.Background(), tx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), found.UserID)
	assert.False(t, found.Expired(now))

	mock.ExpectQuery(`FROM auth_tokens WHERE refresh_token = \?`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(tokenCols))
	_, err = repo.FindByHashTx(context.Background(), tx, "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_FindActiveForUserTx(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)
	tx := beginTx(t, db, mock)
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE user_id = \? AND refresh_token = \? AND expires_at > \?`).
		WithArgs(uint64(3), "abc123", now).
		WillReturnRows(sqlmock.NewRows(tokenCols))

	_, err := repo.FindActiveForUserTx(context.Background(), tx, 3, "abc123", now)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_DeleteAllForUserTxReturnsCount(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)
	tx := beginTx(t, db, mock)

	mock.ExpectExec(`DELETE FROM auth_tokens WHERE user_id = \?$`).
		WithArgs(uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteAllForUserTx(context.Background(), tx, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_DeleteOthersForUserTx(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)
	tx := beginTx(t, db, mock)

	mock.ExpectExec(`DELETE FROM auth_tokens WHERE user_id = \? AND refresh_token <> \?`).
		WithArgs(uint64(3), "keep").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.DeleteOthersForUserTx(context.Background(), tx, 3, "keep")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_DeleteExpired(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`DELETE FROM auth_tokens WHERE expires_at <= \?`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 5))

	n, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_ListByUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTokenRepo(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM auth_tokens WHERE user_id = \? ORDER BY created_at DESC`).
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows(tokenCols).
			AddRow(1, 3, "h1", "firefox", "1.1.1.1", now, now.Add(time.Hour)).
			AddRow(2, 3, "h2", "", "", now, now.Add(time.Hour)))

	toks, err := repo.ListByUser(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, "firefox", toks[0].UserAgent)
	require.NoError(t, mock.ExpectationsWereMet())
}
