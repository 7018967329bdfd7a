package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/rbac-backend/internal/apperr"
	"github.com/iliyamo/rbac-backend/internal/rbac"
)

func TestProfileWithAccess(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectQuery(`FROM users WHERE user_id = \?`).WithArgs(uint64(7)).
		WillReturnRows(userRows(userOpts{role: 3}))
	h.mock.ExpectQuery(`SELECT capability_id FROM role_capabilities`).WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"capability_id"}).AddRow(rbac.ReadUser))

	p, caps, err := h.account.Profile(context.Background(), 7, true)
	require.NoError(t, err)
	assert.Equal(t, Profile{Email: "ana@example.com", FullName: "Ana", Role: 3}, p)
	assert.Equal(t, []string{rbac.ReadUser}, caps)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestRoleAccess_DeletedUserHasNone(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectQuery(`FROM users WHERE user_id = \?`).WillReturnRows(sqlmock.NewRows(userCols))

	caps, err := h.account.RoleAccess(context.Background(), 7)
	require.NoError(t, err)
	assert.NotNil(t, caps)
	assert.Empty(t, caps)
}

func TestChangePassword(t *testing.T) {
	hash := mustHash(t, "old")

	t.Run("wrong old password", func(t *testing.T) {
		h := newHarness(t)
		h.mock.ExpectBegin()
		h.mock.ExpectQuery(`FROM users WHERE user_id = \?`).WillReturnRows(userRows(userOpts{hash: hash}))
		h.mock.ExpectRollback()

		err := h.account.ChangePassword(context.Background(), 7, "nope", "new", "new")
		assert.Equal(t, "invalid old password", apperr.Message(err, true))
		require.NoError(t, h.mock.ExpectationsWereMet())
	})

	t.Run("ok", func(t *testing.T) {
		h := newHarness(t)
		h.mock.ExpectBegin()
		h.mock.ExpectQuery(`FROM users WHERE user_id = \?`).WillReturnRows(userRows(userOpts{hash: hash}))
		h.mock.ExpectExec(`UPDATE users SET password = \?, updated_at`).WithArgs(sqlmock.AnyArg(), uint64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		h.mock.ExpectCommit()

		require.NoError(t, h.account.ChangePassword(context.Background(), 7, "old", "new", "new"))
		require.NoError(t, h.mock.ExpectationsWereMet())
	})

	t.Run("confirm mismatch", func(t *testing.T) {
		h := newHarness(t)
		err := h.account.ChangePassword(context.Background(), 7, "old", "new", "other")
		assert.Equal(t, "invalid confirm password", apperr.Message(err, true))
	})
}

func TestSessions(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectQuery(`FROM auth_tokens WHERE user_id = \? ORDER BY created_at DESC`).WithArgs(uint64(7)).
		WillReturnRows(tokenRows(3, 7, "h3", testNow.Add(time.Hour)))

	got, err := h.account.Sessions(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Session{AuthID: 3, CreatedAt: testNow.Add(-time.Hour), IPAddress: "10.0.0.1", UserAgent: "curl/8"}, got[0])
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestRevokeSession(t *testing.T) {
	t.Run("not mine", func(t *testing.T) {
		h := newHarness(t)
		h.mock.ExpectBegin()
		h.mock.ExpectExec(`DELETE FROM auth_tokens WHERE auth_id = \? AND user_id = \?`).
			WithArgs(uint64(99), uint64(7)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		h.mock.ExpectRollback()

		err := h.account.RevokeSession(context.Background(), 7, 99)
		assert.Equal(t, "token not found", apperr.Message(err, true))
		require.NoError(t, h.mock.ExpectationsWereMet())
	})

	t.Run("mine", func(t *testing.T) {
		h := newHarness(t)
		h.mock.ExpectBegin()
		h.mock.ExpectExec(`DELETE FROM auth_tokens WHERE auth_id = \? AND user_id = \?`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		h.mock.ExpectCommit()

		require.NoError(t, h.account.RevokeSession(context.Background(), 7, 3))
		require.NoError(t, h.mock.ExpectationsWereMet())
	})
}

func TestRevokeOtherSessions(t *testing.T) {
	h := newHarness(t)
	keep := h.issuer.HashRefresh("current")

	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM auth_tokens WHERE user_id = \?`).WillReturnRows(countRows(3))
	h.mock.ExpectExec(`DELETE FROM auth_tokens WHERE user_id = \? AND refresh_token <> \?`).
		WithArgs(uint64(7), keep).
		WillReturnResult(sqlmock.NewResult(0, 2))
	h.mock.ExpectCommit()
	require.NoError(t, h.account.RevokeOtherSessions(context.Background(), 7, "current"))

	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM auth_tokens WHERE user_id = \?`).WillReturnRows(countRows(0))
	h.mock.ExpectRollback()
	err := h.account.RevokeOtherSessions(context.Background(), 7, "current")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, h.mock.ExpectationsWereMet())
}
