package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/rbac-backend/internal/apperr"
)

var client = Client{UserAgent: "curl/8", IP: "10.0.0.1"}

func expectLogin(h *harness, hash string, stored *string) {
	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`FROM users WHERE email = \? AND is_deleted = 0`).
		WithArgs("ana@example.com").
		WillReturnRows(userRows(userOpts{hash: hash}))
	h.mock.ExpectExec(`INSERT INTO auth_tokens`).
		WithArgs(uint64(7), captureString{stored}, "curl/8", "10.0.0.1", sameTime{testNow.Add(7 * 24 * time.Hour)}).
		WillReturnResult(sqlmock.NewResult(100, 1))
	h.mock.ExpectCommit()
}

func TestLogin_PersistsOneSession(t *testing.T) {
	h := newHarness(t)
	var stored string
	expectLogin(h, mustHash(t, "s3cret"), &stored)

	out, err := h.auth.Login(context.Background(), " ana@example.com ", "s3cret", client)
	require.NoError(t, err)
	assert.Equal(t, "bearer", out.TokenType)

	sub, err := h.issuer.Verify(out.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "7", sub)
	assert.Equal(t, h.issuer.HashRefresh(out.RefreshToken), stored, "only the keyed hash is stored")
	assert.NotEqual(t, out.RefreshToken, stored)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestLogin_Validation(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name, email, password, msg string
	}{
		{"missing email", "", "x", "email is required"},
		{"bad email", "not-an-email", "x", "invalid email format"},
		{"missing password", "ana@example.com", "", "password is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.auth.Login(context.Background(), tt.email, tt.password, client)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
			assert.Equal(t, tt.msg, apperr.Message(err, true))
		})
	}
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestLogin_UserStateChecks(t *testing.T) {
	tests := []struct {
		name string
		rows *sqlmock.Rows
		kind apperr.Kind
		msg  string
	}{
		{"unknown user", sqlmock.NewRows(userCols), apperr.KindNotFound, "user not found"},
		{"unverified", userRows(userOpts{unverified: true}), apperr.KindValidation, "user is not verified"},
		{"inactive", userRows(userOpts{inactive: true}), apperr.KindValidation, "user is not active"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.mock.ExpectBegin()
			h.mock.ExpectQuery(`FROM users WHERE email = \?`).WillReturnRows(tt.rows)
			h.mock.ExpectRollback()

			_, err := h.auth.Login(context.Background(), "ana@example.com", "pw", client)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.Equal(t, tt.msg, apperr.Message(err, true))
			require.NoError(t, h.mock.ExpectationsWereMet())
		})
	}
}

// Wrong password once, then the right one: the first attempt writes
// nothing, the second writes exactly one session.
func TestLogin_WrongThenRightPassword(t *testing.T) {
	h := newHarness(t)
	hash := mustHash(t, "right")

	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`FROM users WHERE email = \?`).WillReturnRows(userRows(userOpts{hash: hash}))
	h.mock.ExpectRollback()

	_, err := h.auth.Login(context.Background(), "ana@example.com", "wrong", client)
	require.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "incorrect password", apperr.Message(err, true))

	var stored string
	expectLogin(h, hash, &stored)
	_, err = h.auth.Login(context.Background(), "ana@example.com", "right", client)
	require.NoError(t, err)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestLogin_CorruptHashIsInternal(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`FROM users WHERE email = \?`).WillReturnRows(userRows(userOpts{hash: "not-bcrypt"}))
	h.mock.ExpectRollback()

	_, err := h.auth.Login(context.Background(), "ana@example.com", "pw", client)
	assert.True(t, apperr.Is(err, apperr.KindInternal))
	assert.Equal(t, "login failed", apperr.Message(err, true))
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestLogin_DatabaseErrorIsInternal(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectBegin().WillReturnError(errDBDown)

	_, err := h.auth.Login(context.Background(), "ana@example.com", "pw", client)
	assert.True(t, apperr.Is(err, apperr.KindInternal))
	assert.ErrorIs(t, err, errDBDown)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestRefresh_RotatesAtomically(t *testing.T) {
	h := newHarness(t)
	oldHash := h.issuer.HashRefresh("old-refresh")
	var newHash string

	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`FROM auth_tokens WHERE refresh_token = \? LIMIT 1 FOR UPDATE`).
		WithArgs(oldHash).
		WillReturnRows(tokenRows(50, 7, oldHash, testNow.Add(time.Hour)))
	h.mock.ExpectExec(`INSERT INTO auth_tokens`).
		WithArgs(uint64(7), captureString{&newHash}, "curl/8", "10.0.0.1", sameTime{testNow.Add(7 * 24 * time.Hour)}).
		WillReturnResult(sqlmock.NewResult(51, 1))
	h.mock.ExpectExec(`DELETE FROM auth_tokens WHERE auth_id = \?`).
		WithArgs(uint64(50)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectCommit()

	out, err := h.auth.Refresh(context.Background(), "old-refresh", client)
	require.NoError(t, err)
	assert.Equal(t, h.issuer.HashRefresh(out.RefreshToken), newHash)
	assert.NotEqual(t, oldHash, newHash)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestRefresh_ExpiredRowIsDeletedAndCommitted(t *testing.T) {
	h := newHarness(t)
	hash := h.issuer.HashRefresh("stale")

	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`FROM auth_tokens WHERE refresh_token = \?`).
		WithArgs(hash).
		WillReturnRows(tokenRows(60, 7, hash, testNow.Add(-time.Second)))
	h.mock.ExpectExec(`DELETE FROM auth_tokens WHERE auth_id = \?`).
		WithArgs(uint64(60)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectCommit()

	_, err := h.auth.Refresh(context.Background(), "stale", client)
	require.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.Equal(t, "refresh token is expired", apperr.Message(err, true))

	// The row is gone now, so the second call fails on the lookup.
	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`FROM auth_tokens WHERE refresh_token = \?`).
		WithArgs(hash).
		WillReturnRows(sqlmock.NewRows(tokenCols))
	h.mock.ExpectRollback()

	_, err = h.auth.Refresh(context.Background(), "stale", client)
	require.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.Equal(t, "invalid refresh token", apperr.Message(err, true))
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestRefresh_Empty(t *testing.T) {
	h := newHarness(t)
	_, err := h.auth.Refresh(context.Background(), "  ", client)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestForgotPassword_StoresCodeAndMails(t *testing.T) {
	h := newHarness(t)
	var code string

	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`FROM users WHERE email = \?`).WillReturnRows(userRows(userOpts{}))
	h.mock.ExpectExec(`UPDATE users SET reset_code = \?`).
		WithArgs(captureString{&code}, uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectCommit()

	require.NoError(t, h.auth.ForgotPassword(context.Background(), "ana@example.com"))
	assert.Len(t, code, 6)
	require.Len(t, h.mailer.sent, 1)
	assert.Contains(t, h.mailer.sent[0].HTML, code)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestForgotPassword_MailFailureIsSwallowed(t *testing.T) {
	h := newHarness(t)
	h.mailer.err = errors.New("smtp: 421 service not available")

	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`FROM users WHERE email = \?`).WillReturnRows(userRows(userOpts{}))
	h.mock.ExpectExec(`UPDATE users SET reset_code = \?`).WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectCommit()

	assert.NoError(t, h.auth.ForgotPassword(context.Background(), "ana@example.com"))
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`FROM users WHERE email = \?`).WillReturnRows(sqlmock.NewRows(userCols))
	h.mock.ExpectRollback()

	err := h.auth.ForgotPassword(context.Background(), "ghost@example.com")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Empty(t, h.mailer.sent)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestResetPassword_CodeWorksOnce(t *testing.T) {
	h := newHarness(t)
	in := CodeInput{Email: "ana@example.com", Code: "123456", NewPassword: "n3w", ConfirmPassword: "n3w"}

	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`FROM users WHERE email = \?`).WillReturnRows(userRows(userOpts{resetCode: "123456"}))
	h.mock.ExpectExec(`UPDATE users SET password = \?, reset_code = ''`).
		WithArgs(sqlmock.AnyArg(), uint64(7), "123456").
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectCommit()
	require.NoError(t, h.auth.ResetPassword(context.Background(), in))

	// Second attempt: the stored code was cleared.
	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`FROM users WHERE email = \?`).WillReturnRows(userRows(userOpts{resetCode: ""}))
	h.mock.ExpectRollback()
	err := h.auth.ResetPassword(context.Background(), in)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, "invalid code", apperr.Message(err, true))

	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestResetPassword_LostRaceIsInvalidCode(t *testing.T) {
	h := newHarness(t)
	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`FROM users WHERE email = \?`).WillReturnRows(userRows(userOpts{resetCode: "123456"}))
	h.mock.ExpectExec(`UPDATE users SET password = \?, reset_code = ''`).WillReturnResult(sqlmock.NewResult(0, 0))
	h.mock.ExpectRollback()

	err := h.auth.ResetPassword(context.Background(),
		CodeInput{Email: "ana@example.com", Code: "123456", NewPassword: "a", ConfirmPassword: "a"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestResetPassword_Validation(t *testing.T) {
	h := newHarness(t)
	err := h.auth.ResetPassword(context.Background(),
		CodeInput{Email: "ana@example.com", Code: "1", NewPassword: "a", ConfirmPassword: "b"})
	assert.Equal(t, "invalid confirm password", apperr.Message(err, true))

	err = h.auth.ResetPassword(context.Background(), CodeInput{Email: "ana@example.com"})
	assert.Equal(t, "code is required", apperr.Message(err, true))
}

func TestConfirmAccount_CodeWorksOnce(t *testing.T) {
	h := newHarness(t)
	in := CodeInput{Email: "ana@example.com", Code: "654321", NewPassword: "n3w", ConfirmPassword: "n3w"}

	// Unverified and even inactive users can confirm: this is activation.
	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`FROM users WHERE email = \?`).
		WillReturnRows(userRows(userOpts{unverified: true, verifyCode: "654321"}))
	h.mock.ExpectExec(`UPDATE users SET password = \?, verify_code = '', is_verified = 1, verified_at = \?`).
		WithArgs(sqlmock.AnyArg(), sameTime{testNow}, uint64(7), "654321").
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectCommit()
	require.NoError(t, h.auth.ConfirmAccount(context.Background(), in))

	h.mock.ExpectBegin()
	h.mock.ExpectQuery(`FROM users WHERE email = \?`).WillReturnRows(userRows(userOpts{}))
	h.mock.ExpectRollback()
	err := h.auth.ConfirmAccount(context.Background(), in)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	hash := h.issuer.HashRefresh("mine")

	t.Run("unknown token", func(t *testing.T) {
		h.mock.ExpectBegin()
		h.mock.ExpectQuery(`WHERE user_id = \? AND refresh_token = \? AND expires_at > \?`).
			WithArgs(uint64(7), hash, sameTime{testNow}).
			WillReturnRows(sqlmock.NewRows(tokenCols))
		h.mock.ExpectRollback()

		err := h.auth.Logout(context.Background(), 7, "mine")
		assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
		require.NoError(t, h.mock.ExpectationsWereMet())
	})

	t.Run("deletes own row", func(t *testing.T) {
		h.mock.ExpectBegin()
		h.mock.ExpectQuery(`WHERE user_id = \? AND refresh_token = \?`).
			WillReturnRows(tokenRows(70, 7, hash, testNow.Add(time.Hour)))
		h.mock.ExpectExec(`DELETE FROM auth_tokens WHERE auth_id = \?`).
			WithArgs(uint64(70)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		h.mock.ExpectCommit()

		require.NoError(t, h.auth.Logout(context.Background(), 7, "mine"))
		require.NoError(t, h.mock.ExpectationsWereMet())
	})

	t.Run("empty token", func(t *testing.T) {
		err := h.auth.Logout(context.Background(), 7, "")
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})
}

// logout-all with three live sessions reports 3, and none of the three old
// refresh tokens can be exchanged afterwards.
func TestLogoutAll_ThenRefreshFails(t *testing.T) {
	h := newHarness(t)

	h.mock.ExpectBegin()
	h.mock.ExpectExec(`DELETE FROM auth_tokens WHERE user_id = \?`).
		WithArgs(uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	h.mock.ExpectCommit()

	n, err := h.auth.LogoutAll(context.Background(), 7)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	for _, raw := range []string{"r1", "r2", "r3"} {
		h.mock.ExpectBegin()
		h.mock.ExpectQuery(`FROM auth_tokens WHERE refresh_token = \?`).
			WithArgs(h.issuer.HashRefresh(raw)).
			WillReturnRows(sqlmock.NewRows(tokenCols))
		h.mock.ExpectRollback()

		_, err := h.auth.Refresh(context.Background(), raw, client)
		assert.True(t, apperr.Is(err, apperr.KindForbidden), raw)
	}
	require.NoError(t, h.mock.ExpectationsWereMet())
}
