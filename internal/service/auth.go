package service

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/rbac-backend/internal/apperr"
	"github.com/iliyamo/rbac-backend/internal/config"
	"github.com/iliyamo/rbac-backend/internal/mail"
	"github.com/iliyamo/rbac-backend/internal/model"
	"github.com/iliyamo/rbac-backend/internal/repository"
	"github.com/iliyamo/rbac-backend/internal/utils"
)

// AuthService owns the session lifecycle: login, refresh rotation, logout
// and the one-time code flows.
type AuthService struct {
	DB     *sql.DB
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
	Issuer *utils.TokenIssuer
	Mailer mail.Mailer
	Logger *logrus.Logger
	Cfg    config.Config
	Now    func() time.Time
}

func NewAuthService(db *sql.DB, users *repository.UserRepo, tokens *repository.TokenRepo,
	issuer *utils.TokenIssuer, mailer mail.Mailer, logger *logrus.Logger, cfg config.Config) *AuthService {
	return &AuthService{DB: db, Users: users, Tokens: tokens, Issuer: issuer, Mailer: mailer, Logger: logger, Cfg: cfg}
}

// Client is the audit metadata stored with a session.
type Client struct {
	UserAgent string
	IP        string
}

// Tokens is the login/refresh result.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// CodeInput carries reset-password and confirm-account requests.
type CodeInput struct {
	Email           string
	Code            string
	NewPassword     string
	ConfirmPassword string
}

func validateEmail(email string) error {
	if email == "" {
		return apperr.Validation("email is required")
	}
	if tooLong(email, maxEmailLen) {
		return apperr.Validation("email is too long")
	}
	if !utils.IsValidEmail(email) {
		return apperr.Validation("invalid email format")
	}
	return nil
}

func (in CodeInput) validate() error {
	if err := validateEmail(in.Email); err != nil {
		return err
	}
	if in.Code == "" {
		return apperr.Validation("code is required")
	}
	return validateNewPassword(in.NewPassword, in.ConfirmPassword)
}

func validateNewPassword(newPassword, confirm string) error {
	if newPassword == "" {
		return apperr.Validation("new password is required")
	}
	if len(newPassword) > utils.MaxPasswordBytes {
		return apperr.Validation("new password is too long")
	}
	if confirm == "" {
		return apperr.Validation("confirm password is required")
	}
	if confirm != newPassword {
		return apperr.Validation("invalid confirm password")
	}
	return nil
}

func codesEqual(stored, supplied string) bool {
	return stored != "" && subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}

// startSession mints a token pair for userID and stores the refresh hash.
func (s *AuthService) startSession(ctx context.Context, tx *sql.Tx, userID uint64, client Client) (Tokens, error) {
	pair, err := s.Issuer.Issue(strconv.FormatUint(userID, 10))
	if err != nil {
		return Tokens{}, err
	}
	row := &model.AuthToken{
		UserID:    userID,
		TokenHash: s.Issuer.HashRefresh(pair.RefreshToken),
		UserAgent: clip(client.UserAgent, maxUserAgentLen),
		IPAddress: clip(client.IP, maxIPLen),
		ExpiresAt: nowUTC(s.Now).Add(s.Issuer.RefreshTTL()),
	}
	if err := s.Tokens.CreateTx(ctx, tx, row); err != nil {
		return Tokens{}, err
	}
	return Tokens{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, TokenType: "bearer"}, nil
}

// Login checks credentials and opens a session.
func (s *AuthService) Login(ctx context.Context, email, password string, client Client) (Tokens, error) {
	email = utils.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return Tokens{}, err
	}
	if password == "" {
		return Tokens{}, apperr.Validation("password is required")
	}

	var (
		out    Tokens
		userID uint64
	)
	err := withTx(ctx, s.DB, func(tx *sql.Tx) error {
		u, err := s.Users.GetByEmailTx(ctx, tx, email)
		if isNoRows(err) {
			return apperr.NotFound("user not found")
		}
		if err != nil {
			return err
		}
		if !u.IsVerified {
			return apperr.Validation("user is not verified")
		}
		if !u.IsActive {
			return apperr.Validation("user is not active")
		}
		ok, err := utils.VerifyPassword(u.PasswordHash, password)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Validation("incorrect password")
		}
		userID = u.ID
		out, err = s.startSession(ctx, tx, u.ID, client)
		return err
	})
	if err != nil {
		return Tokens{}, wrap("login", err)
	}
	s.Logger.WithFields(logrus.Fields{"user_id": userID, "ip": client.IP}).Info("login succeeded")
	return out, nil
}

// Refresh rotates a refresh token.  The old row is deleted and a new one
// inserted in the same transaction.  An expired row is deleted and that
// deletion is committed before the Forbidden error is returned.
func (s *AuthService) Refresh(ctx context.Context, raw string, client Client) (Tokens, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Tokens{}, apperr.Validation("refresh token is required")
	}
	hash := s.Issuer.HashRefresh(raw)

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Tokens{}, wrap("refresh token", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	row, err := s.Tokens.FindByHashTx(ctx, tx, hash)
	if isNoRows(err) {
		return Tokens{}, apperr.Forbidden("invalid refresh token")
	}
	if err != nil {
		return Tokens{}, wrap("refresh token", err)
	}

	if row.Expired(nowUTC(s.Now)) {
		if err := s.Tokens.DeleteTx(ctx, tx, row.ID); err != nil {
			return Tokens{}, wrap("refresh token", err)
		}
		if err := tx.Commit(); err != nil {
			return Tokens{}, wrap("refresh token", err)
		}
		committed = true
		return Tokens{}, apperr.Forbidden("refresh token is expired")
	}

	out, err := s.startSession(ctx, tx, row.UserID, client)
	if err != nil {
		return Tokens{}, wrap("refresh token", err)
	}
	if err := s.Tokens.DeleteTx(ctx, tx, row.ID); err != nil {
		return Tokens{}, wrap("refresh token", err)
	}
	if err := tx.Commit(); err != nil {
		return Tokens{}, wrap("refresh token", err)
	}
	committed = true
	return out, nil
}

// ForgotPassword stores a fresh reset code and mails it.  Mail failure is
// logged and does not fail the request; the code is already committed.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = utils.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	var code string
	err := withTx(ctx, s.DB, func(tx *sql.Tx) error {
		u, err := s.Users.GetByEmailTx(ctx, tx, email)
		if isNoRows(err) {
			return apperr.NotFound("email not found")
		}
		if err != nil {
			return err
		}
		if !u.IsVerified {
			return apperr.Validation("user is not verified")
		}
		if !u.IsActive {
			return apperr.Validation("user is not active")
		}
		if code, err = utils.RandomCode(s.Cfg.CodeLength); err != nil {
			return err
		}
		return s.Users.SetResetCodeTx(ctx, tx, u.ID, code)
	})
	if err != nil {
		return wrap("forgot password", err)
	}

	s.sendBestEffort(ctx, "forgot password", mail.ResetPassword(email, code, s.Cfg.FrontendAppURL))
	return nil
}

// ResetPassword consumes a reset code and sets a new password.
func (s *AuthService) ResetPassword(ctx context.Context, in CodeInput) error {
	in.Email = utils.NormalizeEmail(in.Email)
	if err := in.validate(); err != nil {
		return err
	}
	err := withTx(ctx, s.DB, func(tx *sql.Tx) error {
		u, err := s.Users.GetByEmailTx(ctx, tx, in.Email)
		if isNoRows(err) {
			return apperr.NotFound("email not found")
		}
		if err != nil {
			return err
		}
		if !u.IsActive {
			return apperr.Validation("user is not active")
		}
		if !u.IsVerified {
			return apperr.Validation("user is not verified")
		}
		if !codesEqual(u.ResetCode, in.Code) {
			return apperr.Validation("invalid code")
		}
		hash, err := utils.HashPassword(in.NewPassword, s.Cfg.BcryptCost)
		if err != nil {
			return err
		}
		ok, err := s.Users.ConsumeResetCodeTx(ctx, tx, u.ID, in.Code, hash)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Validation("invalid code")
		}
		return nil
	})
	return wrap("reset password", err)
}

// ConfirmAccount consumes a verification code: the first-activation path for
// admin-created users.  No active/verified precondition applies.
func (s *AuthService) ConfirmAccount(ctx context.Context, in CodeInput) error {
	in.Email = utils.NormalizeEmail(in.Email)
	if err := in.validate(); err != nil {
		return err
	}
	err := withTx(ctx, s.DB, func(tx *sql.Tx) error {
		u, err := s.Users.GetByEmailTx(ctx, tx, in.Email)
		if isNoRows(err) {
			return apperr.NotFound("email not found")
		}
		if err != nil {
			return err
		}
		if !codesEqual(u.VerifyCode, in.Code) {
			return apperr.Validation("invalid code")
		}
		hash, err := utils.HashPassword(in.NewPassword, s.Cfg.BcryptCost)
		if err != nil {
			return err
		}
		ok, err := s.Users.ConsumeVerifyCodeTx(ctx, tx, u.ID, in.Code, hash, nowUTC(s.Now))
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Validation("invalid code")
		}
		return nil
	})
	return wrap("confirm account", err)
}

// Logout ends the caller's session identified by raw.  The row must exist,
// be unexpired and belong to userID.
func (s *AuthService) Logout(ctx context.Context, userID uint64, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return apperr.Validation("refresh token is required")
	}
	hash := s.Issuer.HashRefresh(raw)
	err := withTx(ctx, s.DB, func(tx *sql.Tx) error {
		row, err := s.Tokens.FindActiveForUserTx(ctx, tx, userID, hash, nowUTC(s.Now))
		if isNoRows(err) {
			return apperr.Unauthorized("invalid refresh token")
		}
		if err != nil {
			return err
		}
		return s.Tokens.DeleteTx(ctx, tx, row.ID)
	})
	return wrap("logout", err)
}

// LogoutAll ends every session of userID, expired or not, and returns how
// many were removed.
func (s *AuthService) LogoutAll(ctx context.Context, userID uint64) (int64, error) {
	var n int64
	err := withTx(ctx, s.DB, func(tx *sql.Tx) error {
		var err error
		n, err = s.Tokens.DeleteAllForUserTx(ctx, tx, userID)
		return err
	})
	if err != nil {
		return 0, wrap("logout all", err)
	}
	return n, nil
}

func (s *AuthService) sendBestEffort(ctx context.Context, op string, m mail.Message) {
	if s.Mailer == nil {
		s.Logger.WithField("to", m.To).Warnf("%s: no mailer configured, mail dropped", op)
		return
	}
	if err := s.Mailer.Send(ctx, m); err != nil {
		s.Logger.WithError(err).WithField("to", m.To).Warnf("%s: send email failed", op)
	}
}
