package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/rbac-backend/internal/apperr"
	"github.com/iliyamo/rbac-backend/internal/config"
	"github.com/iliyamo/rbac-backend/internal/model"
	"github.com/iliyamo/rbac-backend/internal/repository"
	"github.com/iliyamo/rbac-backend/internal/utils"
)

// AccountService serves the caller's own profile and sessions.
type AccountService struct {
	DB     *sql.DB
	Users  *repository.UserRepo
	Roles  *repository.RoleRepo
	Tokens *repository.TokenRepo
	Issuer *utils.TokenIssuer
	Cfg    config.Config
}

func NewAccountService(db *sql.DB, users *repository.UserRepo, roles *repository.RoleRepo,
	tokens *repository.TokenRepo, issuer *utils.TokenIssuer, cfg config.Config) *AccountService {
	return &AccountService{DB: db, Users: users, Roles: roles, Tokens: tokens, Issuer: issuer, Cfg: cfg}
}

// Profile is the public view of the caller.
type Profile struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     int    `json:"role"`
}

// Session is one live or expired refresh token of the caller.
type Session struct {
	AuthID    uint64    `json:"auth_id"`
	CreatedAt time.Time `json:"created_at"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
}

// Profile returns the caller's profile and, when withAccess is set, the
// capability ids of their role.
func (s *AccountService) Profile(ctx context.Context, userID uint64, withAccess bool) (Profile, []string, error) {
	u, err := s.Users.GetByID(ctx, userID)
	if isNoRows(err) {
		return Profile{}, nil, apperr.NotFound("profile is not found")
	}
	if err != nil {
		return Profile{}, nil, wrap("get profile", err)
	}
	p := Profile{Email: u.Email, FullName: u.FullName, Role: u.RoleID}
	if !withAccess {
		return p, nil, nil
	}
	caps, err := s.Roles.CapabilityIDs(ctx, u.RoleID)
	if err != nil {
		return Profile{}, nil, wrap("get profile", err)
	}
	return p, caps, nil
}

// RoleAccess lists the capability ids granted to the caller's role.  A
// deleted caller has none.
func (s *AccountService) RoleAccess(ctx context.Context, userID uint64) ([]string, error) {
	u, err := s.Users.GetByID(ctx, userID)
	if isNoRows(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, wrap("get role access", err)
	}
	caps, err := s.Roles.CapabilityIDs(ctx, u.RoleID)
	return caps, wrap("get role access", err)
}

func (s *AccountService) UpdateProfile(ctx context.Context, userID uint64, fullName string) error {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return apperr.Validation("full name is required")
	}
	if tooLong(fullName, maxFullNameLen) {
		return apperr.Validation("full name is too long")
	}
	err := withTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := s.Users.GetByIDTx(ctx, tx, userID); err != nil {
			if isNoRows(err) {
				return apperr.NotFound("profile not found")
			}
			return err
		}
		return s.Users.UpdateProfileTx(ctx, tx, userID, fullName)
	})
	return wrap("update profile", err)
}

func (s *AccountService) ChangePassword(ctx context.Context, userID uint64, oldPassword, newPassword, confirm string) error {
	if oldPassword == "" {
		return apperr.Validation("old password is required")
	}
	if err := validateNewPassword(newPassword, confirm); err != nil {
		return err
	}
	err := withTx(ctx, s.DB, func(tx *sql.Tx) error {
		u, err := s.Users.GetByIDTx(ctx, tx, userID)
		if isNoRows(err) {
			return apperr.NotFound("profile not found")
		}
		if err != nil {
			return err
		}
		ok, err := utils.VerifyPassword(u.PasswordHash, oldPassword)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Validation("invalid old password")
		}
		hash, err := utils.HashPassword(newPassword, s.Cfg.BcryptCost)
		if err != nil {
			return err
		}
		return s.Users.UpdatePasswordTx(ctx, tx, userID, hash)
	})
	return wrap("change password", err)
}

// Sessions lists the caller's sessions, newest first.
func (s *AccountService) Sessions(ctx context.Context, userID uint64) ([]Session, error) {
	rows, err := s.Tokens.ListByUser(ctx, userID)
	if err != nil {
		return nil, wrap("get sessions", err)
	}
	out := make([]Session, 0, len(rows))
	for _, t := range rows {
		out = append(out, sessionFromModel(t))
	}
	return out, nil
}

// RevokeSession deletes one of the caller's sessions by id.
func (s *AccountService) RevokeSession(ctx context.Context, userID, tokenID uint64) error {
	if tokenID == 0 {
		return apperr.Validation("token id is required")
	}
	err := withTx(ctx, s.DB, func(tx *sql.Tx) error {
		n, err := s.Tokens.DeleteByIDForUserTx(ctx, tx, tokenID, userID)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("token not found")
		}
		return nil
	})
	return wrap("revoke session", err)
}

// RevokeOtherSessions deletes every session of the caller except the one
// identified by the supplied refresh token.
func (s *AccountService) RevokeOtherSessions(ctx context.Context, userID uint64, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return apperr.Validation("refresh token is required")
	}
	keep := s.Issuer.HashRefresh(raw)
	err := withTx(ctx, s.DB, func(tx *sql.Tx) error {
		n, err := s.Tokens.CountForUserTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.NotFound("token not found")
		}
		_, err = s.Tokens.DeleteOthersForUserTx(ctx, tx, userID, keep)
		return err
	})
	return wrap("revoke other sessions", err)
}

func sessionFromModel(t model.AuthToken) Session {
	return Session{AuthID: t.ID, CreatedAt: t.CreatedAt, IPAddress: t.IPAddress, UserAgent: t.UserAgent}
}
