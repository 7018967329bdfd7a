package service

import (
	"context"
	"database/sql"
	"errors"
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

// UserService is the admin side of user management.
type UserService struct {
	DB     *sql.DB
	Users  *repository.UserRepo
	Roles  *repository.RoleRepo
	Tokens *repository.TokenRepo
	Mailer mail.Mailer
	Logger *logrus.Logger
	Cfg    config.Config
}

func NewUserService(db *sql.DB, users *repository.UserRepo, roles *repository.RoleRepo, tokens *repository.TokenRepo,
	mailer mail.Mailer, logger *logrus.Logger, cfg config.Config) *UserService {
	return &UserService{DB: db, Users: users, Roles: roles, Tokens: tokens, Mailer: mailer, Logger: logger, Cfg: cfg}
}

// NewUser is the body of user creation.
type NewUser struct {
	Email    string
	FullName string
	RoleID   int
}

// UserDetail is the public view of one user.
type UserDetail struct {
	ID         uint64     `json:"user_id"`
	FullName   string     `json:"full_name"`
	Email      string     `json:"email"`
	IsActive   bool       `json:"is_active"`
	IsVerified bool       `json:"is_verified"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at"`
}

func (s *UserService) List(ctx context.Context, p repository.Page) ([]model.UserSummary, int64, error) {
	users, total, err := s.Users.List(ctx, p)
	if err != nil {
		return nil, 0, wrap("get users", err)
	}
	return users, total, nil
}

func (s *UserService) Detail(ctx context.Context, id uint64) (UserDetail, error) {
	if id == 0 {
		return UserDetail{}, apperr.Validation("user id is required")
	}
	u, err := s.Users.GetByID(ctx, id)
	if isNoRows(err) {
		return UserDetail{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return UserDetail{}, wrap("get user detail", err)
	}
	return UserDetail{
		ID: u.ID, FullName: u.FullName, Email: u.Email,
		IsActive: u.IsActive, IsVerified: u.IsVerified,
		CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt,
	}, nil
}

// Create adds an active, unverified user with a random password and a
// verification code, then mails the code.  The user sets a real password
// through confirm-account.  Mail failure is logged, not returned.
func (s *UserService) Create(ctx context.Context, actorID uint64, in NewUser) (uint64, error) {
	in.Email = utils.NormalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := validateEmail(in.Email); err != nil {
		return 0, err
	}
	if in.FullName == "" {
		return 0, apperr.Validation("full name is required")
	}
	if tooLong(in.FullName, maxFullNameLen) {
		return 0, apperr.Validation("full name is too long")
	}
	if in.RoleID <= 0 {
		return 0, apperr.Validation("role is required")
	}

	code, err := utils.RandomCode(s.Cfg.CodeLength)
	if err != nil {
		return 0, wrap("create user", err)
	}
	// Nobody ever learns this password; it only keeps the column non-empty
	// until the account is confirmed.
	filler, err := utils.RandomCode(32)
	if err != nil {
		return 0, wrap("create user", err)
	}
	hash, err := utils.HashPassword(filler, s.Cfg.BcryptCost)
	if err != nil {
		return 0, wrap("create user", err)
	}

	u := &model.User{
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
		RoleID:       in.RoleID,
		CreatedBy:    actorID,
		IsActive:     true,
		VerifyCode:   code,
	}
	err = withTx(ctx, s.DB, func(tx *sql.Tx) error {
		exists, err := s.Users.EmailExistsTx(ctx, tx, in.Email)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Validation("email already exists")
		}
		if _, err := s.Roles.GetByIDTx(ctx, tx, in.RoleID); err != nil {
			if isNoRows(err) {
				return apperr.NotFound("role not found")
			}
			return err
		}
		err = s.Users.CreateTx(ctx, tx, u)
		if errors.Is(err, repository.ErrEmailExists) {
			return apperr.Validation("email already exists")
		}
		return err
	})
	if err != nil {
		return 0, wrap("create user", err)
	}

	msg := mail.AccountVerification(in.Email, code, s.Cfg.FrontendAppURL)
	if s.Mailer == nil {
		s.Logger.WithField("to", in.Email).Warn("create user: no mailer configured, mail dropped")
	} else if err := s.Mailer.Send(ctx, msg); err != nil {
		s.Logger.WithError(err).WithField("to", in.Email).Warn("create user: send email failed")
	}
	return u.ID, nil
}

// ChangeStatus activates or deactivates a user.  Deactivation also ends
// every session of that user.
func (s *UserService) ChangeStatus(ctx context.Context, id uint64, active *bool) error {
	if id == 0 {
		return apperr.Validation("user id is required")
	}
	if active == nil {
		return apperr.Validation("active status is required")
	}
	err := withTx(ctx, s.DB, func(tx *sql.Tx) error {
		if err := s.requireUser(ctx, tx, id); err != nil {
			return err
		}
		if err := s.Users.SetActiveTx(ctx, tx, id, *active); err != nil {
			return err
		}
		if *active {
			return nil
		}
		_, err := s.Tokens.DeleteAllForUserTx(ctx, tx, id)
		return err
	})
	return wrap("change user status", err)
}

// ChangeRole moves a user to another existing role.
func (s *UserService) ChangeRole(ctx context.Context, id uint64, roleID int) error {
	if id == 0 {
		return apperr.Validation("user id is required")
	}
	if roleID <= 0 {
		return apperr.Validation("role is required")
	}
	err := withTx(ctx, s.DB, func(tx *sql.Tx) error {
		if err := s.requireUser(ctx, tx, id); err != nil {
			return err
		}
		if _, err := s.Roles.GetByIDTx(ctx, tx, roleID); err != nil {
			if isNoRows(err) {
				return apperr.NotFound("role not found")
			}
			return err
		}
		return s.Users.SetRoleTx(ctx, tx, id, roleID)
	})
	return wrap("change user role", err)
}

// Delete soft-deletes a user and ends their sessions.
func (s *UserService) Delete(ctx context.Context, id uint64) error {
	if id == 0 {
		return apperr.Validation("user id is required")
	}
	err := withTx(ctx, s.DB, func(tx *sql.Tx) error {
		if err := s.requireUser(ctx, tx, id); err != nil {
			return err
		}
		if err := s.Users.SoftDeleteTx(ctx, tx, id); err != nil {
			return err
		}
		_, err := s.Tokens.DeleteAllForUserTx(ctx, tx, id)
		return err
	})
	return wrap("delete user", err)
}

func (s *UserService) requireUser(ctx context.Context, tx *sql.Tx, id uint64) error {
	if _, err := s.Users.GetByIDTx(ctx, tx, id); err != nil {
		if isNoRows(err) {
			return apperr.NotFound("user not found")
		}
		return err
	}
	return nil
}
