package sandbox

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/iliyamo/rbac-backend/internal/apperr"
	"github.com/iliyamo/rbac-backend/internal/database"
	"github.com/iliyamo/rbac-backend/internal/repository"
)

// maxNameLen matches the sandbox_name column.
const maxNameLen = 50

// Service is the sandbox CRUD.  Capability checks are route middleware.
type Service struct {
	DB   *sql.DB
	Repo *Repo
}

func NewService(db *sql.DB, repo *Repo) *Service {
	return &Service{DB: db, Repo: repo}
}

func checkName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation("sandbox name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return "", apperr.Validation("sandbox name is too long")
	}
	return name, nil
}

// lock turns a missing row into NotFound.
func (s *Service) lock(ctx context.Context, tx *sql.Tx, id uint64) error {
	err := s.Repo.LockTx(ctx, tx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("sandbox not found")
	}
	return err
}

func (s *Service) List(ctx context.Context, p repository.Page) ([]Sandbox, int64, error) {
	list, total, err := s.Repo.List(ctx, p)
	if err != nil {
		return nil, 0, apperr.Wrap("get sandbox list", err)
	}
	return list, total, nil
}

func (s *Service) Detail(ctx context.Context, id uint64) (Sandbox, error) {
	if id == 0 {
		return Sandbox{}, apperr.Validation("sandbox id is required")
	}
	sb, err := s.Repo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Sandbox{}, apperr.NotFound("sandbox not found")
	}
	if err != nil {
		return Sandbox{}, apperr.Wrap("get sandbox", err)
	}
	return sb, nil
}

func (s *Service) Create(ctx context.Context, actorID uint64, name string) (uint64, error) {
	name, err := checkName(name)
	if err != nil {
		return 0, err
	}
	var id uint64
	err = database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		var err error
		id, err = s.Repo.CreateTx(ctx, tx, name, actorID)
		return err
	})
	if err != nil {
		return 0, apperr.Wrap("create sandbox", err)
	}
	return id, nil
}

func (s *Service) Update(ctx context.Context, id uint64, name string) error {
	if id == 0 {
		return apperr.Validation("sandbox id is required")
	}
	name, err := checkName(name)
	if err != nil {
		return err
	}
	err = database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		if err := s.lock(ctx, tx, id); err != nil {
			return err
		}
		return s.Repo.UpdateTx(ctx, tx, id, name)
	})
	return apperr.Wrap("update sandbox", err)
}

func (s *Service) Delete(ctx context.Context, id uint64) error {
	if id == 0 {
		return apperr.Validation("sandbox id is required")
	}
	err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		if err := s.lock(ctx, tx, id); err != nil {
			return err
		}
		return s.Repo.DeleteTx(ctx, tx, id)
	})
	return apperr.Wrap("delete sandbox", err)
}
