package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/rbac-backend/internal/apperr"
	"github.com/iliyamo/rbac-backend/internal/model"
	"github.com/iliyamo/rbac-backend/internal/rbac"
	"github.com/iliyamo/rbac-backend/internal/repository"
)

// RoleService manages roles and their capability grants.  The superadmin
// role can be read but never edited or deleted through it.
type RoleService struct {
	DB       *sql.DB
	Roles    *repository.RoleRepo
	Users    *repository.UserRepo
	Registry *rbac.Registry
}

func NewRoleService(db *sql.DB, roles *repository.RoleRepo, users *repository.UserRepo, reg *rbac.Registry) *RoleService {
	return &RoleService{DB: db, Roles: roles, Users: users, Registry: reg}
}

// RoleInput is the body of create and update.  A nil Capabilities on
// update leaves the grants untouched; an empty slice revokes them all.
type RoleInput struct {
	ID           int
	Name         string
	Capabilities []string
}

func (s *RoleService) List(ctx context.Context, p repository.Page) ([]model.Role, int64, error) {
	roles, total, err := s.Roles.List(ctx, p)
	if err != nil {
		return nil, 0, wrap("get roles", err)
	}
	return roles, total, nil
}

// Detail returns a role and, when withAccess is set, its capability ids.
func (s *RoleService) Detail(ctx context.Context, id int, withAccess bool) (model.Role, []string, error) {
	if id <= 0 {
		return model.Role{}, nil, apperr.Validation("role id is required")
	}
	role, err := s.Roles.GetByID(ctx, id)
	if isNoRows(err) {
		return model.Role{}, nil, apperr.NotFound("role not found")
	}
	if err != nil {
		return model.Role{}, nil, wrap("get role", err)
	}
	if !withAccess {
		return role, nil, nil
	}
	caps, err := s.Roles.CapabilityIDs(ctx, id)
	if err != nil {
		return model.Role{}, nil, wrap("get role", err)
	}
	return role, caps, nil
}

// Catalog returns every registered module with its capabilities.
func (s *RoleService) Catalog() []rbac.Module {
	return s.Registry.ListAll()
}

// Capabilities returns the capability ids granted to role id.
func (s *RoleService) Capabilities(ctx context.Context, id int) ([]string, error) {
	if id <= 0 {
		return nil, apperr.Validation("role id is required")
	}
	if _, err := s.Roles.GetByID(ctx, id); err != nil {
		if isNoRows(err) {
			return nil, apperr.NotFound("role not found")
		}
		return nil, wrap("get role capability", err)
	}
	caps, err := s.Roles.CapabilityIDs(ctx, id)
	return caps, wrap("get role capability", err)
}

// checkCapabilities drops duplicates and rejects ids no module declares.
func (s *RoleService) checkCapabilities(ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		if !s.Registry.Has(id) {
			return nil, apperr.Validation(fmt.Sprintf("unknown capability: %s", id))
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// Create inserts a role and its grants in one transaction.
func (s *RoleService) Create(ctx context.Context, actorID uint64, in RoleInput) (int, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return 0, apperr.Validation("role name is required")
	}
	if tooLong(name, maxRoleNameLen) {
		return 0, apperr.Validation("role name is too long")
	}
	caps, err := s.checkCapabilities(in.Capabilities)
	if err != nil {
		return 0, err
	}
	var id int
	err = withTx(ctx, s.DB, func(tx *sql.Tx) error {
		var err error
		if id, err = s.Roles.CreateTx(ctx, tx, name, actorID); err != nil {
			return err
		}
		return s.Roles.AddCapabilitiesTx(ctx, tx, id, caps)
	})
	if err != nil {
		return 0, wrap("create role", err)
	}
	return id, nil
}

// Update renames a role and, when in.Capabilities is non-nil, replaces its
// grants.  Both happen in one transaction.
func (s *RoleService) Update(ctx context.Context, in RoleInput) error {
	if in.ID <= 0 {
		return apperr.Validation("role id is required")
	}
	if in.ID == model.SuperadminRoleID {
		return apperr.Forbidden("superadmin role cannot be modified")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return apperr.Validation("role name is required")
	}
	if tooLong(name, maxRoleNameLen) {
		return apperr.Validation("role name is too long")
	}
	var caps []string
	if in.Capabilities != nil {
		var err error
		if caps, err = s.checkCapabilities(in.Capabilities); err != nil {
			return err
		}
	}
	err := withTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := s.Roles.GetByIDTx(ctx, tx, in.ID); err != nil {
			if isNoRows(err) {
				return apperr.NotFound("role not found")
			}
			return err
		}
		if err := s.Roles.UpdateNameTx(ctx, tx, in.ID, name); err != nil {
			return err
		}
		if in.Capabilities == nil {
			return nil
		}
		return s.Roles.ReplaceCapabilitiesTx(ctx, tx, in.ID, caps)
	})
	return wrap("update role", err)
}

// Delete removes a role that no live user holds.
func (s *RoleService) Delete(ctx context.Context, id int) error {
	if id <= 0 {
		return apperr.Validation("role id is required")
	}
	if id == model.SuperadminRoleID {
		return apperr.Forbidden("superadmin role cannot be deleted")
	}
	err := withTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := s.Roles.GetByIDTx(ctx, tx, id); err != nil {
			if isNoRows(err) {
				return apperr.NotFound("role not found")
			}
			return err
		}
		n, err := s.Users.CountWithRoleTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Forbidden("role is assigned to existing users and cannot be deleted")
		}
		return s.Roles.DeleteTx(ctx, tx, id)
	})
	return wrap("delete role", err)
}
