package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/rbac-backend/internal/model"
)

// RoleRepo stores roles and their role_capabilities edges.  It also
// implements rbac.RoleStore.
type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

const roleColumns = "role_id, role_name, created_by, created_at, updated_at"

func scanRole(s rowScanner) (model.Role, error) {
	var (
		r         model.Role
		updatedAt sql.NullTime
	)
	if err := s.Scan(&r.ID, &r.Name, &r.CreatedBy, &r.CreatedAt, &updatedAt); err != nil {
		return model.Role{}, err
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		r.UpdatedAt = &t
	}
	return r, nil
}

// List returns every role except the superadmin role, filtered by a
// case-insensitive match on its name.
func (r *RoleRepo) List(ctx context.Context, p Page) ([]model.Role, int64, error) {
	p = p.Normalize()
	cond := "role_id <> ?"
	args := []any{model.SuperadminRoleID}
	if s := strings.TrimSpace(p.Search); s != "" {
		cond += " AND LOWER(role_name) LIKE ?"
		args = append(args, LikePattern(s))
	}

	var total int64
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM roles WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, limitArgs := p.Clause()
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+roleColumns+" FROM roles WHERE "+cond+" ORDER BY role_id ASC"+limit,
		append(args, limitArgs...)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []model.Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, role)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// GetByID fetches a role.  sql.ErrNoRows when absent.
func (r *RoleRepo) GetByID(ctx context.Context, id int) (model.Role, error) {
	return scanRole(r.DB.QueryRowContext(ctx,
		"SELECT "+roleColumns+" FROM roles WHERE role_id = ? LIMIT 1", id))
}

// GetByIDTx is GetByID inside tx.
func (r *RoleRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id int) (model.Role, error) {
	return scanRole(tx.QueryRowContext(ctx,
		"SELECT "+roleColumns+" FROM roles WHERE role_id = ? LIMIT 1", id))
}

// CapabilityIDs returns the capability ids granted to roleID.  A role with
// no edges yields an empty, non-nil slice.
func (r *RoleRepo) CapabilityIDs(ctx context.Context, roleID int) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT capability_id FROM role_capabilities WHERE role_id = ? ORDER BY capability_id", roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RoleOfUser returns the role id stored on the user row.  Deleted users are
// not filtered: callers that care check the user first.
func (r *RoleRepo) RoleOfUser(ctx context.Context, userID uint64) (int, error) {
	var roleID int
	err := r.DB.QueryRowContext(ctx, "SELECT role FROM users WHERE user_id = ? LIMIT 1", userID).Scan(&roleID)
	return roleID, err
}

// CreateTx inserts a role and returns its id.
func (r *RoleRepo) CreateTx(ctx context.Context, tx *sql.Tx, name string, createdBy uint64) (int, error) {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO roles (role_name, created_by, is_deleted, updated_at) VALUES (?, ?, 0, NOW())",
		name, createdBy)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return int(id), nil
}

// UpdateNameTx renames a role.
func (r *RoleRepo) UpdateNameTx(ctx context.Context, tx *sql.Tx, id int, name string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE roles SET role_name = ?, updated_at = NOW() WHERE role_id = ?", name, id)
	return err
}

// AddCapabilitiesTx inserts one edge per capability id in a single
// statement.  An empty list is a no-op.
func (r *RoleRepo) AddCapabilitiesTx(ctx context.Context, tx *sql.Tx, roleID int, capIDs []string) error {
	if len(capIDs) == 0 {
		return nil
	}
	values := make([]string, len(capIDs))
	args := make([]any, 0, len(capIDs)*2)
	for i, c := range capIDs {
		values[i] = "(?, ?)"
		args = append(args, roleID, c)
	}
	_, err := tx.ExecContext(ctx,
		"INSERT INTO role_capabilities (role_id, capability_id) VALUES "+strings.Join(values, ", "),
		args...)
	return err
}

// ReplaceCapabilitiesTx drops every edge of roleID and inserts capIDs.
func (r *RoleRepo) ReplaceCapabilitiesTx(ctx context.Context, tx *sql.Tx, roleID int, capIDs []string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM role_capabilities WHERE role_id = ?", roleID); err != nil {
		return err
	}
	return r.AddCapabilitiesTx(ctx, tx, roleID, capIDs)
}

// DeleteTx removes the role and its edges.  Roles are hard-deleted; the
// caller must have checked that no live user still holds it.
func (r *RoleRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id int) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM role_capabilities WHERE role_id = ?", id); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "DELETE FROM roles WHERE role_id = ?", id)
	return err
}
