package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/rbac-backend/internal/model"
)

// userNotDeleted is the single soft-delete predicate.  Every user query in
// this file goes through it; RoleRepo.RoleOfUser is the one deliberate
// exception.
const userNotDeleted = "is_deleted = 0"

const userColumns = `user_id, email, password, full_name, role, created_by,
	is_verified, is_active, is_deleted,
	COALESCE(reset_code, ''), COALESCE(verify_code, ''),
	verified_at, created_at, updated_at`

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

func scanUser(s rowScanner) (model.User, error) {
	var (
		u          model.User
		verifiedAt sql.NullTime
		updatedAt  sql.NullTime
	)
	err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.RoleID, &u.CreatedBy,
		&u.IsVerified, &u.IsActive, &u.IsDeleted,
		&u.ResetCode, &u.VerifyCode,
		&verifiedAt, &u.CreatedAt, &updatedAt)
	if err != nil {
		return model.User{}, err
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		u.VerifiedAt = &t
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		u.UpdatedAt = &t
	}
	return u, nil
}

func (r *UserRepo) getByEmail(ctx context.Context, q querier, email string) (model.User, error) {
	email = strings.TrimSpace(email)
	return scanUser(q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ? AND "+userNotDeleted+" LIMIT 1",
		email))
}

func (r *UserRepo) getByID(ctx context.Context, q querier, id uint64) (model.User, error) {
	return scanUser(q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE user_id = ? AND "+userNotDeleted+" LIMIT 1",
		id))
}

// GetByEmail fetches a non-deleted user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.getByEmail(ctx, r.DB, email)
}

// GetByEmailTx is GetByEmail inside tx.
func (r *UserRepo) GetByEmailTx(ctx context.Context, tx *sql.Tx, email string) (model.User, error) {
	return r.getByEmail(ctx, tx, email)
}

// GetByID fetches a non-deleted user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.getByID(ctx, r.DB, id)
}

// GetByIDTx is GetByID inside tx.
func (r *UserRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.User, error) {
	return r.getByID(ctx, tx, id)
}

// EmailExistsTx reports whether a non-deleted user holds email.
func (r *UserRepo) EmailExistsTx(ctx context.Context, tx *sql.Tx, email string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE email = ? AND "+userNotDeleted,
		strings.TrimSpace(email)).Scan(&n)
	return n > 0, err
}

// CreateTx inserts u and sets its ID.  Email uniqueness is checked by the
// caller with EmailExistsTx; a duplicate-key error from an optional unique
// index is still mapped to ErrEmailExists.
func (r *UserRepo) CreateTx(ctx context.Context, tx *sql.Tx, u *model.User) error {
	const q = `INSERT INTO users
		(email, password, full_name, role, created_by, is_verified, is_active, is_deleted, verify_code, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, NOW())`
	res, err := tx.ExecContext(ctx, q,
		strings.TrimSpace(u.Email), u.PasswordHash, u.FullName, u.RoleID, u.CreatedBy,
		u.IsVerified, u.IsActive, u.VerifyCode)
	if err != nil {
		if IsDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// SetResetCodeTx stores a fresh password reset code.
func (r *UserRepo) SetResetCodeTx(ctx context.Context, tx *sql.Tx, id uint64, code string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE users SET reset_code = ?, updated_at = NOW() WHERE user_id = ? AND "+userNotDeleted,
		code, id)
	return err
}

// ConsumeResetCodeTx replaces the password and clears reset_code, but only
// if the stored code still equals code.  It returns false when the code was
// empty, wrong or already used, so a code can succeed at most once.
func (r *UserRepo) ConsumeResetCodeTx(ctx context.Context, tx *sql.Tx, id uint64, code, passwordHash string) (bool, error) {
	if code == "" {
		return false, nil
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE users SET password = ?, reset_code = '', updated_at = NOW()
		WHERE user_id = ? AND reset_code = ? AND `+userNotDeleted,
		passwordHash, id, code)
	return affectedOne(res, err)
}

// ConsumeVerifyCodeTx activates the account: new password, verify_code
// cleared, is_verified set.  Same single-use contract as ConsumeResetCodeTx.
func (r *UserRepo) ConsumeVerifyCodeTx(ctx context.Context, tx *sql.Tx, id uint64, code, passwordHash string, now time.Time) (bool, error) {
	if code == "" {
		return false, nil
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE users SET password = ?, verify_code = '', is_verified = 1, verified_at = ?, updated_at = NOW()
		WHERE user_id = ? AND verify_code = ? AND `+userNotDeleted,
		passwordHash, now, id, code)
	return affectedOne(res, err)
}

func affectedOne(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateProfileTx sets the display name.
func (r *UserRepo) UpdateProfileTx(ctx context.Context, tx *sql.Tx, id uint64, fullName string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE users SET full_name = ?, updated_at = NOW() WHERE user_id = ? AND "+userNotDeleted,
		fullName, id)
	return err
}

// UpdatePasswordTx stores a new password hash.
func (r *UserRepo) UpdatePasswordTx(ctx context.Context, tx *sql.Tx, id uint64, passwordHash string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE users SET password = ?, updated_at = NOW() WHERE user_id = ? AND "+userNotDeleted,
		passwordHash, id)
	return err
}

// SetActiveTx toggles is_active.
func (r *UserRepo) SetActiveTx(ctx context.Context, tx *sql.Tx, id uint64, active bool) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE users SET is_active = ?, updated_at = NOW() WHERE user_id = ? AND "+userNotDeleted,
		active, id)
	return err
}

// SetRoleTx reassigns the user's single role.
func (r *UserRepo) SetRoleTx(ctx context.Context, tx *sql.Tx, id uint64, roleID int) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE users SET role = ?, updated_at = NOW() WHERE user_id = ? AND "+userNotDeleted,
		roleID, id)
	return err
}

// SoftDeleteTx flags the user as deleted.  Users are never removed.
func (r *UserRepo) SoftDeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE users SET is_deleted = 1, updated_at = NOW() WHERE user_id = ? AND "+userNotDeleted,
		id)
	return err
}

// CountWithRoleTx counts non-deleted users holding roleID.
func (r *UserRepo) CountWithRoleTx(ctx context.Context, tx *sql.Tx, roleID int) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE role = ? AND "+userNotDeleted,
		roleID).Scan(&n)
	return n, err
}

// List returns non-deleted users joined with their role name, newest first,
// filtered by a case-insensitive match on full name.
func (r *UserRepo) List(ctx context.Context, p Page) ([]model.UserSummary, int64, error) {
	p = p.Normalize()
	cond := "u." + userNotDeleted
	args := []any{}
	if s := strings.TrimSpace(p.Search); s != "" {
		cond += " AND LOWER(u.full_name) LIKE ?"
		args = append(args, LikePattern(s))
	}

	var total int64
	countSQL := `SELECT COUNT(*) FROM users u JOIN roles r ON r.role_id = u.role WHERE ` + cond
	if err := r.DB.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, limitArgs := p.Clause()
	dataSQL := `SELECT u.user_id, u.role, r.role_name, u.full_name, u.email,
			u.is_active, u.is_verified, u.verified_at, u.created_at, u.updated_at
		FROM users u
		JOIN roles r ON r.role_id = u.role
		WHERE ` + cond + `
		ORDER BY u.created_at DESC` + limit

	rows, err := r.DB.QueryContext(ctx, dataSQL, append(args, limitArgs...)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []model.UserSummary{}
	for rows.Next() {
		var (
			s          model.UserSummary
			verifiedAt sql.NullTime
			updatedAt  sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.RoleID, &s.RoleName, &s.FullName, &s.Email,
			&s.IsActive, &s.IsVerified, &verifiedAt, &s.CreatedAt, &updatedAt); err != nil {
			return nil, 0, err
		}
		if verifiedAt.Valid {
			t := verifiedAt.Time
			s.VerifiedAt = &t
		}
		if updatedAt.Valid {
			t := updatedAt.Time
			s.UpdatedAt = &t
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
