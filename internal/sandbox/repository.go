package sandbox

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/rbac-backend/internal/repository"
)

// Sandbox mirrors a row of the `sandbox` table.
type Sandbox struct {
	ID        uint64     `json:"sandbox_id"`
	Name      string     `json:"sandbox_name"`
	CreatedBy uint64     `json:"-"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// Repo stores sandbox rows.
type Repo struct{ DB *sql.DB }

func NewRepo(db *sql.DB) *Repo { return &Repo{DB: db} }

const columns = "sandbox_id, sandbox_name, created_by, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scan(s rowScanner) (Sandbox, error) {
	var (
		sb        Sandbox
		updatedAt sql.NullTime
	)
	if err := s.Scan(&sb.ID, &sb.Name, &sb.CreatedBy, &sb.CreatedAt, &updatedAt); err != nil {
		return Sandbox{}, err
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		sb.UpdatedAt = &t
	}
	return sb, nil
}

// List returns one page of sandboxes, filtered by a case-insensitive match
// on the name, and the total number of matches.
func (r *Repo) List(ctx context.Context, p repository.Page) ([]Sandbox, int64, error) {
	p = p.Normalize()
	cond := "1 = 1"
	var args []any
	if s := strings.TrimSpace(p.Search); s != "" {
		cond = "LOWER(sandbox_name) LIKE ?"
		args = append(args, repository.LikePattern(s))
	}

	var total int64
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM sandbox WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, limitArgs := p.Clause()
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+columns+" FROM sandbox WHERE "+cond+" ORDER BY sandbox_id ASC"+limit,
		append(args, limitArgs...)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Sandbox{}
	for rows.Next() {
		sb, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, sb)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// GetByID fetches one sandbox.  sql.ErrNoRows when absent.
func (r *Repo) GetByID(ctx context.Context, id uint64) (Sandbox, error) {
	return scan(r.DB.QueryRowContext(ctx,
		"SELECT "+columns+" FROM sandbox WHERE sandbox_id = ? LIMIT 1", id))
}

// LockTx locks the row for the rest of tx.  sql.ErrNoRows when absent.
func (r *Repo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	var got uint64
	return tx.QueryRowContext(ctx,
		"SELECT sandbox_id FROM sandbox WHERE sandbox_id = ? FOR UPDATE", id).Scan(&got)
}

// CreateTx inserts a sandbox and returns its id.
func (r *Repo) CreateTx(ctx context.Context, tx *sql.Tx, name string, createdBy uint64) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO sandbox (sandbox_name, created_by, updated_at) VALUES (?, ?, NOW())",
		name, createdBy)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// UpdateTx renames a sandbox.
func (r *Repo) UpdateTx(ctx context.Context, tx *sql.Tx, id uint64, name string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE sandbox SET sandbox_name = ?, updated_at = NOW() WHERE sandbox_id = ?", name, id)
	return err
}

// DeleteTx removes a sandbox row.
func (r *Repo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM sandbox WHERE sandbox_id = ?", id)
	return err
}
