package sandbox

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/rbac-backend/internal/database"
	"github.com/iliyamo/rbac-backend/internal/model"
)

const createTable = `CREATE TABLE IF NOT EXISTS sandbox (
	sandbox_id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
	sandbox_name VARCHAR(50) NOT NULL,
	created_by BIGINT UNSIGNED NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NULL DEFAULT CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// Install creates the sandbox table and grants every sandbox capability to
// the superadmin role.  It does nothing when the table already exists.
func Install(ctx context.Context, db *sql.DB) error {
	exists, err := database.TableExists(ctx, db, "sandbox")
	if err != nil {
		return fmt.Errorf("install %s: %w", Name, err)
	}
	if exists {
		return nil
	}
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("install %s: %w", Name, err)
	}
	return grant(ctx, db)
}

// Uninstall drops the table and every grant of a sandbox capability.
func Uninstall(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS sandbox"); err != nil {
		return fmt.Errorf("uninstall %s: %w", Name, err)
	}
	ids := CapabilityIDs()
	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	_, err := db.ExecContext(ctx,
		"DELETE FROM role_capabilities WHERE capability_id IN ("+strings.Join(marks, ", ")+")", args...)
	if err != nil {
		return fmt.Errorf("uninstall %s: %w", Name, err)
	}
	return nil
}

// Reinstall drops and recreates the module.
func Reinstall(ctx context.Context, db *sql.DB) error {
	if err := Uninstall(ctx, db); err != nil {
		return err
	}
	return Install(ctx, db)
}

func grant(ctx context.Context, db *sql.DB) error {
	return database.WithTx(ctx, db, func(tx *sql.Tx) error {
		for _, id := range CapabilityIDs() {
			if _, err := tx.ExecContext(ctx,
				"INSERT IGNORE INTO role_capabilities (role_id, capability_id) VALUES (?, ?)",
				model.SuperadminRoleID, id); err != nil {
				return fmt.Errorf("grant %s: %w", id, err)
			}
		}
		return nil
	})
}
