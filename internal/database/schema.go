package database

import (
	"context"
	"database/sql"
	"fmt"
)

// coreTables are created in order and dropped in reverse.
var coreTables = []struct{ name, ddl string }{
	{"users", `CREATE TABLE IF NOT EXISTS users (
	user_id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
	email VARCHAR(50) NOT NULL,
	password VARCHAR(100) NOT NULL,
	full_name VARCHAR(50) NOT NULL,
	role INT NOT NULL,
	created_by BIGINT UNSIGNED NOT NULL DEFAULT 0,
	is_verified TINYINT(1) NOT NULL DEFAULT 0,
	is_active TINYINT(1) NOT NULL DEFAULT 1,
	is_deleted TINYINT(1) NOT NULL DEFAULT 0,
	reset_code VARCHAR(20) NULL,
	verify_code VARCHAR(20) NULL,
	verified_at DATETIME NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NULL DEFAULT CURRENT_TIMESTAMP,
	KEY idx_users_email (email),
	KEY idx_users_role (role)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"roles", `CREATE TABLE IF NOT EXISTS roles (
	role_id INT NOT NULL AUTO_INCREMENT PRIMARY KEY,
	role_name VARCHAR(30) NOT NULL,
	created_by BIGINT UNSIGNED NOT NULL DEFAULT 1,
	is_deleted TINYINT(1) NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NULL DEFAULT CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"role_capabilities", `CREATE TABLE IF NOT EXISTS role_capabilities (
	role_id INT NOT NULL,
	capability_id VARCHAR(50) NOT NULL,
	PRIMARY KEY (role_id, capability_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	{"auth_tokens", `CREATE TABLE IF NOT EXISTS auth_tokens (
	auth_id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
	user_id BIGINT UNSIGNED NOT NULL,
	refresh_token CHAR(64) NOT NULL,
	user_agent VARCHAR(255) NULL,
	ip_address VARCHAR(45) NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	expires_at DATETIME NOT NULL,
	UNIQUE KEY uq_auth_tokens_hash (refresh_token),
	KEY idx_auth_tokens_user (user_id),
	KEY idx_auth_tokens_expires (expires_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
}

// Seed is the initial data written by InstallCore.  Grants maps a role id
// to the capability ids it starts with.
type Seed struct {
	SuperadminEmail        string
	SuperadminPasswordHash string
	Grants                 map[int][]string
}

// seedRoles are the roles every deployment starts with; role 1 is the
// superadmin role.
var seedRoles = []struct {
	id   int
	name string
}{
	{1, "Super Admin"},
	{2, "Admin"},
	{3, "User"},
}

// TableExists reports whether table exists in the current schema.
func TableExists(ctx context.Context, db *sql.DB, table string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?",
		table).Scan(&n)
	return n > 0, err
}

// InstallCore creates the core tables and writes seed.  It does nothing
// when the users table already exists.
func InstallCore(ctx context.Context, db *sql.DB, seed Seed) error {
	exists, err := TableExists(ctx, db, "users")
	if err != nil {
		return fmt.Errorf("install core: %w", err)
	}
	if exists {
		return nil
	}
	for _, t := range coreTables {
		if _, err := db.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("create %s: %w", t.name, err)
		}
	}
	return WithTx(ctx, db, func(tx *sql.Tx) error {
		for _, r := range seedRoles {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO roles (role_id, role_name, created_by) VALUES (?, ?, 1)", r.id, r.name); err != nil {
				return fmt.Errorf("seed role %d: %w", r.id, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (email, password, full_name, role, created_by, is_verified, is_active, is_deleted, verified_at)
			 VALUES (?, ?, 'Super Admin', 1, 1, 1, 1, 0, NOW())`,
			seed.SuperadminEmail, seed.SuperadminPasswordHash); err != nil {
			return fmt.Errorf("seed superadmin: %w", err)
		}
		for _, r := range seedRoles {
			for _, capID := range seed.Grants[r.id] {
				if _, err := tx.ExecContext(ctx,
					"INSERT INTO role_capabilities (role_id, capability_id) VALUES (?, ?)", r.id, capID); err != nil {
					return fmt.Errorf("seed grant %s to role %d: %w", capID, r.id, err)
				}
			}
		}
		return nil
	})
}

// UninstallCore drops every core table.
func UninstallCore(ctx context.Context, db *sql.DB) error {
	for i := len(coreTables) - 1; i >= 0; i-- {
		name := coreTables[i].name
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
			return fmt.Errorf("drop %s: %w", name, err)
		}
	}
	return nil
}
