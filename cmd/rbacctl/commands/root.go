// Package commands holds the rbacctl subcommands: schema install/uninstall
// for the core and each optional module, and the expired-token reaper.
package commands

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/rbac-backend/internal/config"
	"github.com/iliyamo/rbac-backend/internal/database"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "rbacctl",
		Short:         "Maintenance commands for the RBAC backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		newInstallCommand(),
		newUninstallCommand(),
		newReinstallCommand(),
		newReapCommand(),
	)
	return rootCmd
}

func openDB(cfg config.Config) (*sql.DB, error) {
	db, err := database.Open(database.Options{
		User:    cfg.DBUser,
		Pass:    cfg.DBPass,
		Host:    cfg.DBHost,
		Port:    cfg.DBPort,
		Name:    cfg.DBName,
		MaxOpen: cfg.DBPool,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}
