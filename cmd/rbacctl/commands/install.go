package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iliyamo/rbac-backend/internal/config"
	"github.com/iliyamo/rbac-backend/internal/database"
	"github.com/iliyamo/rbac-backend/internal/rbac"
	"github.com/iliyamo/rbac-backend/internal/sandbox"
	"github.com/iliyamo/rbac-backend/internal/utils"
)

// installer manages the schema of one optional module.
type installer struct {
	install   func(context.Context, *sql.DB) error
	uninstall func(context.Context, *sql.DB) error
	reinstall func(context.Context, *sql.DB) error
}

// modules lists every optional module the binary knows.  cmd/server
// registers the same set with the capability catalog.
var modules = map[string]installer{
	sandbox.Name: {install: sandbox.Install, uninstall: sandbox.Uninstall, reinstall: sandbox.Reinstall},
}

func moduleNames() []string {
	names := make([]string, 0, len(modules))
	for n := range modules {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func lookupModule(name string) (installer, error) {
	m, ok := modules[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return installer{}, fmt.Errorf("unknown module %q (known: %s)", name, strings.Join(moduleNames(), ", "))
	}
	return m, nil
}

// coreGrants is the initial grant set: the superadmin role holds every
// base capability, the admin role the user capabilities.
func coreGrants() map[int][]string {
	grants := map[int][]string{}
	for _, m := range rbac.BaseModules() {
		for _, c := range m.Capabilities {
			grants[1] = append(grants[1], c.ID)
			if m.ModuleID == "user" {
				grants[2] = append(grants[2], c.ID)
			}
		}
	}
	return grants
}

func coreSeed(cfg config.Config) (database.Seed, error) {
	if cfg.SuperadminPassword == "" {
		return database.Seed{}, errors.New("SUPERADMIN_PASSWORD must be set to install the core schema")
	}
	email := utils.NormalizeEmail(cfg.SuperadminEmail)
	if !utils.IsValidEmail(email) {
		return database.Seed{}, fmt.Errorf("invalid SUPERADMIN_EMAIL %q", cfg.SuperadminEmail)
	}
	hash, err := utils.HashPassword(cfg.SuperadminPassword, cfg.BcryptCost)
	if err != nil {
		return database.Seed{}, err
	}
	return database.Seed{
		SuperadminEmail:        email,
		SuperadminPasswordHash: hash,
		Grants:                 coreGrants(),
	}, nil
}

// schemaCommand builds install, uninstall and reinstall: with --module it
// acts on that module only, otherwise on the core and every module.  When
// modulesFirst is set the modules run before the core, since their cleanup
// touches core tables.
func schemaCommand(use, short string, modulesFirst bool,
	core func(context.Context, *sql.DB, config.Config) error,
	pick func(installer) func(context.Context, *sql.DB) error) *cobra.Command {
	var module string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			targets := moduleNames()
			if module != "" {
				if _, err := lookupModule(module); err != nil {
					return err
				}
				targets = []string{strings.ToLower(strings.TrimSpace(module))}
			}

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			runModules := func() error {
				for _, name := range targets {
					if err := pick(modules[name])(ctx, db); err != nil {
						return err
					}
					fmt.Fprintf(out, "module %s: %s done\n", name, use)
				}
				return nil
			}
			runCore := func() error {
				if module != "" {
					return nil
				}
				if err := core(ctx, db, cfg); err != nil {
					return err
				}
				fmt.Fprintf(out, "core: %s done\n", use)
				return nil
			}

			steps := []func() error{runCore, runModules}
			if modulesFirst {
				steps = []func() error{runModules, runCore}
			}
			for _, step := range steps {
				if err := step(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&module, "module", "m", "", "only act on this module ("+strings.Join(moduleNames(), ", ")+")")
	return cmd
}

func installCore(ctx context.Context, db *sql.DB, cfg config.Config) error {
	seed, err := coreSeed(cfg)
	if err != nil {
		return err
	}
	return database.InstallCore(ctx, db, seed)
}

func uninstallCore(ctx context.Context, db *sql.DB, _ config.Config) error {
	return database.UninstallCore(ctx, db)
}

func newInstallCommand() *cobra.Command {
	return schemaCommand("install", "Create the schema and seed data", false, installCore,
		func(i installer) func(context.Context, *sql.DB) error { return i.install })
}

func newUninstallCommand() *cobra.Command {
	return schemaCommand("uninstall", "Drop the schema", true, uninstallCore,
		func(i installer) func(context.Context, *sql.DB) error { return i.uninstall })
}

func newReinstallCommand() *cobra.Command {
	reinstallCore := func(ctx context.Context, db *sql.DB, cfg config.Config) error {
		seed, err := coreSeed(cfg)
		if err != nil {
			return err
		}
		if err := database.UninstallCore(ctx, db); err != nil {
			return err
		}
		return database.InstallCore(ctx, db, seed)
	}
	return schemaCommand("reinstall", "Drop and recreate the schema", false, reinstallCore,
		func(i installer) func(context.Context, *sql.DB) error { return i.reinstall })
}
