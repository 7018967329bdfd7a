package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/iliyamo/rbac-backend/internal/config"
	"github.com/iliyamo/rbac-backend/internal/logging"
	"github.com/iliyamo/rbac-backend/internal/reaper"
	"github.com/iliyamo/rbac-backend/internal/repository"
)

func newReapCommand() *cobra.Command {
	var (
		runOnce  bool
		schedule string
	)
	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Delete expired refresh tokens",
		Long:  "Delete expired refresh tokens once, or keep running and delete them on a cron schedule.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := logging.New(cfg.Env, cfg.LogLevel)

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			r := reaper.New(repository.NewTokenRepo(db), logger)
			if runOnce {
				_, err := r.RunOnce(cmd.Context())
				return err
			}

			if schedule == "" {
				schedule = cfg.ReapSchedule
			}
			c := cron.New()
			if _, err := r.Schedule(c, schedule); err != nil {
				return err
			}
			c.Start()
			logger.WithField("schedule", schedule).Info("reaper started")

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig
			logger.Info("reaper: shutting down")

			<-c.Stop().Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&runOnce, "run-once", false, "run a single pass and exit")
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron schedule (default REAP_SCHEDULE)")
	return cmd
}
