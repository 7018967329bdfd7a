// Package reaper purges expired refresh tokens.  Nothing in the request path
// deletes expired rows; this job runs out of band, either once or on a cron
// schedule.
package reaper

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// TokenStore is the slice of repository.TokenRepo the job needs.
type TokenStore interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type Reaper struct {
	Tokens  TokenStore
	Logger  *logrus.Logger
	Timeout time.Duration
	Now     func() time.Time
}

func New(tokens TokenStore, logger *logrus.Logger) *Reaper {
	return &Reaper{Tokens: tokens, Logger: logger, Timeout: time.Minute}
}

// RunOnce deletes every token expired at the current time and returns how
// many rows went away.
func (r *Reaper) RunOnce(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	if r.Now != nil {
		now = r.Now().UTC()
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	n, err := r.Tokens.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	r.Logger.WithFields(logrus.Fields{"deleted": n, "cutoff": now.Format(time.RFC3339)}).Info("reaper: expired tokens purged")
	return n, nil
}

// Schedule registers the job on c under spec.  Failures are logged; the
// next tick tries again.
func (r *Reaper) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		if _, err := r.RunOnce(context.Background()); err != nil {
			r.Logger.WithError(err).Error("reaper: run failed")
		}
	})
	if err != nil {
		return 0, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return id, nil
}
