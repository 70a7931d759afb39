package paycode

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically deletes expired, unused payment codes. It is a
// housekeeping complement to lazy expiry: codes still transition to expired
// only when observed, the sweeper just reclaims rows nobody can redeem.
type Sweeper struct {
	repo     Repository
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper builds a sweeper running at the given interval.
func NewSweeper(repo Repository, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{repo: repo, interval: interval, logger: logger}
}

// Run blocks, purging on every tick until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	purged, err := s.repo.PurgeExpired(sweepCtx, time.Now().UTC())
	if err != nil {
		s.logger.Warn("payment code purge failed", "error", err)
		return
	}
	if purged > 0 {
		s.logger.Info("purged expired payment codes", "count", purged)
	}
}
