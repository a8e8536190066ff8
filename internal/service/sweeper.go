package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sakif/social-host/internal/repository"
)

// Sweeper deletes accounts that nobody has read within the retention window.
//
// It runs outside the request path. Each candidate is deleted with a
// conditional DELETE that re-checks last access, so a read that lands between
// listing and deleting keeps the account alive.
type Sweeper struct {
	repo      repository.AccountRepository
	cache     *CacheService
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewSweeper(
	repo repository.AccountRepository,
	cache *CacheService,
	retention, interval time.Duration,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		repo:      repo,
		cache:     cache,
		retention: retention,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}

// Run sweeps once immediately, then every interval until ctx is cancelled.
// The first sweep does not wait for a tick: a process restarted more often
// than interval would otherwise never sweep at all.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("expiry sweeper started",
		slog.Duration("interval", s.interval),
		slog.Duration("retention", s.retention),
	)

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("expiry sweep failed", slog.String("error", err.Error()))
	}
}

// SweepOnce deletes every account last read before now-retention and
// returns how many it removed. A failure on one account is logged and the
// sweep moves on; only a failure to list candidates is returned.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.retention)

	nicknames, err := s.repo.ListStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(nicknames) == 0 {
		s.logger.Debug("no stale accounts found")
		sweepRunsTotal.Inc()
		return 0, nil
	}

	s.logger.Info("found stale accounts", slog.Int("count", len(nicknames)))

	deleted := 0
	for _, nickname := range nicknames {
		if ctx.Err() != nil {
			return deleted, ctx.Err()
		}

		ok, err := s.repo.DeleteIfStale(ctx, nickname, cutoff)
		if err != nil {
			sweepErrorsTotal.Inc()
			s.logger.Error("failed to delete stale account",
				slog.String("nickname", nickname),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !ok {
			// Read again since listing; not stale any more.
			continue
		}

		s.cache.Invalidate(nickname)
		deleted++
		sweptAccountsTotal.Inc()
		s.logger.Info("stale account swept", slog.String("nickname", nickname))
	}

	sweepRunsTotal.Inc()
	s.logger.Info("expiry sweep completed", slog.Int("deleted", deleted))
	return deleted, nil
}
