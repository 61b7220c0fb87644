package store

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically removes user records idle past the retention period.
// It is owned by the process lifecycle: Run blocks until ctx is cancelled.
type Sweeper struct {
	store    *Store
	interval time.Duration
	log      *zap.Logger
}

func NewSweeper(s *Store, interval time.Duration, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{store: s, interval: interval, log: log}
}

func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("retention sweeper stopped")
			return
		case <-ticker.C:
			removed, err := w.store.SweepExpired(ctx)
			if err != nil {
				w.log.Error("retention sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				w.log.Info("retention sweep removed idle users", zap.Int("removed", removed))
			}
		}
	}
}

// SweepExpired scans all tenants and deletes records whose last activity is
// older than the retention period. A record at exactly the boundary stays.
func (s *Store) SweepExpired(ctx context.Context) (int, error) {
	now := s.now()
	users, err := s.backend.GetAllUsers(ctx, "")
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, u := range users {
		if now.Sub(u.LastActivity) <= RetentionPeriod {
			continue
		}
		if err := s.backend.DeleteUser(ctx, u.Tenant, u.UserEmail); err != nil {
			s.log.Warn("failed to remove expired user", zap.String("user", u.ID), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}
