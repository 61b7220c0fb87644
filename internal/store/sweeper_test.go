package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"git-activity-server/internal/backend"
)

func TestSweepExpired_RemovesIdleUsers(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)
	ctx := context.Background()

	_ = s.RecordActivity(ctx, testEvent("acme", "expired@x.com", now.Add(-RetentionPeriod-time.Second)))
	_ = s.RecordActivity(ctx, testEvent("acme", "boundary@x.com", now.Add(-RetentionPeriod)))
	_ = s.RecordActivity(ctx, testEvent("globex", "fresh@x.com", now.Add(-time.Hour)))

	removed, err := s.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}

	if _, err := s.GetUserByEmail(ctx, "acme", "expired@x.com"); !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("expected expired user gone, got %v", err)
	}
	// a record at exactly the retention boundary is retained
	if _, err := s.GetUserByEmail(ctx, "acme", "boundary@x.com"); err != nil {
		t.Fatalf("expected boundary user retained, got %v", err)
	}
	if _, err := s.GetUserByEmail(ctx, "globex", "fresh@x.com"); err != nil {
		t.Fatalf("expected fresh user retained, got %v", err)
	}
}

func TestSweeper_StopsOnCancel(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)
	w := NewSweeper(s, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("sweeper did not stop on cancellation")
	}
}
