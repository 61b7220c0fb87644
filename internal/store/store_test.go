package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"git-activity-server/internal/backend"
	"git-activity-server/internal/config"
	"git-activity-server/internal/model"
)

func newTestStore(t *testing.T, now time.Time) *Store {
	t.Helper()
	b, err := backend.NewFileBackend(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	return NewWithNow(b, zap.NewNop(), func() time.Time { return now })
}

func testEvent(tenant, email string, ts time.Time) model.ActivityEvent {
	return model.ActivityEvent{
		Timestamp:   ts,
		UserEmail:   email,
		UserName:    "User",
		RepoName:    "r1",
		Branch:      "main",
		MachineName: "M1",
		Tenant:      tenant,
	}
}

func TestRecordActivity_RequiresEmail(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)

	err := s.RecordActivity(context.Background(), model.ActivityEvent{UserEmail: "   "})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecordActivity_DefaultsTenant(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)
	ctx := context.Background()

	ev := testEvent("", "alice@x.com", now)
	if err := s.RecordActivity(ctx, ev); err != nil {
		t.Fatalf("RecordActivity: %v", err)
	}

	users, err := s.GetAllUsers(ctx, "default")
	if err != nil {
		t.Fatalf("GetAllUsers: %v", err)
	}
	if len(users) != 1 || users[0].Tenant != "default" {
		t.Fatalf("expected one user in default tenant, got %+v", users)
	}
}

func TestGetAllUsers_RequiresTenant(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)

	if _, err := s.GetAllUsers(context.Background(), ""); !errors.Is(err, ErrMissingTenant) {
		t.Fatalf("expected ErrMissingTenant, got %v", err)
	}
	if _, err := s.GetActiveUsers(context.Background(), "  "); !errors.Is(err, ErrMissingTenant) {
		t.Fatalf("expected ErrMissingTenant, got %v", err)
	}
}

func TestGetActiveUsers_FiltersByWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)
	ctx := context.Background()

	_ = s.RecordActivity(ctx, testEvent("acme", "fresh@x.com", now.Add(-time.Minute)))
	_ = s.RecordActivity(ctx, testEvent("acme", "stale@x.com", now.Add(-2*time.Hour)))

	active, err := s.GetActiveUsers(ctx, "acme")
	if err != nil {
		t.Fatalf("GetActiveUsers: %v", err)
	}
	if len(active) != 1 || active[0].UserEmail != "fresh@x.com" {
		t.Fatalf("expected only fresh user active, got %+v", active)
	}
}

func TestIsUserActive_Boundary(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)

	rec := model.UserRecord{LastActivity: now.Add(-ActiveWindow + time.Second)}
	if !s.IsUserActive(rec) {
		t.Fatalf("expected active just inside the window")
	}
	// exactly 30 minutes is inactive
	rec.LastActivity = now.Add(-ActiveWindow)
	if s.IsUserActive(rec) {
		t.Fatalf("expected inactive at exactly the window boundary")
	}
}

func TestGetUserByEmail_Validation(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)
	ctx := context.Background()

	if _, err := s.GetUserByEmail(ctx, "", "a@x.com"); !errors.Is(err, ErrMissingTenant) {
		t.Fatalf("expected ErrMissingTenant, got %v", err)
	}
	if _, err := s.GetUserByEmail(ctx, "acme", ""); !errors.Is(err, ErrMissingEmail) {
		t.Fatalf("expected ErrMissingEmail, got %v", err)
	}
	if _, err := s.GetUserByEmail(ctx, "acme", "ghost@x.com"); !errors.Is(err, backend.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDescribeRecency_Buckets(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		elapsed time.Duration
		want    string
	}{
		{0, "just now"},
		{59 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{59 * time.Minute, "59m ago"},
		{2 * time.Hour, "2h ago"},
		{23 * time.Hour, "23h ago"},
		{3 * 24 * time.Hour, "3d ago"},
	}
	for _, tc := range cases {
		if got := DescribeRecency(now, now.Add(-tc.elapsed)); got != tc.want {
			t.Fatalf("DescribeRecency(%v): expected %q, got %q", tc.elapsed, tc.want, got)
		}
	}
}

func TestOpen_SelectsBackend(t *testing.T) {
	cfg := config.Config{StorageBackend: config.BackendFile, DataDir: t.TempDir()}
	if _, err := Open(cfg, zap.NewNop()); err != nil {
		t.Fatalf("Open(file): %v", err)
	}

	cfg = config.Config{StorageBackend: "unknown"}
	if _, err := Open(cfg, zap.NewNop()); !errors.Is(err, backend.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	cfg = config.Config{StorageBackend: config.BackendDocument}
	if _, err := Open(cfg, zap.NewNop()); !errors.Is(err, backend.ErrConfiguration) {
		t.Fatalf("expected configuration error for missing DSN, got %v", err)
	}
}
