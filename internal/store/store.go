// Package store is the activity store façade: it selects a backend once at
// startup, validates and normalizes incoming events, serializes writes per
// identity, and classifies users as active or idle.
package store

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"git-activity-server/internal/backend"
	"git-activity-server/internal/config"
	"git-activity-server/internal/model"
)

const (
	// ActiveWindow is how recently a user must have reported activity to
	// count as active. At exactly the window boundary the user is idle.
	ActiveWindow = 30 * time.Minute

	// RetentionPeriod is how long an idle user record is kept before the
	// sweeper removes it. A record at exactly the boundary is retained.
	RetentionPeriod = 7 * 24 * time.Hour

	lockStripes = 64
)

var (
	ErrValidation    = errors.New("store: invalid request")
	ErrMissingTenant = fmt.Errorf("%w: tenant is required", ErrValidation)
	ErrMissingEmail  = fmt.Errorf("%w: userEmail is required", ErrValidation)
)

type Store struct {
	backend backend.Backend
	log     *zap.Logger
	now     func() time.Time

	// Striped per-identity locks serialize concurrent events for the same
	// identity. The file backend additionally locks per tenant internally,
	// since its read-modify-write unit is the whole tenant file.
	locks [lockStripes]sync.Mutex
}

func New(b backend.Backend, log *zap.Logger) *Store {
	return NewWithNow(b, log, time.Now)
}

func NewWithNow(b backend.Backend, log *zap.Logger, now func() time.Time) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{backend: b, log: log, now: now}
}

// Open selects the backend from configuration. The choice is immutable for
// the process lifetime.
func Open(cfg config.Config, log *zap.Logger) (*Store, error) {
	var (
		b   backend.Backend
		err error
	)
	switch cfg.StorageBackend {
	case config.BackendFile:
		b, err = backend.NewFileBackend(cfg.DataDir, log)
	case config.BackendDocument:
		b, err = backend.NewDocumentBackend(cfg.DocumentDSN, log)
	default:
		err = fmt.Errorf("%w: unknown storage backend %q", backend.ErrConfiguration, cfg.StorageBackend)
	}
	if err != nil {
		return nil, err
	}
	return New(b, log), nil
}

func (s *Store) stripe(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &s.locks[h.Sum32()%lockStripes]
}

// RecordActivity validates, normalizes and persists one event. Writes for
// the same identity are serialized so concurrent events cannot overwrite
// each other's entries.
func (s *Store) RecordActivity(ctx context.Context, event model.ActivityEvent) error {
	if strings.TrimSpace(event.UserEmail) == "" {
		return ErrMissingEmail
	}
	event.Normalize(s.now())

	id := model.UserID(event.Tenant, event.UserEmail)
	mu := s.stripe(id)
	mu.Lock()
	defer mu.Unlock()

	if err := s.backend.RecordActivity(ctx, event); err != nil {
		s.log.Error("record activity failed", zap.String("user", id), zap.Error(err))
		return err
	}
	return nil
}

// GetAllUsers returns all of one tenant's users, most recent first. The
// tenant is mandatory on this boundary; the backends' cross-tenant scan is
// reserved for the retention sweeper.
func (s *Store) GetAllUsers(ctx context.Context, tenant string) ([]model.UserRecord, error) {
	if strings.TrimSpace(tenant) == "" {
		return nil, ErrMissingTenant
	}
	return s.backend.GetAllUsers(ctx, tenant)
}

// GetActiveUsers returns the tenant's users passing the active predicate.
func (s *Store) GetActiveUsers(ctx context.Context, tenant string) ([]model.UserRecord, error) {
	users, err := s.GetAllUsers(ctx, tenant)
	if err != nil {
		return nil, err
	}
	active := make([]model.UserRecord, 0, len(users))
	for _, u := range users {
		if s.IsUserActive(u) {
			active = append(active, u)
		}
	}
	return active, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, tenant, email string) (model.UserRecord, error) {
	if strings.TrimSpace(tenant) == "" {
		return model.UserRecord{}, ErrMissingTenant
	}
	if strings.TrimSpace(email) == "" {
		return model.UserRecord{}, ErrMissingEmail
	}
	return s.backend.GetUserByEmail(ctx, tenant, strings.TrimSpace(email))
}

// IsUserActive reports whether the user's most recent activity of any kind
// is within the active window.
func (s *Store) IsUserActive(rec model.UserRecord) bool {
	return s.now().Sub(rec.LastActivity) < ActiveWindow
}

// DescribeRecency buckets the elapsed time since ts into a short
// human-readable label.
func DescribeRecency(now, ts time.Time) string {
	elapsed := now.Sub(ts)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm ago", int(elapsed.Minutes()))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(elapsed.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(elapsed.Hours()/24))
	}
}
