// Package backend defines the persistence contract for user activity records
// and its two implementations: a per-tenant JSON file store and a bun-backed
// document table.
package backend

import (
	"context"
	"errors"

	"git-activity-server/internal/model"
)

var (
	// ErrNotFound means no record exists for the requested identity. Read
	// paths translate it to an absent result, not a failure.
	ErrNotFound = errors.New("backend: user not found")

	// ErrUnavailable means the underlying store could not be reached.
	ErrUnavailable = errors.New("backend: store unavailable")

	// ErrConfiguration means the selected backend is missing required
	// credentials or paths. Fatal at first use.
	ErrConfiguration = errors.New("backend: missing configuration")
)

// Backend is the persistence contract shared by all stores. All operations
// may perform I/O and are safe to call repeatedly.
type Backend interface {
	// RecordActivity merges one event into the identity's record and
	// persists the result (create-or-replace).
	RecordActivity(ctx context.Context, event model.ActivityEvent) error

	// GetAllUsers returns records sorted by lastActivity descending. An
	// empty tenant returns the union across all tenants; callers outside
	// this package must scope the query (the store façade enforces it).
	GetAllUsers(ctx context.Context, tenant string) ([]model.UserRecord, error)

	// GetUserByEmail returns the record for (tenant, email) or ErrNotFound.
	GetUserByEmail(ctx context.Context, tenant, email string) (model.UserRecord, error)

	// DeleteUser removes the record for (tenant, email). Deleting an absent
	// record is a no-op.
	DeleteUser(ctx context.Context, tenant, email string) error
}

// lessRecent orders records by lastActivity descending with a deterministic
// tie-break on id.
func lessRecent(a, b model.UserRecord) bool {
	if !a.LastActivity.Equal(b.LastActivity) {
		return a.LastActivity.After(b.LastActivity)
	}
	return a.ID < b.ID
}
