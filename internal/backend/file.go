package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"git-activity-server/internal/model"
)

var tenantFileSanitizer = regexp.MustCompile(`[^a-zA-Z0-9]`)

// FileBackend keeps one JSON document per tenant under a data directory.
// The unit of read-modify-write is the whole tenant file, so every mutation
// holds that tenant's lock; the file write itself is atomic (temp file +
// rename), which keeps unlocked readers consistent.
type FileBackend struct {
	dir string
	log *zap.Logger

	tenantMu sync.Mutex
	tenants  map[string]*sync.Mutex

	corruptReads atomic.Int64
}

func NewFileBackend(dir string, log *zap.Logger) (*FileBackend, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: data directory not set", ErrConfiguration)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create data dir %s: %v", ErrUnavailable, dir, err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FileBackend{dir: dir, log: log, tenants: make(map[string]*sync.Mutex)}, nil
}

func (f *FileBackend) tenantLock(tenant string) *sync.Mutex {
	f.tenantMu.Lock()
	defer f.tenantMu.Unlock()

	mu, ok := f.tenants[tenant]
	if !ok {
		mu = &sync.Mutex{}
		f.tenants[tenant] = mu
	}
	return mu
}

// CorruptReads reports how many tenant files were skipped as unreadable or
// malformed since startup.
func (f *FileBackend) CorruptReads() int64 {
	return f.corruptReads.Load()
}

func (f *FileBackend) tenantPath(tenant string) string {
	name := tenantFileSanitizer.ReplaceAllString(tenant, "_")
	return filepath.Join(f.dir, name+".json")
}

// readTenant loads one tenant file. An absent file is an empty tenant; a
// malformed one is skipped (counted and logged) rather than failing the read.
func (f *FileBackend) readTenant(path string) []model.UserRecord {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		f.corruptReads.Add(1)
		f.log.Warn("skipping unreadable tenant file", zap.String("path", path), zap.Error(err))
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	var records []model.UserRecord
	if err := json.Unmarshal(data, &records); err != nil {
		f.corruptReads.Add(1)
		f.log.Warn("skipping malformed tenant file", zap.String("path", path), zap.Error(err))
		return nil
	}
	return records
}

func (f *FileBackend) writeTenant(path string, records []model.UserRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tenant file: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(f.dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrUnavailable, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: chmod temp file: %v", ErrUnavailable, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write temp file: %v", ErrUnavailable, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: sync temp file: %v", ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp file: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: rename temp file: %v", ErrUnavailable, err)
	}
	return nil
}

func (f *FileBackend) RecordActivity(ctx context.Context, event model.ActivityEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mu := f.tenantLock(event.Tenant)
	mu.Lock()
	defer mu.Unlock()

	path := f.tenantPath(event.Tenant)
	records := f.readTenant(path)

	id := model.UserID(event.Tenant, event.UserEmail)
	updated := false
	for i := range records {
		if records[i].ID == id {
			records[i].Apply(event)
			updated = true
			break
		}
	}
	if !updated {
		records = append(records, model.NewUserRecord(event))
	}

	sort.Slice(records, func(i, j int) bool { return lessRecent(records[i], records[j]) })
	return f.writeTenant(path, records)
}

func (f *FileBackend) GetAllUsers(ctx context.Context, tenant string) ([]model.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []model.UserRecord
	if tenant != "" {
		records = f.readTenant(f.tenantPath(tenant))
	} else {
		entries, err := os.ReadDir(f.dir)
		if err != nil {
			return nil, fmt.Errorf("%w: read data dir: %v", ErrUnavailable, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
				continue
			}
			records = append(records, f.readTenant(filepath.Join(f.dir, entry.Name()))...)
		}
	}

	sort.Slice(records, func(i, j int) bool { return lessRecent(records[i], records[j]) })
	return records, nil
}

func (f *FileBackend) GetUserByEmail(ctx context.Context, tenant, email string) (model.UserRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.UserRecord{}, err
	}

	id := model.UserID(tenant, email)
	for _, rec := range f.readTenant(f.tenantPath(tenant)) {
		if rec.ID == id {
			return rec, nil
		}
	}
	return model.UserRecord{}, ErrNotFound
}

func (f *FileBackend) DeleteUser(ctx context.Context, tenant, email string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mu := f.tenantLock(tenant)
	mu.Lock()
	defer mu.Unlock()

	path := f.tenantPath(tenant)
	records := f.readTenant(path)

	id := model.UserID(tenant, email)
	kept := records[:0]
	for _, rec := range records {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	if len(kept) == len(records) {
		return nil
	}
	return f.writeTenant(path, kept)
}

var _ Backend = (*FileBackend)(nil)
