package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"

	"git-activity-server/internal/model"
)

// userRow is the persisted shape of one (tenant, user) pair. The id doubles
// as the uniqueness key (tenant::email); tenant and user_email are indexed
// for scoped queries.
type userRow struct {
	bun.BaseModel `bun:"table:activity_users,alias:u"`

	ID           string                         `bun:"id,pk"`
	Tenant       string                         `bun:"tenant,notnull"`
	UserEmail    string                         `bun:"user_email,notnull"`
	UserName     string                         `bun:"user_name"`
	LastActivity time.Time                      `bun:"last_activity,notnull"`
	Activities   map[string]model.ActivityEntry `bun:"activities,type:jsonb"`
}

func rowFromRecord(rec model.UserRecord) userRow {
	return userRow{
		ID:           rec.ID,
		Tenant:       rec.Tenant,
		UserEmail:    rec.UserEmail,
		UserName:     rec.UserName,
		LastActivity: rec.LastActivity,
		Activities:   rec.Activities,
	}
}

func (r userRow) record() model.UserRecord {
	return model.UserRecord{
		ID:           r.ID,
		Tenant:       r.Tenant,
		UserEmail:    r.UserEmail,
		UserName:     r.UserName,
		LastActivity: r.LastActivity,
		Activities:   r.Activities,
	}
}

// DocumentBackend stores one row per user record in a bun-managed table.
// The connection is process-wide and lazily established on first use; table
// and index creation is idempotent and guarded so concurrent first callers
// initialize exactly once. A failed attempt is not cached: the next caller
// retries, so a transient outage at startup does not wedge the backend.
type DocumentBackend struct {
	dsn string
	log *zap.Logger

	mu sync.Mutex
	db *bun.DB
}

func NewDocumentBackend(dsn string, log *zap.Logger) (*DocumentBackend, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: document store DSN not set", ErrConfiguration)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DocumentBackend{dsn: dsn, log: log}, nil
}

func (d *DocumentBackend) conn(ctx context.Context) (*bun.DB, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		return d.db, nil
	}

	var db *bun.DB
	if strings.HasPrefix(d.dsn, "postgres://") || strings.HasPrefix(d.dsn, "postgresql://") {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(d.dsn)))
		db = bun.NewDB(sqldb, pgdialect.New())
	} else {
		sqldb, err := sql.Open("sqlite3", d.dsn)
		if err != nil {
			return nil, fmt.Errorf("%w: open sqlite store: %v", ErrUnavailable, err)
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
	}

	if _, err := db.NewCreateTable().Model((*userRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create table: %v", ErrUnavailable, err)
	}
	for name, column := range map[string]string{
		"idx_activity_users_tenant":        "tenant",
		"idx_activity_users_email":         "user_email",
		"idx_activity_users_last_activity": "last_activity",
	} {
		if _, err := db.NewCreateIndex().Model((*userRow)(nil)).IfNotExists().Index(name).Column(column).Exec(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: create index %s: %v", ErrUnavailable, name, err)
		}
	}

	d.log.Info("document backend initialized", zap.String("table", "activity_users"))
	d.db = db
	return d.db, nil
}

func (d *DocumentBackend) RecordActivity(ctx context.Context, event model.ActivityEvent) error {
	db, err := d.conn(ctx)
	if err != nil {
		return err
	}

	id := model.UserID(event.Tenant, event.UserEmail)
	row := new(userRow)
	err = db.NewSelect().Model(row).Where("u.id = ?", id).Scan(ctx)

	var rec model.UserRecord
	switch {
	case err == nil:
		rec = row.record()
		rec.Apply(event)
	case errors.Is(err, sql.ErrNoRows):
		// Absent row means a first event for this identity, not a failure.
		rec = model.NewUserRecord(event)
	default:
		return fmt.Errorf("%w: read user %s: %v", ErrUnavailable, id, err)
	}

	upsert := rowFromRecord(rec)
	_, err = db.NewInsert().Model(&upsert).
		On("CONFLICT (id) DO UPDATE").
		Set("user_name = EXCLUDED.user_name").
		Set("last_activity = EXCLUDED.last_activity").
		Set("activities = EXCLUDED.activities").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: upsert user %s: %v", ErrUnavailable, id, err)
	}
	return nil
}

func (d *DocumentBackend) GetAllUsers(ctx context.Context, tenant string) ([]model.UserRecord, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}

	var rows []userRow
	q := db.NewSelect().Model(&rows)
	if tenant != "" {
		q = q.Where("u.tenant = ?", tenant)
	}
	if err := q.OrderExpr("last_activity DESC, id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("%w: list users: %v", ErrUnavailable, err)
	}

	records := make([]model.UserRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

func (d *DocumentBackend) GetUserByEmail(ctx context.Context, tenant, email string) (model.UserRecord, error) {
	db, err := d.conn(ctx)
	if err != nil {
		return model.UserRecord{}, err
	}

	id := model.UserID(tenant, email)
	row := new(userRow)
	if err := db.NewSelect().Model(row).Where("u.id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.UserRecord{}, ErrNotFound
		}
		return model.UserRecord{}, fmt.Errorf("%w: read user %s: %v", ErrUnavailable, id, err)
	}
	return row.record(), nil
}

func (d *DocumentBackend) DeleteUser(ctx context.Context, tenant, email string) error {
	db, err := d.conn(ctx)
	if err != nil {
		return err
	}

	id := model.UserID(tenant, email)
	if _, err := db.NewDelete().Model((*userRow)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
		return fmt.Errorf("%w: delete user %s: %v", ErrUnavailable, id, err)
	}
	return nil
}

// Close releases the lazily-opened connection, if any.
func (d *DocumentBackend) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

var _ Backend = (*DocumentBackend)(nil)
