package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/singularitybridge/sb-api-services-v2-sub008/core"
	servicemigrations "github.com/singularitybridge/sb-api-services-v2-sub008/migrations"
	sqlstore "github.com/singularitybridge/sb-api-services-v2-sub008/store/sql"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "sb-services-tests"
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	var tableName string
	if err := client.DB().NewRaw(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		"cached_events",
	).Scan(context.Background(), &tableName); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if tableName != "cached_events" {
		t.Fatalf("expected cached_events table, got %q", tableName)
	}
}

func TestEventCacheStore_UpsertGetDelete(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.EventCacheStore()
	if store == nil {
		t.Fatalf("expected event cache store from factory")
	}

	entry := core.CacheEntry{
		GrantID:      "g1",
		ResourceType: "message",
		ResourceID:   "m1",
		Fields:       map[string]any{"subject": "hello"},
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	}
	if err := store.Upsert(ctx, entry); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	loaded, err := store.Get(ctx, "g1", "message", "m1")
	if err != nil {
		t.Fatalf("get after upsert: %v", err)
	}
	if loaded.Fields["subject"] != "hello" {
		t.Fatalf("expected persisted fields, got %v", loaded.Fields)
	}

	entry.Fields = map[string]any{"subject": "hello again"}
	if err := store.Upsert(ctx, entry); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	loaded, err = store.Get(ctx, "g1", "message", "m1")
	if err != nil {
		t.Fatalf("get after second upsert: %v", err)
	}
	if loaded.Fields["subject"] != "hello again" {
		t.Fatalf("expected upsert to replace fields, got %v", loaded.Fields)
	}

	var count int
	if err := client.DB().NewRaw(
		"SELECT COUNT(*) FROM cached_events WHERE grant_id = ? AND resource_type = ? AND resource_id = ?",
		"g1", "message", "m1",
	).Scan(ctx, &count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one row per resource tuple, got %d", count)
	}

	if err := store.Delete(ctx, "g1", "message", "m1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "g1", "message", "m1"); !errors.Is(err, core.ErrCacheEntryNotFound) {
		t.Fatalf("expected not-found after delete, got %v", err)
	}
}

func TestEventCacheStore_GetTreatsExpiredAsMissing(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.EventCacheStore()

	if err := store.Upsert(ctx, core.CacheEntry{
		GrantID:      "g1",
		ResourceType: "event",
		ResourceID:   "ev1",
		Fields:       map[string]any{"title": "standup"},
		ExpiresAt:    time.Now().UTC().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("upsert expired entry: %v", err)
	}

	if _, err := store.Get(ctx, "g1", "event", "ev1"); !errors.Is(err, core.ErrCacheEntryNotFound) {
		t.Fatalf("expected expired entry to read as missing, got %v", err)
	}
}

func TestEventCacheStore_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.EventCacheStore()
	purger := factory.EventCachePurger()
	if purger == nil {
		t.Fatalf("expected event cache purger from factory")
	}

	now := time.Now().UTC()
	entries := []core.CacheEntry{
		{GrantID: "g1", ResourceType: "message", ResourceID: "m1", ExpiresAt: now.Add(-time.Hour)},
		{GrantID: "g1", ResourceType: "message", ResourceID: "m2", ExpiresAt: now.Add(-time.Minute)},
		{GrantID: "g1", ResourceType: "message", ResourceID: "m3", ExpiresAt: now.Add(time.Hour)},
		{GrantID: "g2", ResourceType: "contact", ResourceID: "c1"},
	}
	for _, entry := range entries {
		if err := store.Upsert(ctx, entry); err != nil {
			t.Fatalf("seed entry %s: %v", entry.ResourceID, err)
		}
	}

	purged, err := purger.PurgeExpired(ctx, now)
	if err != nil {
		t.Fatalf("purge expired: %v", err)
	}
	if purged != 2 {
		t.Fatalf("expected 2 purged rows, got %d", purged)
	}

	if _, err := store.Get(ctx, "g1", "message", "m3"); err != nil {
		t.Fatalf("expected live entry to survive purge: %v", err)
	}
	if _, err := store.Get(ctx, "g2", "contact", "c1"); err != nil {
		t.Fatalf("expected entry without expiry to survive purge: %v", err)
	}
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:sb-services-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = servicemigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != servicemigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, servicemigrations.WithValidationTargets(servicemigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}
