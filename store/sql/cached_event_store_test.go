package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/singularitybridge/sb-api-services-v2-sub008/core"
)

type stubEventCacheStore struct {
	mu          sync.Mutex
	entry       core.CacheEntry
	getCalls    int
	upsertCalls int
	deleteCalls int
	getErr      error
}

func (s *stubEventCacheStore) Upsert(_ context.Context, entry core.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	s.entry = cloneCacheEntry(entry)
	return nil
}

func (s *stubEventCacheStore) Delete(_ context.Context, _ string, _ string, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++
	s.entry = core.CacheEntry{}
	return nil
}

func (s *stubEventCacheStore) Get(_ context.Context, _ string, _ string, _ string) (core.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return core.CacheEntry{}, s.getErr
	}
	return cloneCacheEntry(s.entry), nil
}

func TestCachedEventStore_Get_MissFetchThenHit(t *testing.T) {
	cacheService := newTestEventCacheService(t)
	base := &stubEventCacheStore{
		entry: core.CacheEntry{
			GrantID:      "g1",
			ResourceType: "message",
			ResourceID:   "m1",
			Fields:       map[string]any{"subject": "hello"},
		},
	}

	store, err := NewCachedEventStore(base, cacheService)
	if err != nil {
		t.Fatalf("new cached event store: %v", err)
	}

	if _, err := store.Get(context.Background(), "g1", "message", "m1"); err != nil {
		t.Fatalf("first get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected first get to fetch base store once, got %d", base.getCalls)
	}

	if _, err := store.Get(context.Background(), "g1", "message", "m1"); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected second get to be cache hit, base get calls=%d", base.getCalls)
	}
}

func TestCachedEventStore_Upsert_InvalidatesCachedKey(t *testing.T) {
	cacheService := newTestEventCacheService(t)
	base := &stubEventCacheStore{
		entry: core.CacheEntry{
			GrantID:      "g1",
			ResourceType: "event",
			ResourceID:   "ev1",
			Fields:       map[string]any{"title": "standup"},
		},
	}
	store, err := NewCachedEventStore(base, cacheService)
	if err != nil {
		t.Fatalf("new cached event store: %v", err)
	}

	if _, err := store.Get(context.Background(), "g1", "event", "ev1"); err != nil {
		t.Fatalf("prime cache with get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected one base read after cache prime, got %d", base.getCalls)
	}

	if err := store.Upsert(context.Background(), core.CacheEntry{
		GrantID:      "g1",
		ResourceType: "event",
		ResourceID:   "ev1",
		Fields:       map[string]any{"title": "standup (moved)"},
	}); err != nil {
		t.Fatalf("upsert through cached store: %v", err)
	}
	if base.upsertCalls != 1 {
		t.Fatalf("expected base upsert call count=1, got %d", base.upsertCalls)
	}

	entry, err := store.Get(context.Background(), "g1", "event", "ev1")
	if err != nil {
		t.Fatalf("get after upsert invalidation: %v", err)
	}
	if base.getCalls != 2 {
		t.Fatalf("expected invalidated key to force second base read, got %d", base.getCalls)
	}
	if entry.Fields["title"] != "standup (moved)" {
		t.Fatalf("expected refreshed entry fields, got %v", entry.Fields)
	}
}

func TestCachedEventStore_Delete_InvalidatesCachedKey(t *testing.T) {
	cacheService := newTestEventCacheService(t)
	base := &stubEventCacheStore{
		entry: core.CacheEntry{
			GrantID:      "g1",
			ResourceType: "contact",
			ResourceID:   "c1",
		},
	}
	store, err := NewCachedEventStore(base, cacheService)
	if err != nil {
		t.Fatalf("new cached event store: %v", err)
	}

	if _, err := store.Get(context.Background(), "g1", "contact", "c1"); err != nil {
		t.Fatalf("prime cache with get: %v", err)
	}
	if err := store.Delete(context.Background(), "g1", "contact", "c1"); err != nil {
		t.Fatalf("delete through cached store: %v", err)
	}
	if base.deleteCalls != 1 {
		t.Fatalf("expected base delete call count=1, got %d", base.deleteCalls)
	}

	base.getErr = core.ErrCacheEntryNotFound
	if _, err := store.Get(context.Background(), "g1", "contact", "c1"); !errors.Is(err, core.ErrCacheEntryNotFound) {
		t.Fatalf("expected not-found after delete invalidation, got %v", err)
	}
	if base.getCalls != 2 {
		t.Fatalf("expected delete to force second base read, got %d", base.getCalls)
	}
}

func TestEventCacheKey_Contract(t *testing.T) {
	key, err := EventCacheKey(" g1 ", " Message ", "thread/42 a")
	if err != nil {
		t.Fatalf("build cache key: %v", err)
	}

	const expected = "sb-services::event_cache::v1::g1::message::thread%2F42%20a"
	if key != expected {
		t.Fatalf("unexpected cache key contract: got %q want %q", key, expected)
	}

	if _, err := EventCacheKey("g1", "", "m1"); err == nil {
		t.Fatalf("expected error for missing resource type")
	}
}

func newTestEventCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}
