package webhooks

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/singularitybridge/sb-api-services-v2-sub008/core"
)

// InMemoryEventCacheStore is a mutex-guarded core.EventCacheStore used by
// tests and zero-configuration wiring. Expired entries are evicted lazily on
// read and by PurgeExpired.
type InMemoryEventCacheStore struct {
	mu      sync.Mutex
	entries map[string]core.CacheEntry
	Now     func() time.Time
}

func NewInMemoryEventCacheStore() *InMemoryEventCacheStore {
	return &InMemoryEventCacheStore{
		entries: map[string]core.CacheEntry{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *InMemoryEventCacheStore) Upsert(_ context.Context, entry core.CacheEntry) error {
	if s == nil {
		return processorInternal("webhooks: event cache store is nil")
	}
	key, err := cacheKey(entry.GrantID, entry.ResourceType, entry.ResourceID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
	return nil
}

func (s *InMemoryEventCacheStore) Delete(_ context.Context, grantID string, resourceType string, resourceID string) error {
	if s == nil {
		return processorInternal("webhooks: event cache store is nil")
	}
	key, err := cacheKey(grantID, resourceType, resourceID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *InMemoryEventCacheStore) Get(_ context.Context, grantID string, resourceType string, resourceID string) (core.CacheEntry, error) {
	if s == nil {
		return core.CacheEntry{}, processorInternal("webhooks: event cache store is nil")
	}
	key, err := cacheKey(grantID, resourceType, resourceID)
	if err != nil {
		return core.CacheEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if ok && !entry.ExpiresAt.IsZero() && !s.now().Before(entry.ExpiresAt) {
		delete(s.entries, key)
		ok = false
	}
	if !ok {
		return core.CacheEntry{}, core.ErrCacheEntryNotFound
	}
	return entry, nil
}

func (s *InMemoryEventCacheStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	if s == nil {
		return 0, processorInternal("webhooks: event cache store is nil")
	}
	if now.IsZero() {
		now = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for key, entry := range s.entries {
		if !entry.ExpiresAt.IsZero() && !now.Before(entry.ExpiresAt) {
			delete(s.entries, key)
			purged++
		}
	}
	return purged, nil
}

// Len reports the live entry count; used by tests.
func (s *InMemoryEventCacheStore) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *InMemoryEventCacheStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func cacheKey(grantID string, resourceType string, resourceID string) (string, error) {
	grantID = strings.TrimSpace(grantID)
	resourceType = strings.TrimSpace(resourceType)
	resourceID = strings.TrimSpace(resourceID)
	if resourceType == "" || resourceID == "" {
		return "", processorBadInput("webhooks: resource type and resource id are required")
	}
	return grantID + "::" + resourceType + "::" + resourceID, nil
}

var _ core.EventCacheStore = (*InMemoryEventCacheStore)(nil)
var _ core.EventCachePurger = (*InMemoryEventCacheStore)(nil)
