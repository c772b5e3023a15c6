package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/singularitybridge/sb-api-services-v2-sub008/core"
)

const eventCacheKeyPrefix = "sb-services::event_cache::v1"

// CachedEventStore layers a read-through cache over a base event cache
// store. Writes invalidate the cached key so the next read refetches.
type CachedEventStore struct {
	base  core.EventCacheStore
	cache repositorycache.CacheService
}

func NewCachedEventStore(
	base core.EventCacheStore,
	cacheService repositorycache.CacheService,
) (*CachedEventStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base event cache store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: event cache service is required")
	}
	return &CachedEventStore{base: base, cache: cacheService}, nil
}

// EventCacheKey returns the deterministic cache key contract for event
// reads: sb-services::event_cache::v1::<grant_id>::<resource_type>::<resource_id>
// with each segment URL-path escaped after normalization.
func EventCacheKey(grantID string, resourceType string, resourceID string) (string, error) {
	grantID = strings.TrimSpace(grantID)
	resourceType = strings.ToLower(strings.TrimSpace(resourceType))
	resourceID = strings.TrimSpace(resourceID)
	if resourceType == "" || resourceID == "" {
		return "", fmt.Errorf("sqlstore: resource type and resource id are required")
	}
	segments := []string{grantID, resourceType, resourceID}
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(append([]string{eventCacheKeyPrefix}, segments...), "::"), nil
}

func (s *CachedEventStore) Get(ctx context.Context, grantID string, resourceType string, resourceID string) (core.CacheEntry, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.CacheEntry{}, fmt.Errorf("sqlstore: cached event store is not configured")
	}
	cacheKey, err := EventCacheKey(grantID, resourceType, resourceID)
	if err != nil {
		return core.CacheEntry{}, err
	}

	entry, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.CacheEntry, error) {
		fetched, fetchErr := s.base.Get(ctx, grantID, resourceType, resourceID)
		if fetchErr != nil {
			return core.CacheEntry{}, fetchErr
		}
		return cloneCacheEntry(fetched), nil
	})
	if err != nil {
		return core.CacheEntry{}, err
	}
	return cloneCacheEntry(entry), nil
}

func (s *CachedEventStore) Upsert(ctx context.Context, entry core.CacheEntry) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached event store is not configured")
	}
	if err := s.base.Upsert(ctx, entry); err != nil {
		return err
	}
	return s.invalidate(ctx, entry.GrantID, entry.ResourceType, entry.ResourceID)
}

func (s *CachedEventStore) Delete(ctx context.Context, grantID string, resourceType string, resourceID string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached event store is not configured")
	}
	if err := s.base.Delete(ctx, grantID, resourceType, resourceID); err != nil {
		return err
	}
	return s.invalidate(ctx, grantID, resourceType, resourceID)
}

func (s *CachedEventStore) invalidate(ctx context.Context, grantID string, resourceType string, resourceID string) error {
	cacheKey, err := EventCacheKey(grantID, resourceType, resourceID)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

func cloneCacheEntry(entry core.CacheEntry) core.CacheEntry {
	cloned := entry
	cloned.Fields = copyAnyMap(entry.Fields)
	return cloned
}

var _ core.EventCacheStore = (*CachedEventStore)(nil)
