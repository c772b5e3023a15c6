package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/singularitybridge/sb-api-services-v2-sub008/core"
)

type cachedEventRecord struct {
	bun.BaseModel `bun:"table:cached_events,alias:ce"`

	ID           string         `bun:"id,pk"`
	GrantID      string         `bun:"grant_id,notnull"`
	ResourceType string         `bun:"resource_type,notnull"`
	ResourceID   string         `bun:"resource_id,notnull"`
	Fields       map[string]any `bun:"fields,type:jsonb,notnull"`
	ExpiresAt    *time.Time     `bun:"expires_at,nullzero"`
	CreatedAt    time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *cachedEventRecord) toDomain() core.CacheEntry {
	if r == nil {
		return core.CacheEntry{}
	}
	entry := core.CacheEntry{
		GrantID:      r.GrantID,
		ResourceType: r.ResourceType,
		ResourceID:   r.ResourceID,
		Fields:       copyAnyMap(r.Fields),
	}
	if r.ExpiresAt != nil {
		entry.ExpiresAt = r.ExpiresAt.UTC()
	}
	return entry
}

func newCachedEventRecord(entry core.CacheEntry, now time.Time) *cachedEventRecord {
	record := &cachedEventRecord{
		GrantID:      entry.GrantID,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Fields:       copyAnyMap(entry.Fields),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !entry.ExpiresAt.IsZero() {
		expires := entry.ExpiresAt.UTC()
		record.ExpiresAt = &expires
	}
	return record
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
