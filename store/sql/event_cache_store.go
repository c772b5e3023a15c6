package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/singularitybridge/sb-api-services-v2-sub008/core"
)

// EventCacheStore persists webhook-derived resource snapshots keyed by
// (grant_id, resource_type, resource_id). Upsert keeps one live row per key.
type EventCacheStore struct {
	db   *bun.DB
	repo repository.Repository[*cachedEventRecord]
}

func NewEventCacheStore(db *bun.DB) (*EventCacheStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*cachedEventRecord](db, cachedEventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid cached event repository wiring: %w", err)
		}
	}
	return &EventCacheStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *EventCacheStore) Upsert(ctx context.Context, entry core.CacheEntry) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: event cache store is not configured")
	}
	entry.GrantID = strings.TrimSpace(entry.GrantID)
	entry.ResourceType = strings.TrimSpace(entry.ResourceType)
	entry.ResourceID = strings.TrimSpace(entry.ResourceID)
	if entry.ResourceType == "" || entry.ResourceID == "" {
		return fmt.Errorf("sqlstore: resource type and resource id are required")
	}
	now := time.Now().UTC()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findCachedEventTx(ctx, tx, entry.GrantID, entry.ResourceType, entry.ResourceID)
		if err != nil {
			return err
		}
		if record == nil {
			record = newCachedEventRecord(entry, now)
			record.ID = uuid.NewString()
			if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
				if !isUniqueViolation(insertErr) {
					return insertErr
				}
				record, err = findCachedEventTx(ctx, tx, entry.GrantID, entry.ResourceType, entry.ResourceID)
				if err != nil {
					return err
				}
				if record == nil {
					return insertErr
				}
			} else {
				return nil
			}
		}

		record.Fields = copyAnyMap(entry.Fields)
		record.UpdatedAt = now
		if entry.ExpiresAt.IsZero() {
			record.ExpiresAt = nil
		} else {
			expires := entry.ExpiresAt.UTC()
			record.ExpiresAt = &expires
		}
		_, updateErr := tx.NewUpdate().Model(record).Where("id = ?", record.ID).Exec(ctx)
		return updateErr
	})
}

func (s *EventCacheStore) Delete(ctx context.Context, grantID string, resourceType string, resourceID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: event cache store is not configured")
	}
	grantID = strings.TrimSpace(grantID)
	resourceType = strings.TrimSpace(resourceType)
	resourceID = strings.TrimSpace(resourceID)
	if resourceType == "" || resourceID == "" {
		return fmt.Errorf("sqlstore: resource type and resource id are required")
	}

	_, err := s.db.NewDelete().
		Model((*cachedEventRecord)(nil)).
		Where("grant_id = ?", grantID).
		Where("resource_type = ?", resourceType).
		Where("resource_id = ?", resourceID).
		Exec(ctx)
	return err
}

func (s *EventCacheStore) Get(ctx context.Context, grantID string, resourceType string, resourceID string) (core.CacheEntry, error) {
	if s == nil || s.db == nil {
		return core.CacheEntry{}, fmt.Errorf("sqlstore: event cache store is not configured")
	}
	grantID = strings.TrimSpace(grantID)
	resourceType = strings.TrimSpace(resourceType)
	resourceID = strings.TrimSpace(resourceID)
	if resourceType == "" || resourceID == "" {
		return core.CacheEntry{}, fmt.Errorf("sqlstore: resource type and resource id are required")
	}

	record := &cachedEventRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.grant_id = ?", grantID).
		Where("?TableAlias.resource_type = ?", resourceType).
		Where("?TableAlias.resource_id = ?", resourceID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.CacheEntry{}, core.ErrCacheEntryNotFound
		}
		return core.CacheEntry{}, err
	}
	if record.ExpiresAt != nil && !time.Now().UTC().Before(record.ExpiresAt.UTC()) {
		return core.CacheEntry{}, core.ErrCacheEntryNotFound
	}
	return record.toDomain(), nil
}

func (s *EventCacheStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: event cache store is not configured")
	}
	if now.IsZero() {
		now = time.Now()
	}

	res, err := s.db.NewDelete().
		Model((*cachedEventRecord)(nil)).
		Where("expires_at IS NOT NULL").
		Where("expires_at <= ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(affected), nil
}

func findCachedEventTx(
	ctx context.Context,
	tx bun.Tx,
	grantID string,
	resourceType string,
	resourceID string,
) (*cachedEventRecord, error) {
	record := &cachedEventRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.grant_id = ?", strings.TrimSpace(grantID)).
		Where("?TableAlias.resource_type = ?", strings.TrimSpace(resourceType)).
		Where("?TableAlias.resource_id = ?", strings.TrimSpace(resourceID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

var _ core.EventCacheStore = (*EventCacheStore)(nil)
var _ core.EventCachePurger = (*EventCacheStore)(nil)
