package sqlstore

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// EnsureSchema creates the cached_events table and its indexes when the
// embedded migration tree is not being run, e.g. ephemeral test databases.
func EnsureSchema(ctx context.Context, db *bun.DB) error {
	if db == nil {
		return fmt.Errorf("sqlstore: bun db is required")
	}
	if _, err := db.NewCreateTable().
		Model((*cachedEventRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: create cached_events table: %w", err)
	}
	if _, err := db.NewCreateIndex().
		Model((*cachedEventRecord)(nil)).
		Unique().
		Index("uq_cached_events_resource").
		Column("grant_id", "resource_type", "resource_id").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: create cached_events unique index: %w", err)
	}
	if _, err := db.NewCreateIndex().
		Model((*cachedEventRecord)(nil)).
		Index("ix_cached_events_expires_at").
		Column("expires_at").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: create cached_events expiry index: %w", err)
	}
	return nil
}
