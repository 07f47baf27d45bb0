package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SchemaVersionKey is the metadata key holding the current schema version
const SchemaVersionKey = "omni_schema_version"

const metadataTableDDL = `CREATE TABLE IF NOT EXISTS metadata (
    id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
    meta_key VARCHAR(191) NOT NULL,
    meta_value TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    UNIQUE KEY uq_metadata_key (meta_key)
)`

// EnsureMetadataTable creates the key/value metadata table if missing
func EnsureMetadataTable(ctx context.Context, pool *sqlx.DB) error {
	if _, err := pool.ExecContext(ctx, metadataTableDDL); err != nil {
		return fmt.Errorf("failed to create metadata table: %w", err)
	}
	return nil
}

// GetMetaValue reads a metadata value; ok is false when the key is absent
func GetMetaValue(ctx context.Context, pool *sqlx.DB, key string) (string, bool, error) {
	var value string
	err := pool.GetContext(ctx, &value,
		"SELECT meta_value FROM metadata WHERE meta_key = ? ORDER BY updated_at DESC LIMIT 1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read metadata key %s: %w", key, err)
	}
	return value, true, nil
}

// SetMetaValue replaces the value for a key atomically. The table
// emulates upsert with delete-then-insert inside one transaction to
// preserve the unique-key invariant.
func SetMetaValue(ctx context.Context, pool *sqlx.DB, key, value string) error {
	tx, err := pool.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin metadata transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM metadata WHERE meta_key = ?", key); err != nil {
		return fmt.Errorf("failed to clear metadata key %s: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO metadata (meta_key, meta_value) VALUES (?, ?)", key, value); err != nil {
		return fmt.Errorf("failed to write metadata key %s: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit metadata key %s: %w", key, err)
	}
	return nil
}

// CollapseDuplicateMeta removes duplicate metadata rows, keeping the row
// with the most recent updated_at per key. Runs once at startup as a
// housekeeping pass; healthy databases have nothing to collapse.
func CollapseDuplicateMeta(ctx context.Context, pool *sqlx.DB) error {
	_, err := pool.ExecContext(ctx, `
		DELETE m FROM metadata m
		JOIN metadata newer
		  ON newer.meta_key = m.meta_key
		 AND (newer.updated_at > m.updated_at
		   OR (newer.updated_at = m.updated_at AND newer.id > m.id))`)
	if err != nil {
		return fmt.Errorf("failed to collapse duplicate metadata keys: %w", err)
	}
	return nil
}
