package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stored in PRAGMA user_version. Bump it when schema.sql changes.
const schemaVersion = 2

// migrations upgrade a database from the version they are keyed by to the
// next one.
var migrations = map[int]string{
	1: "ALTER TABLE datasets ADD COLUMN delete_405 INTEGER NOT NULL DEFAULT 0",
}

// ErrSchemaMismatch indicates the database was created by a different schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// initSchema creates the tables in a fresh database, upgrades older ones and
// refuses databases written by a newer schema.
func (s *Store) initSchema(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	switch version {
	case schemaVersion:
		return nil
	case 0:
		return s.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
			// PRAGMA does not accept bound parameters.
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
				return fmt.Errorf("record schema version: %w", err)
			}
			return nil
		})
	}
	if version > 0 && version < schemaVersion {
		return s.migrate(ctx, version)
	}
	return fmt.Errorf("%w: database has version %d, expected %d (move %s aside to start fresh)",
		ErrSchemaMismatch, version, schemaVersion, s.path)
}

func (s *Store) migrate(ctx context.Context, from int) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for v := from; v < schemaVersion; v++ {
			stmt, ok := migrations[v]
			if !ok {
				return fmt.Errorf("%w: no upgrade from version %d", ErrSchemaMismatch, v)
			}
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("upgrade schema from version %d: %w", v, err)
			}
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	})
}
