package migration

import (
	"context"

	"goelda/internal"
	"goelda/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
	logger  *internal.Logger
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
		logger:  internal.DefaultLogger.With("migration"),
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return errors.Wrap(err, "failed to create analyses table")
	}

	for _, idxSQL := range Indexes {
		if _, err := db.ExecContext(ctx, idxSQL); err != nil {
			// Index creation is best effort; lookups still work without them.
			r.logger.Warn("failed to create index: %v", err)
		}
	}
	return nil
}

// Schema creates the bundle table.
const Schema = `
	CREATE TABLE IF NOT EXISTS analyses (
		id UUID PRIMARY KEY,
		fingerprint CHAR(64) NOT NULL,
		group_count INTEGER NOT NULL,
		confidence_level DOUBLE PRECISION NOT NULL,
		bias_reduced BOOLEAN NOT NULL,
		interval_method VARCHAR(16) NOT NULL,
		bundle JSONB NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)
`

// Indexes lists the secondary indexes on analyses.
var Indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_analyses_fingerprint ON analyses(fingerprint, created_at DESC)",
	"CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at DESC)",
}
