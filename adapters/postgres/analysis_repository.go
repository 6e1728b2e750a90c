package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"goelda/domain/core"
	"goelda/domain/dilution"
	apperrors "goelda/internal/errors"
	"goelda/ports"

	"github.com/jmoiron/sqlx"
)

// AnalysisRepositoryImpl implements AnalysisRepository for PostgreSQL.
// The bundle is stored whole as JSONB; searchable fields are duplicated
// into columns.
type AnalysisRepositoryImpl struct {
	db *sqlx.DB
}

// NewAnalysisRepository creates a new PostgreSQL analysis repository
func NewAnalysisRepository(db *sqlx.DB) ports.AnalysisRepository {
	return &AnalysisRepositoryImpl{db: db}
}

type analysisRow struct {
	ID          string    `db:"id"`
	Fingerprint string    `db:"fingerprint"`
	Bundle      []byte    `db:"bundle"`
	CreatedAt   time.Time `db:"created_at"`
}

// Save inserts a bundle; an existing run ID is left untouched
func (r *AnalysisRepositoryImpl) Save(ctx context.Context, bundle *dilution.Bundle) error {
	bundleJSON, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("failed to marshal bundle: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO analyses (
			id, fingerprint, group_count, confidence_level, bias_reduced,
			interval_method, bundle, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		bundle.RunID.String(), bundle.Fingerprint.String(), len(bundle.Groups),
		bundle.Options.ConfidenceLevel, bundle.Options.BiasReduced,
		string(bundle.Options.IntervalMethod), bundleJSON, bundle.CreatedAt.Time())
	if err != nil {
		return apperrors.DatabaseError("failed to save analysis", err)
	}
	return nil
}

// Get retrieves a bundle by run ID
func (r *AnalysisRepositoryImpl) Get(ctx context.Context, id core.RunID) (*dilution.Bundle, error) {
	var row analysisRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, fingerprint, bundle, created_at
		FROM analyses
		WHERE id = $1`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("analysis", id.String())
	}
	if err != nil {
		return nil, apperrors.DatabaseError("failed to load analysis", err)
	}
	return row.decode()
}

// FindByFingerprint returns the newest bundle with the given fingerprint
func (r *AnalysisRepositoryImpl) FindByFingerprint(ctx context.Context, fp core.Fingerprint) (*dilution.Bundle, error) {
	var row analysisRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, fingerprint, bundle, created_at
		FROM analyses
		WHERE fingerprint = $1
		ORDER BY created_at DESC
		LIMIT 1`, fp.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("analysis fingerprint", fp.String())
	}
	if err != nil {
		return nil, apperrors.DatabaseError("failed to look up fingerprint", err)
	}
	return row.decode()
}

// List returns bundles newest first
func (r *AnalysisRepositoryImpl) List(ctx context.Context, limit int) ([]*dilution.Bundle, error) {
	query := `
		SELECT id, fingerprint, bundle, created_at
		FROM analyses
		ORDER BY created_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	var rows []analysisRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperrors.DatabaseError("failed to list analyses", err)
	}

	bundles := make([]*dilution.Bundle, 0, len(rows))
	for _, row := range rows {
		b, err := row.decode()
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}

func (row analysisRow) decode() (*dilution.Bundle, error) {
	var b dilution.Bundle
	if err := json.Unmarshal(row.Bundle, &b); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bundle %s: %w", row.ID, err)
	}
	return &b, nil
}
