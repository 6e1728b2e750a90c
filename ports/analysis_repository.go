package ports

import (
	"context"

	"goelda/domain/core"
	"goelda/domain/dilution"
)

// AnalysisRepository stores finished result bundles. Bundles are immutable;
// saving an existing run ID replaces nothing and reports no error.
type AnalysisRepository interface {
	// Save stores a bundle under its run ID
	Save(ctx context.Context, bundle *dilution.Bundle) error

	// Get returns the bundle for id, or a core.ErrNotFound error
	Get(ctx context.Context, id core.RunID) (*dilution.Bundle, error)

	// FindByFingerprint returns the newest bundle computed from the same
	// observations and options, or a core.ErrNotFound error
	FindByFingerprint(ctx context.Context, fp core.Fingerprint) (*dilution.Bundle, error)

	// List returns up to limit bundles, newest first; limit <= 0 means all
	List(ctx context.Context, limit int) ([]*dilution.Bundle, error)
}
