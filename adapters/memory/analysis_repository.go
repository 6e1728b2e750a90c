package memory

import (
	"context"
	"sync"

	"goelda/domain/core"
	"goelda/domain/dilution"
	"goelda/ports"
)

// AnalysisRepository implements ports.AnalysisRepository with in-memory storage
type AnalysisRepository struct {
	bundles map[core.RunID]*dilution.Bundle
	order   []core.RunID // insertion order, oldest first
	mu      sync.RWMutex
}

var _ ports.AnalysisRepository = (*AnalysisRepository)(nil)

func NewAnalysisRepository() *AnalysisRepository {
	return &AnalysisRepository{bundles: make(map[core.RunID]*dilution.Bundle)}
}

func (r *AnalysisRepository) Save(ctx context.Context, bundle *dilution.Bundle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bundles[bundle.RunID]; exists {
		return nil
	}
	cp := *bundle
	r.bundles[bundle.RunID] = &cp
	r.order = append(r.order, bundle.RunID)
	return nil
}

func (r *AnalysisRepository) Get(ctx context.Context, id core.RunID) (*dilution.Bundle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bundles[id]
	if !ok {
		return nil, core.NewNotFoundError("analysis", id.String())
	}
	cp := *b
	return &cp, nil
}

func (r *AnalysisRepository) FindByFingerprint(ctx context.Context, fp core.Fingerprint) (*dilution.Bundle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.order) - 1; i >= 0; i-- {
		if b := r.bundles[r.order[i]]; b.Fingerprint == fp {
			cp := *b
			return &cp, nil
		}
	}
	return nil, core.NewNotFoundError("analysis fingerprint", fp.String())
}

func (r *AnalysisRepository) List(ctx context.Context, limit int) ([]*dilution.Bundle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := len(r.order)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*dilution.Bundle, 0, n)
	for i := len(r.order) - 1; i >= 0 && len(out) < n; i-- {
		cp := *r.bundles[r.order[i]]
		out = append(out, &cp)
	}
	return out, nil
}
