package engine

import (
	"context"
	"fmt"
	"time"

	"goelda/adapters/stats/glm"
	"goelda/domain/core"
	"goelda/domain/dilution"
	"goelda/internal"
	"goelda/internal/dataset"
)

// Engine runs the complete limiting-dilution analysis of one dataset.
// It holds configuration only; Run may be called concurrently.
type Engine struct {
	opts       dilution.Options
	builder    *glm.Builder
	fitter     *glm.Fitter
	estimator  *FrequencyEstimator
	suite      *HypothesisSuite
	comparator *PairwiseComparator
	logger     *internal.Logger
}

// NewEngine wires the pipeline for the given options.
func NewEngine(opts dilution.Options, logger *internal.Logger) *Engine {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	logger = logger.With("engine")

	builder := glm.NewBuilder()
	fitter := glm.NewFitter(opts.MaxIterations, opts.Tolerance, logger)
	return &Engine{
		opts:       opts,
		builder:    builder,
		fitter:     fitter,
		estimator:  NewFrequencyEstimator(fitter, opts.IntervalMethod),
		suite:      NewHypothesisSuite(fitter),
		comparator: NewPairwiseComparator(builder, fitter, opts.Workers),
		logger:     logger,
	}
}

// Options returns the configuration the engine was built with.
func (e *Engine) Options() dilution.Options { return e.opts }

// Run validates ds, fits the three nested models, and assembles the bundle.
// Nothing is computed for an invalid dataset.
func (e *Engine) Run(ctx context.Context, ds dilution.Dataset) (*dilution.Bundle, error) {
	if err := e.opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	specs, err := e.builder.BuildAll(ds)
	if err != nil {
		return nil, err
	}

	fits, err := e.FitAll(specs)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("fitted %d observations, %d groups in %v", ds.Len(), len(specs.SingleHit.Groups), time.Since(start))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	estimates, err := e.estimator.Estimate(fits.SingleHit, e.opts.ConfidenceLevel)
	if err != nil {
		return nil, fmt.Errorf("estimating frequencies: %w", err)
	}

	tests, err := e.suite.Run(fits)
	if err != nil {
		return nil, err
	}
	for _, omitted := range tests.Omitted {
		e.logger.Info("omitted %s test: %s", omitted.Name, omitted.Reason)
	}

	pairwiseStart := time.Now()
	pairwise, err := e.comparator.Compare(ctx, ds, e.opts.BiasReduced)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("compared %d group pairs in %v", len(pairwise), time.Since(pairwiseStart))

	return &dilution.Bundle{
		RunID:       core.NewRunID(),
		Fingerprint: ds.Fingerprint(e.opts),
		Options:     e.opts,
		Groups:      specs.SingleHit.Groups,
		Estimates:   estimates,
		Tests:       tests,
		Pairwise:    pairwise,
		Summaries:   dataset.Summarize(ds),
		CreatedAt:   core.Now(),
	}, nil
}

// FitAll fits the null, single-hit and full designs.
func (e *Engine) FitAll(specs glm.Specs) (Fits, error) {
	var fits Fits
	for _, kind := range []glm.ModelKind{glm.Null, glm.SingleHit, glm.Full} {
		m, err := e.fitter.Fit(specs.Design(kind), e.opts.BiasReduced)
		if err != nil {
			return Fits{}, fmt.Errorf("fitting %s model: %w", kind, err)
		}
		switch kind {
		case glm.Null:
			fits.Null = m
		case glm.SingleHit:
			fits.SingleHit = m
		case glm.Full:
			fits.Full = m
		}
	}
	return fits, nil
}
