package engine

import (
	"context"
	"fmt"

	"goelda/adapters/stats/glm"
	"goelda/domain/dilution"

	"golang.org/x/sync/errgroup"
)

// PairwiseComparator runs the overall test on every two-group subset.
type PairwiseComparator struct {
	builder *glm.Builder
	fitter  *glm.Fitter
	suite   *HypothesisSuite
	workers int
}

// NewPairwiseComparator creates a comparator; workers <= 0 means unbounded.
func NewPairwiseComparator(builder *glm.Builder, fitter *glm.Fitter, workers int) *PairwiseComparator {
	return &PairwiseComparator{builder: builder, fitter: fitter, suite: NewHypothesisSuite(fitter), workers: workers}
}

type groupPair struct {
	first, second string
}

// pairsOf lists unordered group pairs in first-appearance order, (i, j) with i < j.
func pairsOf(groups []string) []groupPair {
	pairs := make([]groupPair, 0, len(groups)*(len(groups)-1)/2)
	for i := 0; i < len(groups); i++ {
		for j := i + 1; j < len(groups); j++ {
			pairs = append(pairs, groupPair{groups[i], groups[j]})
		}
	}
	return pairs
}

// Compare evaluates pairs concurrently. Results keep pair order; when several
// pairs fail, the error of the earliest pair is returned.
func (c *PairwiseComparator) Compare(ctx context.Context, ds dilution.Dataset, biasReduced bool) ([]dilution.PairwiseResult, error) {
	pairs := pairsOf(ds.Groups())
	results := make([]dilution.PairwiseResult, len(pairs))
	errs := make([]error, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	if c.workers > 0 {
		g.SetLimit(c.workers)
	}
	for idx, pair := range pairs {
		idx, pair := idx, pair
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			test, err := c.comparePair(ds.Restrict(pair.first, pair.second), biasReduced)
			if err != nil {
				errs[idx] = fmt.Errorf("pairwise %q vs %q: %w", pair.first, pair.second, err)
				return nil
			}
			results[idx] = dilution.PairwiseResult{Group1: pair.first, Group2: pair.second, Test: test}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (c *PairwiseComparator) comparePair(sub dilution.Dataset, biasReduced bool) (dilution.TestResult, error) {
	null, err := c.builder.Build(sub, glm.Null)
	if err != nil {
		return dilution.TestResult{}, err
	}
	single, err := c.builder.Build(sub, glm.SingleHit)
	if err != nil {
		return dilution.TestResult{}, err
	}

	nullFit, err := c.fitter.Fit(null, biasReduced)
	if err != nil {
		return dilution.TestResult{}, err
	}
	singleFit, err := c.fitter.Fit(single, biasReduced)
	if err != nil {
		return dilution.TestResult{}, err
	}
	return c.suite.Overall(nullFit, singleFit)
}
