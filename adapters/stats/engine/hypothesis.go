package engine

import (
	"errors"
	"fmt"
	"math"

	"goelda/adapters/stats/glm"
	"goelda/domain/core"
	"goelda/domain/dilution"
)

// HypothesisSuite computes the deviance-based tests over nested fits.
// Likelihood-ratio statistics use the unpenalized log-likelihood evaluated at
// each model's own estimate, floored at zero.
type HypothesisSuite struct {
	fitter *glm.Fitter
}

// NewHypothesisSuite creates a test suite
func NewHypothesisSuite(fitter *glm.Fitter) *HypothesisSuite {
	return &HypothesisSuite{fitter: fitter}
}

// Fits groups the three nested fits for one dataset.
type Fits struct {
	Null      *glm.FittedModel
	SingleHit *glm.FittedModel
	Full      *glm.FittedModel
}

// Overall tests for any difference in frequency between groups (df k-1).
func (s *HypothesisSuite) Overall(null, singleHit *glm.FittedModel) (dilution.TestResult, error) {
	return likelihoodRatio(dilution.TestOverall, null, singleHit)
}

// Validity tests whether the log-dose slope is common to all groups (df k-1).
func (s *HypothesisSuite) Validity(singleHit, full *glm.FittedModel) (dilution.TestResult, error) {
	return likelihoodRatio(dilution.TestValidity, singleHit, full)
}

// GoodnessOfFit refers the single-hit residual deviance to chi-square(n-p).
func (s *HypothesisSuite) GoodnessOfFit(singleHit *glm.FittedModel) (dilution.TestResult, error) {
	return residualTest(dilution.TestGoodnessOfFit, singleHit.Deviance, singleHit.DFResidual)
}

// Overdispersion refers the single-hit Pearson statistic to chi-square(n-p).
func (s *HypothesisSuite) Overdispersion(singleHit *glm.FittedModel) (dilution.TestResult, error) {
	return residualTest(dilution.TestOverdispersion, singleHit.Pearson, singleHit.DFResidual)
}

// SingleHitSlope tests the log-dose slope against 1, the value implied by one
// responding unit being sufficient for a positive culture (df 1).
func (s *HypothesisSuite) SingleHitSlope(singleHit *glm.FittedModel) (dilution.TestResult, error) {
	d := singleHit.Design
	slope := d.ColumnIndex(glm.ColumnLogDose)
	if slope < 0 {
		return dilution.TestResult{}, fmt.Errorf("%s design has no %s column", d.Name(), glm.ColumnLogDose)
	}
	contrast := make([]float64, d.NumParams())
	contrast[slope] = 1

	fixed, err := d.Constrain(contrast, 1)
	if err != nil {
		return dilution.TestResult{}, err
	}
	restricted, err := s.fitter.Refit(fixed, singleHit.BiasReduced, fixed.Reduce(singleHit.Coefficients))
	if err != nil {
		return dilution.TestResult{}, fmt.Errorf("fitting unit-slope model: %w", err)
	}
	return likelihoodRatio(dilution.TestSingleHitSlope, restricted, singleHit)
}

// Run computes every full-dataset test. Tests without degrees of freedom are
// listed as omitted; any other failure aborts.
func (s *HypothesisSuite) Run(fits Fits) (dilution.TestSuite, error) {
	var suite dilution.TestSuite

	record := func(kind dilution.TestKind, dst **dilution.TestResult, res dilution.TestResult, err error) error {
		if err == nil {
			*dst = &res
			return nil
		}
		if errors.Is(err, core.ErrDegenerateDF) {
			suite.Omitted = append(suite.Omitted, dilution.OmittedTest{Name: kind, Reason: err.Error()})
			return nil
		}
		return fmt.Errorf("%s test: %w", kind, err)
	}

	res, err := s.Overall(fits.Null, fits.SingleHit)
	if failed := record(dilution.TestOverall, &suite.Overall, res, err); failed != nil {
		return suite, failed
	}
	res, err = s.Validity(fits.SingleHit, fits.Full)
	if failed := record(dilution.TestValidity, &suite.Validity, res, err); failed != nil {
		return suite, failed
	}
	res, err = s.GoodnessOfFit(fits.SingleHit)
	if failed := record(dilution.TestGoodnessOfFit, &suite.GoodnessOfFit, res, err); failed != nil {
		return suite, failed
	}
	res, err = s.Overdispersion(fits.SingleHit)
	if failed := record(dilution.TestOverdispersion, &suite.Overdispersion, res, err); failed != nil {
		return suite, failed
	}
	res, err = s.SingleHitSlope(fits.SingleHit)
	if failed := record(dilution.TestSingleHitSlope, &suite.SingleHitSlope, res, err); failed != nil {
		return suite, failed
	}
	return suite, nil
}

func likelihoodRatio(kind dilution.TestKind, restricted, general *glm.FittedModel) (dilution.TestResult, error) {
	df := general.NumParams() - restricted.NumParams()
	if df <= 0 {
		return dilution.TestResult{}, &core.DegenerateDFError{Test: string(kind), DF: df}
	}
	stat := math.Max(0, 2*(general.LogLik-restricted.LogLik))
	return dilution.TestResult{Name: kind, Statistic: stat, DF: df, PValue: ChiSquarePValue(stat, df)}, nil
}

func residualTest(kind dilution.TestKind, stat float64, df int) (dilution.TestResult, error) {
	if df <= 0 {
		return dilution.TestResult{}, &core.DegenerateDFError{Test: string(kind), DF: df}
	}
	stat = math.Max(0, stat)
	return dilution.TestResult{Name: kind, Statistic: stat, DF: df, PValue: ChiSquarePValue(stat, df)}, nil
}
