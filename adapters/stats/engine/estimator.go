package engine

import (
	"fmt"
	"math"

	"goelda/adapters/stats/glm"
	"goelda/domain/core"
	"goelda/domain/dilution"
)

const (
	maxBracketExpansions = 30
	maxBisections        = 100
	boundTolerance       = 1e-9
)

// FrequencyEstimator converts single-hit coefficients into per-group
// frequencies with confidence bounds.
type FrequencyEstimator struct {
	fitter *glm.Fitter
	method dilution.IntervalMethod
}

// NewFrequencyEstimator creates an estimator; the fitter is used to refit
// constrained models when profiling.
func NewFrequencyEstimator(fitter *glm.Fitter, method dilution.IntervalMethod) *FrequencyEstimator {
	return &FrequencyEstimator{fitter: fitter, method: method}
}

// Estimate returns one FrequencyEstimate per group in design order.
// A group's log rate is its linear predictor at unit dose; the estimate is
// exp(-logRate) cells per responding unit.
func (e *FrequencyEstimator) Estimate(fit *glm.FittedModel, confidence float64) ([]dilution.FrequencyEstimate, error) {
	if !(confidence > 0 && confidence < 1) {
		return nil, fmt.Errorf("confidence level %v must lie in (0,1)", confidence)
	}
	if fit.Kind() != glm.SingleHit {
		return nil, fmt.Errorf("frequencies come from the single-hit model, got %s", fit.Kind())
	}

	d := fit.Design
	estimates := make([]dilution.FrequencyEstimate, 0, len(d.Groups))
	for _, group := range d.Groups {
		contrast, err := d.GroupContrast(group)
		if err != nil {
			return nil, err
		}
		logRate, stdErr := fit.Contrast(contrast)

		var lo, hi float64
		switch e.method {
		case dilution.IntervalWald:
			z := NormalQuantile(1 - (1-confidence)/2)
			lo, hi = logRate-z*stdErr, logRate+z*stdErr
		default:
			crit := ChiSquareQuantile(confidence, 1)
			p := &profiler{fitter: e.fitter, fit: fit, group: group, contrast: contrast, center: logRate, stdErr: stdErr, crit: crit}
			if lo, err = p.bound(-1); err != nil {
				return nil, err
			}
			if hi, err = p.bound(1); err != nil {
				return nil, err
			}
		}

		// exp(-x) is decreasing, so the upper log-rate bound gives the lower frequency bound.
		lower, upper := math.Exp(-hi), math.Exp(-lo)
		if lower > upper {
			lower, upper = upper, lower
		}
		estimates = append(estimates, dilution.FrequencyEstimate{
			Group:    group,
			Estimate: math.Exp(-logRate),
			Lower:    lower,
			Upper:    upper,
			LogRate:  logRate,
			StdErr:   stdErr,
		})
	}
	return estimates, nil
}

// profiler finds where the (penalized) profile log-likelihood of one group's
// log rate drops by crit/2 from its maximum.
type profiler struct {
	fitter   *glm.Fitter
	fit      *glm.FittedModel
	group    string
	contrast []float64
	center   float64
	stdErr   float64
	crit     float64

	warm []float64
}

// bound searches on one side (dir = -1 lower, +1 upper): step outward in
// doubling multiples of the standard error until the drop exceeds crit,
// then bisect. A point where the constrained model has no optimum counts as
// beyond the bound: the bias-reduction penalty diverges wherever the
// information matrix degenerates, so the search bisects back into the region
// the data support.
func (p *profiler) bound(dir float64) (float64, error) {
	side := "upper"
	if dir < 0 {
		side = "lower"
	}
	p.warm = nil

	step := p.stdErr
	if !(step > 0) || math.IsInf(step, 0) {
		step = 1
	}

	inner, outer := p.center, math.NaN()
	for i := 0; i < maxBracketExpansions; i++ {
		t := p.center + dir*step
		beyond, err := p.beyond(t)
		if err != nil {
			return 0, fmt.Errorf("profiling %s bound for group %q: %w", side, p.group, err)
		}
		if beyond {
			outer = t
			break
		}
		inner = t
		step *= 2
	}
	if math.IsNaN(outer) {
		return 0, core.NewUnboundedIntervalError(p.group, side)
	}

	for i := 0; i < maxBisections && math.Abs(outer-inner) > boundTolerance*(1+math.Abs(inner)); i++ {
		mid := 0.5 * (inner + outer)
		beyond, err := p.beyond(mid)
		if err != nil {
			return 0, fmt.Errorf("profiling %s bound for group %q: %w", side, p.group, err)
		}
		if beyond {
			outer = mid
		} else {
			inner = mid
		}
	}
	return 0.5 * (inner + outer), nil
}

// beyond reports whether t lies outside the interval. Only errors unrelated
// to fitting are returned.
func (p *profiler) beyond(t float64) (bool, error) {
	drop, err := p.drop(t)
	if err != nil {
		if core.IsFittingError(err) {
			return true, nil
		}
		return false, err
	}
	return drop >= p.crit, nil
}

// drop is twice the objective lost by holding the log rate at t.
func (p *profiler) drop(t float64) (float64, error) {
	reduced, err := p.fit.Design.Constrain(p.contrast, t)
	if err != nil {
		return 0, err
	}
	cold := reduced.Reduce(p.fit.Coefficients)
	start := p.warm
	if start == nil {
		start = cold
	}
	m, err := p.fitter.Refit(reduced, p.fit.BiasReduced, start)
	if err != nil && p.warm != nil && core.IsFittingError(err) {
		// The previous point's optimum can sit on the far side of a ridge.
		m, err = p.fitter.Refit(reduced, p.fit.BiasReduced, cold)
	}
	if err != nil {
		return 0, err
	}
	p.warm = m.Coefficients
	return 2 * (p.fit.Objective() - m.Objective()), nil
}
