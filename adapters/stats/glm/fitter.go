package glm

import (
	"errors"
	"fmt"
	"math"

	"goelda/domain/core"
	"goelda/internal"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultMaxIterations = 100
	DefaultTolerance     = 1e-8

	maxStepHalvings = 30
)

// Fitter fits binomial cloglog models by iteratively reweighted least squares.
// It holds configuration only; concurrent Fit calls are safe.
type Fitter struct {
	MaxIterations int
	Tolerance     float64
	logger        *internal.Logger
}

// NewFitter creates a fitter; non-positive settings fall back to defaults.
func NewFitter(maxIterations int, tolerance float64, logger *internal.Logger) *Fitter {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Fitter{MaxIterations: maxIterations, Tolerance: tolerance, logger: logger}
}

// Fit estimates the coefficients of d. With biasReduced the score is adjusted
// by the gradient of half the log-determinant of the Fisher information
// (Jeffreys prior), which keeps estimates finite under separation.
func (f *Fitter) Fit(d *Design, biasReduced bool) (*FittedModel, error) {
	return f.FitFrom(d, biasReduced, nil)
}

// FitFrom is Fit with explicit starting coefficients; nil derives them from
// the empirical response proportions.
func (f *Fitter) FitFrom(d *Design, biasReduced bool, start []float64) (*FittedModel, error) {
	return f.fit(d, biasReduced, start, false)
}

// Refit is FitFrom for constrained fits whose attained objective is all the
// caller needs. Besides the coefficient test it stops once an iteration gains
// no more than Tolerance*(1+|objective|), which ends drift along the flat
// ridges the penalized surface develops near the probability clamp.
func (f *Fitter) Refit(d *Design, biasReduced bool, start []float64) (*FittedModel, error) {
	return f.fit(d, biasReduced, start, true)
}

func (f *Fitter) fit(d *Design, biasReduced bool, start []float64, onObjective bool) (*FittedModel, error) {
	p := d.NumParams()
	if p == 0 {
		return nil, fmt.Errorf("%s design has no free coefficients", d.Name())
	}

	beta := start
	if len(beta) != p {
		var err error
		if beta, err = f.initialCoefficients(d); err != nil {
			return nil, err
		}
	}

	change := math.Inf(1)
	stopped := func(iter int, beta []float64, err error) error {
		if !errors.Is(err, core.ErrSingularInformation) {
			return err
		}
		return &core.ConvergenceError{
			Model:        d.Name(),
			Iterations:   iter,
			Coefficients: append([]float64(nil), beta...),
			Change:       change,
			Cause:        err,
		}
	}

	state, err := evaluate(d, beta, biasReduced)
	if err != nil {
		return nil, stopped(0, beta, err)
	}

	for iter := 1; iter <= f.MaxIterations; iter++ {
		next, err := f.step(d, state, biasReduced)
		if err != nil {
			return nil, stopped(iter, state.beta, err)
		}

		before := state.objective(biasReduced)
		change = maxRelativeChange(state.beta, next.beta)
		state = next
		gain := state.objective(biasReduced) - before
		f.logger.Trace("fit %s iter=%d objective=%.10g change=%.3g", d.Name(), iter, state.objective(biasReduced), change)

		if change <= f.Tolerance || (onObjective && gain <= f.Tolerance*(1+math.Abs(before))) {
			return state.model(d, biasReduced, iter)
		}
	}

	return nil, &core.ConvergenceError{
		Model:        d.Name(),
		Iterations:   f.MaxIterations,
		Coefficients: append([]float64(nil), state.beta...),
		Change:       change,
	}
}

// step takes one scoring step with step-halving.
func (f *Fitter) step(d *Design, state *fitState, biasReduced bool) (*fitState, error) {
	target, err := state.scoringStep(d, biasReduced)
	if err != nil {
		return nil, err
	}
	return f.halveUntilAscent(d, state, target, biasReduced)
}

// initialCoefficients regresses the empirical linear predictor on the design,
// using proportions shrunk away from 0 and 1.
func (f *Fitter) initialCoefficients(d *Design) ([]float64, error) {
	n, p := d.X.Dims()
	eta := make([]float64, n)
	for i := range eta {
		eta[i] = cloglog((d.Responded[i] + 0.5) / (d.Tested[i] + 1))
	}

	weights := make([]float64, n)
	z := make([]float64, n)
	for i := range eta {
		weights[i] = workingWeight(d.Tested[i], eta[i])
		z[i] = eta[i] - d.Offset[i]
	}

	chol, ok := information(d.X, weights)
	if !ok {
		return nil, core.NewSingularInformationError(d.Name())
	}
	return solveNormal(&chol, d.X, weights, z, p)
}

// halveUntilAscent shortens the step toward target until the objective does
// not decrease, guarding against overshoot far from the optimum.
func (f *Fitter) halveUntilAscent(d *Design, current *fitState, target []float64, biasReduced bool) (*fitState, error) {
	base := current.objective(biasReduced)
	slack := 1e-10 * (1 + math.Abs(base))

	candidate := append([]float64(nil), target...)
	var last error
	for h := 0; h <= maxStepHalvings; h++ {
		next, err := evaluate(d, candidate, biasReduced)
		if err == nil && next.objective(biasReduced) >= base-slack {
			return next, nil
		}
		last = err
		for j := range candidate {
			candidate[j] = 0.5 * (candidate[j] + current.beta[j])
		}
	}
	if last != nil {
		return nil, last
	}
	// No ascent along the scoring direction: already at the optimum to
	// working precision, so stay put and let the change test stop the loop.
	return current, nil
}

// fitState caches everything derived from one coefficient vector.
type fitState struct {
	beta      []float64
	eta       []float64
	fitted    []float64
	dmu       []float64
	weights   []float64
	leverage  []float64 // x_i' I^-1 x_i under the penalty matrix; nil for plain ML
	chol      mat.Cholesky
	logLik    float64
	penalized float64
}

func evaluate(d *Design, beta []float64, biasReduced bool) (*fitState, error) {
	n, _ := d.X.Dims()
	s := &fitState{
		beta:    append([]float64(nil), beta...),
		eta:     make([]float64, n),
		fitted:  make([]float64, n),
		dmu:     make([]float64, n),
		weights: make([]float64, n),
	}

	for i := 0; i < n; i++ {
		eta := d.Offset[i] + floats.Dot(d.X.RawRowView(i), beta)
		if math.IsNaN(eta) {
			return nil, core.NewSingularInformationError(d.Name())
		}
		s.eta[i] = eta
		s.fitted[i] = inverse(eta)
		s.dmu[i] = muEta(eta)
		s.weights[i] = d.Tested[i] * s.dmu[i] * s.dmu[i] / (s.fitted[i] * (1 - s.fitted[i]))
	}

	var ok bool
	if s.chol, ok = information(d.X, s.weights); !ok {
		return nil, core.NewSingularInformationError(d.Name())
	}

	s.logLik = binomialLogLik(d.Responded, d.Tested, s.eta)
	s.penalized = s.logLik
	if !biasReduced {
		return s, nil
	}

	pen := d.penaltyMatrix()
	penChol := s.chol
	if pen != d.X {
		if penChol, ok = information(pen, s.weights); !ok {
			return nil, core.NewSingularInformationError(d.Name())
		}
	}
	s.penalized += 0.5 * penChol.LogDet()

	_, pp := pen.Dims()
	inv := mat.NewSymDense(pp, nil)
	if err := penChol.InverseTo(inv); err != nil {
		return nil, core.NewSingularInformationError(d.Name())
	}
	s.leverage = make([]float64, n)
	for i := 0; i < n; i++ {
		row := mat.NewVecDense(pp, pen.RawRowView(i))
		s.leverage[i] = mat.Inner(row, inv, row)
	}
	return s, nil
}

func (s *fitState) objective(biasReduced bool) float64 {
	if biasReduced {
		return s.penalized
	}
	return s.logLik
}

// scoringStep solves I(beta) beta' = X'W z for the (adjusted) working response
//
//	z = eta - offset + (y/m - p)/d + [h (2 - e^eta/p) / (2w)]
//
// where the bracketed Firth term uses h/w = x' I^-1 x.
func (s *fitState) scoringStep(d *Design, biasReduced bool) ([]float64, error) {
	n, p := d.X.Dims()
	z := make([]float64, n)
	for i := 0; i < n; i++ {
		z[i] = s.eta[i] - d.Offset[i] + (d.Responded[i]/d.Tested[i]-s.fitted[i])/s.dmu[i]
		if biasReduced {
			z[i] += 0.5 * s.leverage[i] * weightSlope(s.eta[i], s.fitted[i])
		}
	}
	return solveNormal(&s.chol, d.X, s.weights, z, p)
}

func (s *fitState) model(d *Design, biasReduced bool, iterations int) (*FittedModel, error) {
	p := d.NumParams()
	cov := mat.NewSymDense(p, nil)
	if err := s.chol.InverseTo(cov); err != nil {
		return nil, core.NewSingularInformationError(d.Name())
	}
	return &FittedModel{
		Design:          d,
		BiasReduced:     biasReduced,
		Coefficients:    s.beta,
		Covariance:      cov,
		Fitted:          s.fitted,
		LogLik:          s.logLik,
		PenalizedLogLik: s.penalized,
		Deviance:        binomialDeviance(d.Responded, d.Tested, s.eta),
		Pearson:         pearsonChiSquare(d.Responded, d.Tested, s.fitted),
		DFResidual:      d.NumObservations() - p,
		Iterations:      iterations,
	}, nil
}

// information factorizes X'WX. ok is false when it is not positive definite.
func information(x *mat.Dense, weights []float64) (mat.Cholesky, bool) {
	n, p := x.Dims()
	info := mat.NewSymDense(p, nil)
	for i := 0; i < n; i++ {
		w := weights[i]
		if w == 0 {
			continue
		}
		row := x.RawRowView(i)
		for a := 0; a < p; a++ {
			wa := w * row[a]
			for b := a; b < p; b++ {
				info.SetSym(a, b, info.At(a, b)+wa*row[b])
			}
		}
	}
	var chol mat.Cholesky
	ok := chol.Factorize(info)
	return chol, ok
}

func solveNormal(chol *mat.Cholesky, x *mat.Dense, weights, z []float64, p int) ([]float64, error) {
	rhs := make([]float64, p)
	for i := range z {
		floats.AddScaled(rhs, weights[i]*z[i], x.RawRowView(i))
	}
	dst := mat.NewVecDense(p, nil)
	if err := chol.SolveVecTo(dst, mat.NewVecDense(p, rhs)); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSingularInformation, err)
	}
	return append([]float64(nil), dst.RawVector().Data...), nil
}

func workingWeight(tested, eta float64) float64 {
	p := inverse(eta)
	d := muEta(eta)
	return tested * d * d / (p * (1 - p))
}

func maxRelativeChange(prev, next []float64) float64 {
	change := 0.0
	for j := range prev {
		c := math.Abs(next[j]-prev[j]) / math.Max(1, math.Abs(prev[j]))
		if c > change || math.IsNaN(c) {
			change = c
		}
	}
	return change
}
