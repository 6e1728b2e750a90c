package glm

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// FittedModel is the immutable result of fitting one design.
type FittedModel struct {
	Design       *Design
	BiasReduced  bool
	Coefficients []float64
	Covariance   *mat.SymDense // inverse expected information at the estimate
	Fitted       []float64     // response probabilities per observation

	LogLik          float64
	PenalizedLogLik float64 // LogLik + 0.5*log|I|; equals LogLik for plain ML
	Deviance        float64
	Pearson         float64
	DFResidual      int
	Iterations      int
}

// Kind returns which nested model was fitted.
func (m *FittedModel) Kind() ModelKind { return m.Design.Kind }

// NumParams returns the number of estimated coefficients.
func (m *FittedModel) NumParams() int { return len(m.Coefficients) }

// Objective is the criterion the fitter maximized.
func (m *FittedModel) Objective() float64 {
	if m.BiasReduced {
		return m.PenalizedLogLik
	}
	return m.LogLik
}

// StdErr returns the Wald standard error of coefficient j.
func (m *FittedModel) StdErr(j int) float64 {
	return math.Sqrt(m.Covariance.At(j, j))
}

// Contrast returns c·beta and its Wald standard error.
func (m *FittedModel) Contrast(c []float64) (value, stdErr float64) {
	v := mat.NewVecDense(len(c), append([]float64(nil), c...))
	value = mat.Dot(v, mat.NewVecDense(len(m.Coefficients), append([]float64(nil), m.Coefficients...)))
	return value, math.Sqrt(mat.Inner(v, m.Covariance, v))
}

// binomialLogLik is the full binomial log-likelihood including the
// combinatorial constant, so it is comparable across designs on the same data.
func binomialLogLik(responded, tested, eta []float64) float64 {
	ll := 0.0
	for i := range eta {
		y, m := responded[i], tested[i]
		logP, logQ := logProb(eta[i])
		ll += logChoose(m, y)
		if y > 0 {
			ll += y * logP
		}
		if m-y > 0 {
			ll += (m - y) * logQ
		}
	}
	return ll
}

// binomialDeviance is twice the log-likelihood gap to the saturated model.
func binomialDeviance(responded, tested, eta []float64) float64 {
	dev := 0.0
	for i := range eta {
		y, m := responded[i], tested[i]
		logP, logQ := logProb(eta[i])
		if y > 0 {
			dev += y * (math.Log(y/m) - logP)
		}
		if m-y > 0 {
			dev += (m - y) * (math.Log((m-y)/m) - logQ)
		}
	}
	return math.Max(0, 2*dev)
}

// pearsonChiSquare sums squared standardized residuals.
func pearsonChiSquare(responded, tested, fitted []float64) float64 {
	x2 := 0.0
	for i, p := range fitted {
		expected := tested[i] * p
		r := responded[i] - expected
		x2 += r * r / (expected * (1 - p))
	}
	return x2
}

func logChoose(n, k float64) float64 {
	a, _ := math.Lgamma(n + 1)
	b, _ := math.Lgamma(k + 1)
	c, _ := math.Lgamma(n - k + 1)
	return a - b - c
}
