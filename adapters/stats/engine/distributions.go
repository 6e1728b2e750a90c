package engine

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ChiSquarePValue is the upper-tail probability of a chi-square statistic.
// It is NaN when degreesOfFreedom <= 0; callers report DegenerateDFError
// before asking.
func ChiSquarePValue(statistic float64, degreesOfFreedom int) float64 {
	if degreesOfFreedom <= 0 {
		return math.NaN()
	}
	if statistic <= 0 {
		return 1.0
	}
	p := distuv.ChiSquared{K: float64(degreesOfFreedom)}.Survival(statistic)
	return clampProbability(p)
}

// ChiSquareQuantile returns the chi-square value with lower-tail probability p.
func ChiSquareQuantile(p float64, degreesOfFreedom int) float64 {
	return distuv.ChiSquared{K: float64(degreesOfFreedom)}.Quantile(p)
}

// NormalQuantile computes quantile function for standard normal (inverse CDF)
func NormalQuantile(p float64) float64 {
	return distuv.UnitNormal.Quantile(p)
}

func clampProbability(p float64) float64 {
	if math.IsNaN(p) {
		return 1.0
	}
	return math.Min(1, math.Max(0, p))
}
