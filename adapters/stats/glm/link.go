package glm

import "math"

// Machine epsilon; fitted probabilities and mean derivatives are kept at least
// this far from the boundary so working weights never vanish.
const epsilon = 2.220446049250313e-16

// cloglog is the single-hit link g(p) = log(-log(1-p)).
func cloglog(p float64) float64 {
	return math.Log(-math.Log1p(-p))
}

// inverse maps a linear predictor to a response probability,
// p = 1 - exp(-exp(eta)), clamped to [eps, 1-eps].
func inverse(eta float64) float64 {
	p := -math.Expm1(-math.Exp(eta))
	return clamp(p, epsilon, 1-epsilon)
}

// muEta is dp/deta = exp(eta) * exp(-exp(eta)).
func muEta(eta float64) float64 {
	lambda := math.Exp(eta)
	d := lambda * math.Exp(-lambda)
	if math.IsNaN(d) || d < epsilon {
		return epsilon
	}
	return d
}

// logProb returns log p and log(1-p) computed from eta without cancellation.
func logProb(eta float64) (logP, logQ float64) {
	lambda := math.Exp(eta)
	return math.Log(-math.Expm1(-lambda)), -lambda
}

// weightSlope is d(log w)/d(eta) for the binomial cloglog working weight
// w = m d^2 / (p(1-p)), which simplifies to 2 - exp(eta)/p.
func weightSlope(eta, p float64) float64 {
	return 2 - math.Exp(eta)/p
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
