package dilution

import (
	"fmt"
	"runtime"
	"strings"
)

// IntervalMethod selects how frequency confidence bounds are constructed.
type IntervalMethod string

const (
	IntervalProfile IntervalMethod = "profile"
	IntervalWald    IntervalMethod = "wald"
)

// ParseIntervalMethod accepts "profile", "profile-likelihood" or "wald" in any case.
func ParseIntervalMethod(s string) (IntervalMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "profile", "profile-likelihood", "profilelikelihood":
		return IntervalProfile, nil
	case "wald":
		return IntervalWald, nil
	default:
		return "", fmt.Errorf("unknown interval method %q (want profile or wald)", s)
	}
}

// Options is the configuration surface consumed by the engine.
type Options struct {
	ConfidenceLevel float64        `json:"confidence_level"`
	BiasReduced     bool           `json:"bias_reduced"`
	IntervalMethod  IntervalMethod `json:"interval_method"`
	MaxIterations   int            `json:"max_iterations"`
	Tolerance       float64        `json:"tolerance"`
	Workers         int            `json:"workers"`
}

// DefaultOptions returns the recommended engine settings.
func DefaultOptions() Options {
	return Options{
		ConfidenceLevel: 0.95,
		BiasReduced:     true,
		IntervalMethod:  IntervalProfile,
		MaxIterations:   100,
		Tolerance:       1e-8,
		Workers:         runtime.NumCPU(),
	}
}

// Validate reports the first option outside its domain.
func (o Options) Validate() error {
	if !(o.ConfidenceLevel > 0 && o.ConfidenceLevel < 1) {
		return fmt.Errorf("confidence level %v must lie in (0,1)", o.ConfidenceLevel)
	}
	if o.IntervalMethod != IntervalProfile && o.IntervalMethod != IntervalWald {
		return fmt.Errorf("unknown interval method %q", o.IntervalMethod)
	}
	if o.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be positive, got %d", o.MaxIterations)
	}
	if !(o.Tolerance > 0) {
		return fmt.Errorf("tolerance must be positive, got %v", o.Tolerance)
	}
	if o.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", o.Workers)
	}
	return nil
}
