package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input errors
	ErrInputValidation    = errors.New("input validation failed")
	ErrInsufficientGroups = errors.New("insufficient groups")
	ErrDegenerateDose     = errors.New("degenerate dose levels")

	// Fitting errors
	ErrConvergence         = errors.New("model did not converge")
	ErrSingularInformation = errors.New("information matrix is singular")
	ErrUnboundedInterval   = errors.New("confidence bound could not be bracketed")

	// Testing errors
	ErrDegenerateDF = errors.New("degrees of freedom must be positive")

	ErrNotFound = errors.New("resource not found")
)

// InputValidationError names the observation and the invariant it violates.
type InputValidationError struct {
	Row       int
	Field     string
	Invariant string
}

func (e *InputValidationError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("%v: %s: %s", ErrInputValidation, e.Field, e.Invariant)
	}
	return fmt.Sprintf("%v: row %d: %s: %s", ErrInputValidation, e.Row, e.Field, e.Invariant)
}

func (e *InputValidationError) Unwrap() error { return ErrInputValidation }

// DegenerateDoseError reports a group whose dose levels cannot identify a slope.
type DegenerateDoseError struct {
	Group         string
	DistinctDoses int
}

func (e *DegenerateDoseError) Error() string {
	return fmt.Sprintf("%v: group %q has %d distinct dose(s), need at least 2", ErrDegenerateDose, e.Group, e.DistinctDoses)
}

func (e *DegenerateDoseError) Unwrap() error { return ErrDegenerateDose }

// ConvergenceError carries the last iterate so callers can diagnose without re-running.
// Cause is set when iteration stopped early, e.g. on a singular information matrix.
type ConvergenceError struct {
	Model        string
	Iterations   int
	Coefficients []float64
	Change       float64
	Cause        error
}

func (e *ConvergenceError) Error() string {
	msg := fmt.Sprintf("%v: %s model after %d iterations (max coefficient change %.3g)", ErrConvergence, e.Model, e.Iterations, e.Change)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ConvergenceError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrConvergence, e.Cause}
	}
	return []error{ErrConvergence}
}

// DegenerateDFError is returned when a test has no degrees of freedom left.
type DegenerateDFError struct {
	Test string
	DF   int
}

func (e *DegenerateDFError) Error() string {
	return fmt.Sprintf("%v: %s test has %d", ErrDegenerateDF, e.Test, e.DF)
}

func (e *DegenerateDFError) Unwrap() error { return ErrDegenerateDF }

// Error constructors with context
func NewInsufficientGroupsError(found int) error {
	return fmt.Errorf("%w: found %d group(s), need at least 1", ErrInsufficientGroups, found)
}

func NewSingularInformationError(model string) error {
	return fmt.Errorf("%w: %s model", ErrSingularInformation, model)
}

func NewUnboundedIntervalError(group, side string) error {
	return fmt.Errorf("%w: %s bound for group %q", ErrUnboundedInterval, side, group)
}

func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInputError reports failures caused by the dataset itself, surfaced before fitting.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInputValidation) ||
		errors.Is(err, ErrInsufficientGroups) ||
		errors.Is(err, ErrDegenerateDose)
}

// IsFittingError reports numerical failures of an otherwise valid dataset.
func IsFittingError(err error) bool {
	return errors.Is(err, ErrConvergence) ||
		errors.Is(err, ErrSingularInformation) ||
		errors.Is(err, ErrUnboundedInterval)
}
