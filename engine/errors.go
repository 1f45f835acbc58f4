/*
errors.go - Error taxonomy for the payroll engine

PURPOSE:
  Three disjoint error classes, matching who can fix the problem:

  1. ValidationError      user-correctable input (bad dates, wage below the
                          statutory floor, a run that fails its gates)
  2. ConfigurationError   administrator-correctable setup (missing legal
                          parameters for a year, missing fund affiliation)
  3. InconsistencyError   caller bugs that should never happen with valid
                          inputs (overlapping segments, negative bases);
                          these raise rather than clamp, because silently
                          clamping would hide payroll-accuracy defects

PROPAGATION:
  The engine raises synchronously and never retries - every computation is
  deterministic, so there is nothing transient. A failed employee never
  leaves partial output; batch callers collect (employee, error) pairs and
  continue (see engine.go).

USAGE:
  if engine.IsValidation(err) { ... }   // 4xx to the operator
  if engine.IsConfiguration(err) { ... } // fix the parameter set
  errors.Is(err, engine.ErrInvalidPeriod)
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPeriod is returned when a period or range ends before it starts.
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrOutsideContract is returned when a period does not intersect any of
	// the employee's contracts. Callers must filter, not rely on silent zeros.
	ErrOutsideContract = errors.New("period entirely outside contract validity")

	// ErrNoWorkedDays is returned when a benefit is computed over a zero or
	// negative legal-day count.
	ErrNoWorkedDays = errors.New("non-positive legal-day count")

	// ErrMissingFund is returned when an IBC-type calculation needs a fund
	// affiliation the employee does not have.
	ErrMissingFund = errors.New("missing fund affiliation")

	// ErrMissingParams is returned when no legal parameter set exists for the
	// requested year.
	ErrMissingParams = errors.New("missing legal parameters for year")

	// ErrOverlappingSegments indicates two wage segments overlap in time.
	// Valid contract data never produces this.
	ErrOverlappingSegments = errors.New("overlapping wage segments")

	// ErrNegativeBase indicates a computed base went negative.
	ErrNegativeBase = errors.New("negative base amount")

	// ErrRunState is returned on an illegal calculation-run state transition.
	ErrRunState = errors.New("illegal run state transition")

	// ErrRunConfirmed is returned when mutating a confirmed run. Confirmed is
	// terminal; corrections go through adjustment records.
	ErrRunConfirmed = errors.New("run is confirmed and immutable")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError is a user-correctable input problem.
type ValidationError struct {
	Field  string
	Reason string
	cause  error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.cause }

// NewValidationError builds a ValidationError wrapping an optional sentinel.
func NewValidationError(field, reason string, cause error) *ValidationError {
	return &ValidationError{Field: field, Reason: reason, cause: cause}
}

// ConfigurationError is an administrator-correctable setup problem.
type ConfigurationError struct {
	Parameter string
	Year      int
	cause     error
}

func (e *ConfigurationError) Error() string {
	if e.Year != 0 {
		return fmt.Sprintf("configuration: %s (year %d)", e.Parameter, e.Year)
	}
	return "configuration: " + e.Parameter
}

func (e *ConfigurationError) Unwrap() error { return e.cause }

// InconsistencyError indicates a caller bug: inputs that valid data can
// never produce. The engine raises these instead of clamping.
type InconsistencyError struct {
	Detail string
	cause  error
}

func (e *InconsistencyError) Error() string { return "inconsistency: " + e.Detail }

func (e *InconsistencyError) Unwrap() error { return e.cause }

// =============================================================================
// CLASSIFIERS
// =============================================================================

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsConfiguration(err error) bool {
	var c *ConfigurationError
	return errors.As(err, &c)
}

func IsInconsistency(err error) bool {
	var i *InconsistencyError
	return errors.As(err, &i)
}

// EmployeeError pairs a failed employee with its error in a batch run.
// The engine has no batch-level retry or skip policy; the operator reviews
// this list and fixes inputs.
type EmployeeError struct {
	EmployeeID EmployeeID
	Err        error
}

func (e EmployeeError) Error() string {
	return fmt.Sprintf("employee %s: %v", e.EmployeeID, e.Err)
}

func (e EmployeeError) Unwrap() error { return e.Err }
