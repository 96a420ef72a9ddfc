package indicator

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidScenario is returned for a scenario outside base/optimistic/pessimistic.
	ErrInvalidScenario = errors.New("invalid scenario")

	// ErrInvalidYearRange is returned when min_year is after max_year.
	ErrInvalidYearRange = errors.New("invalid year range: min after max")

	// ErrForecastUnavailable is returned when the forecast artifact has not been
	// generated. Callers render a warning; it is not a failure of the dashboard.
	ErrForecastUnavailable = errors.New("forecast unavailable")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InvalidScenarioError carries the rejected value.
type InvalidScenarioError struct {
	Value string
}

func (e *InvalidScenarioError) Error() string {
	return fmt.Sprintf("invalid scenario %q: must be one of %v", e.Value, Scenarios())
}

func (e *InvalidScenarioError) Unwrap() error {
	return ErrInvalidScenario
}

// YearRangeError carries the rejected bounds.
type YearRangeError struct {
	Min, Max int
}

func (e *YearRangeError) Error() string {
	return fmt.Sprintf("invalid year range [%d, %d]", e.Min, e.Max)
}

func (e *YearRangeError) Unwrap() error {
	return ErrInvalidYearRange
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidScenario) ||
		errors.Is(err, ErrInvalidYearRange)
}

// IsUnavailable returns true if the error signals a missing artifact.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrForecastUnavailable)
}
