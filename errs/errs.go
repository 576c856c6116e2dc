// Package errs holds the error taxonomy shared by the policy engine.
//
// Every error carries a short Message and optional Details. Callers match
// them with errors.As and decide how to present them.
package errs

import "fmt"

// ValidationError reports malformed or out-of-range input, e.g. a
// negative contribution or bucket weights that cannot be normalized.
type ValidationError struct {
	Message string
	Details string
}

func (e *ValidationError) Error() string { return format("validation", e.Message, e.Details) }

// PolicyError reports a structurally invalid policy: missing base
// currency, inverted thresholds, unknown buckets.
type PolicyError struct {
	Message string
	Details string
}

func (e *PolicyError) Error() string { return format("policy", e.Message, e.Details) }

// DataMissingError reports a required price or FX point that is absent.
// Key is the ticker or currency pair, Date the requested day.
type DataMissingError struct {
	Key  string
	Date string
}

func (e *DataMissingError) Error() string {
	if e.Date == "" {
		return "data missing: no " + e.Key
	}
	return fmt.Sprintf("data missing: no data for %s on %s", e.Key, e.Date)
}

// Validation returns a *ValidationError with a formatted message.
func Validation(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Policy returns a *PolicyError with a formatted message.
func Policy(format string, args ...any) *PolicyError {
	return &PolicyError{Message: fmt.Sprintf(format, args...)}
}

// NotFound returns a *DataMissingError for a stored record with no date,
// e.g. a snapshot looked up by id.
func NotFound(format string, args ...any) *DataMissingError {
	return &DataMissingError{Key: fmt.Sprintf(format, args...)}
}

// Missing returns a *DataMissingError for key on date.
func Missing(key string, date fmt.Stringer) *DataMissingError {
	return &DataMissingError{Key: key, Date: date.String()}
}

func format(kind, msg, details string) string {
	if details == "" {
		return kind + ": " + msg
	}
	return kind + ": " + msg + " (" + details + ")"
}
