// Package errors defines the error taxonomy shared across the ingestion
// pipeline. Errors are typed so callers can branch with errors.As instead of
// matching message text.
package errors

import (
	"fmt"
	"strings"
)

// FetchError is a failed upstream fetch: either a non-retryable status, or a
// retryable one whose retry budget is exhausted. The last response body is
// attached for diagnostics.
type FetchError struct {
	Source     string // upstream name, e.g. "debank"
	StatusCode int
	Body       string
	Attempts   int
	Retryable  bool // the status class was retryable; attempts ran out
	Cause      error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Retryable && e.Attempts > 0 {
		return fmt.Sprintf("%s API failed after %d attempts: %d %s", e.Source, e.Attempts, e.StatusCode, e.Body)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s API request failed: %v", e.Source, e.Cause)
	}
	return fmt.Sprintf("%s API error %d: %s", e.Source, e.StatusCode, e.Body)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// NewFetchStatusError creates a FetchError for a non-2xx response.
func NewFetchStatusError(source string, status int, body string, retryable bool) *FetchError {
	return &FetchError{
		Source:     source,
		StatusCode: status,
		Body:       body,
		Retryable:  retryable,
	}
}

// NewFetchTransportError creates a FetchError for a failed request (network
// errors, timeouts). Transport failures are always retryable.
func NewFetchTransportError(source string, cause error) *FetchError {
	return &FetchError{
		Source:    source,
		Retryable: true,
		Cause:     cause,
	}
}

// SchemaMismatchError signals that the backing table's constraints cannot
// support the requested write mode. It carries the violated constraint and
// concrete remediation steps; it is never downgraded to a different mode.
type SchemaMismatchError struct {
	Table      string
	Constraint string
	Columns    []string
	Cause      error
}

// Error implements the error interface.
func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf(
		"table %q still has a unique constraint %q on (%s) that omits fetched_at, so history cannot be retained. "+
			"Either drop the legacy constraint (see migrations), or keep upsert_snapshot mode and create a UNIQUE constraint that includes fetched_at",
		e.Table, e.Constraint, strings.Join(e.Columns, ", "),
	)
}

// Unwrap returns the underlying store error.
func (e *SchemaMismatchError) Unwrap() error {
	return e.Cause
}

// ConfigurationError is a missing or invalid piece of required external
// configuration, detected before any network activity.
type ConfigurationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// NewConfigurationError creates a ConfigurationError.
func NewConfigurationError(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}
