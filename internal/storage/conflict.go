package storage

import (
	"fmt"
	"strings"
)

// ConflictError is a structured unique-constraint violation from the row
// store. It exposes the violated constraint's name and column list so
// callers never have to parse driver error messages.
type ConflictError struct {
	Table      string
	Constraint string
	Columns    []string
	Err        error
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("unique constraint %q on %s(%s) violated: %v",
		e.Constraint, e.Table, strings.Join(e.Columns, ", "), e.Err)
}

// Unwrap returns the underlying driver error.
func (e *ConflictError) Unwrap() error {
	return e.Err
}
