package models

import (
	"errors"
	"fmt"
)

// InputError reports malformed input tables: missing columns, unparseable
// dates, non-numeric values or empty tables. Statistics never run on input
// that produced an InputError.
type InputError struct {
	Table   string
	Column  string
	Rows    int
	message string
}

// NewInputError creates a new input error
func NewInputError(table, column string, rows int, format string, args ...interface{}) *InputError {
	return &InputError{
		Table:   table,
		Column:  column,
		Rows:    rows,
		message: fmt.Sprintf(format, args...),
	}
}

// Error returns the error message
func (e *InputError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("input error in %q: %s", e.Table, e.message)
	}
	return fmt.Sprintf("input error in %q column %q: %s", e.Table, e.Column, e.message)
}

// IsInputError checks if an error is an input error
func IsInputError(err error) bool {
	var target *InputError
	return errors.As(err, &target)
}

// InsufficientDataError indicates that a series is too short for a computation
type InsufficientDataError struct {
	What      string
	Available int
	Required  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: available %d, required %d",
		e.What, e.Available, e.Required)
}

// DegeneracyError reports a numeric degeneracy that no fallback could resolve
// (zero variance everywhere, singular design matrix).
type DegeneracyError struct {
	message string
	Err     error
}

// NewDegeneracyError creates a new degeneracy error
func NewDegeneracyError(format string, args ...interface{}) *DegeneracyError {
	return &DegeneracyError{message: fmt.Sprintf(format, args...)}
}

func (e *DegeneracyError) Error() string {
	if e.Err != nil {
		return e.message + ": " + e.Err.Error()
	}
	return e.message
}

// Unwrap returns the underlying solver error, if any
func (e *DegeneracyError) Unwrap() error {
	return e.Err
}

// IsDegeneracyError checks if an error is a degeneracy error
func IsDegeneracyError(err error) bool {
	var target *DegeneracyError
	return errors.As(err, &target)
}
