// Package errors defines the structured error taxonomy used across the
// analytics core: data-access failures, validation failures and numeric
// solver failures.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies an AppError.
type Kind int

const (
	// DataAccess marks failures of the underlying persistence read.
	DataAccess Kind = iota
	// Validation marks missing or inconsistent input data.
	Validation
	// NumericSolve marks failures inside a least-squares or inversion solver.
	NumericSolve
)

func (k Kind) String() string {
	switch k {
	case DataAccess:
		return "data_access"
	case Validation:
		return "validation"
	case NumericSolve:
		return "numeric_solve"
	}
	return "unknown"
}

// AppError is a classified error with an optional cause.
type AppError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// E creates a new AppError without a cause.
func E(kind Kind, message string) error {
	return &AppError{Kind: kind, Message: message}
}

// Ef creates a new AppError with a formatted message.
func Ef(kind Kind, format string, args ...any) error {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err with a classified message. Returns nil if err is nil.
func Wrap(kind Kind, err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{Kind: kind, Message: message, Cause: err}
}

// Wrapf wraps err with a classified, formatted message.
func Wrapf(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: err}
}

func is(err error, kind Kind) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// IsDataAccess reports whether err is classified as a data-access failure.
func IsDataAccess(err error) bool { return is(err, DataAccess) }

// IsValidation reports whether err is classified as a validation failure.
func IsValidation(err error) bool { return is(err, Validation) }

// IsNumericSolve reports whether err is classified as a solver failure.
func IsNumericSolve(err error) bool { return is(err, NumericSolve) }
