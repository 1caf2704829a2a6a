// Package outcome classifies the result of a single virtual-user iteration.
package outcome

import (
	"errors"
	"fmt"
)

// Outcome is the result of one iteration. A nil Outcome means the iteration
// succeeded; otherwise it is a *GenericError or a *TerminationError.
type Outcome = error

// GenericError marks an iteration failure that does not affect the rest of
// the scenario: it is reported through metrics and the display, and
// execution continues.
type GenericError struct {
	err error
}

// Generic wraps err as a non-fatal iteration failure.
func Generic(err error) *GenericError {
	return &GenericError{err: err}
}

// Genericf builds a GenericError from a format string, like fmt.Errorf.
func Genericf(format string, args ...any) *GenericError {
	return &GenericError{err: fmt.Errorf(format, args...)}
}

func (e *GenericError) Error() string { return e.err.Error() }
func (e *GenericError) Unwrap() error { return e.err }

// TerminationError is fatal for the enclosing scenario: the runner cancels
// the scope, emits a TerminatedError message, and aborts any remaining
// scenario.
type TerminationError struct {
	err error
}

// Termination wraps err as a fatal, scenario-aborting failure.
func Termination(err error) *TerminationError {
	return &TerminationError{err: err}
}

// Terminationf builds a TerminationError from a format string.
func Terminationf(format string, args ...any) *TerminationError {
	return &TerminationError{err: fmt.Errorf(format, args...)}
}

func (e *TerminationError) Error() string { return e.err.Error() }
func (e *TerminationError) Unwrap() error { return e.err }

// IsTermination reports whether err is, or wraps, a *TerminationError.
func IsTermination(err error) bool {
	var t *TerminationError
	return errors.As(err, &t)
}

// AsPanic converts a recovered panic value into a TerminationError, per the
// engine's "panics are caught at the task boundary" contract.
func AsPanic(recovered any) *TerminationError {
	if err, ok := recovered.(error); ok {
		return Terminationf("panic in user operation: %w", err)
	}
	return Terminationf("panic in user operation: %v", recovered)
}
