package reconciliation

import (
	"errors"
	"fmt"
)

// Common reconciliation errors
var (
	// ErrInvalidTotal is returned when the expected payment total is not positive.
	ErrInvalidTotal = errors.New("expected total must be positive")

	// ErrAlreadySettled is returned when the current cycle is already paid in full.
	ErrAlreadySettled = errors.New("billing cycle already settled")
)

// Error wraps a failed ledger call with the source being reconciled.
type Error struct {
	// Op is the operation that failed (e.g., "commitSupplierPayment", "markPaid").
	Op string

	// Source is the supplier being reconciled.
	Source string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("reconciliation: %s failed for %s: %v", e.Op, e.Source, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// wrapError wraps err unless it already is a reconciliation error.
func wrapError(op, source string, err error) error {
	if err == nil {
		return nil
	}

	var recErr *Error
	if errors.As(err, &recErr) {
		return err
	}

	return &Error{Op: op, Source: source, Err: err}
}
