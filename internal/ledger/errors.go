package ledger

import (
	"errors"
	"fmt"
)

// Common ledger errors
var (
	// ErrOrderNotFound is returned when no order row carries the requested id.
	ErrOrderNotFound = errors.New("order not found")

	// ErrSourceNotFound is returned when the supplier ledger has no row for a source name.
	ErrSourceNotFound = errors.New("source not found")

	// ErrPriceNotFound is returned when the price list has no entry for a product and source.
	ErrPriceNotFound = errors.New("price not found")

	// ErrCycleNotFound is returned when no billing-cycle header covers the requested day.
	ErrCycleNotFound = errors.New("billing cycle not found")

	// ErrEmptySheet is returned when a sheet has no header row.
	ErrEmptySheet = errors.New("sheet is empty")
)

// ValidationError reports an input value that cannot be used as-is.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
