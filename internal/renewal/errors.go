package renewal

import (
	"errors"
)

// Common renewal errors
var (
	// ErrNoDuration is returned when a product code carries no "--<n>m" duration marker.
	ErrNoDuration = errors.New("product code has no duration marker")

	// ErrBadExpiry is returned when the stored expiry date cannot be parsed.
	ErrBadExpiry = errors.New("expiry date is not a valid date")
)
