package models

import (
	"strings"
	"time"
)

// PaidFlag is the three-valued payment state of an order row.
// The sheet stores it as "", "false" or "true"; comparisons are exact.
type PaidFlag int

const (
	PaidPending PaidFlag = iota // blank cell
	PaidOpen                    // "false"
	PaidDone                    // "true"
	PaidUnknown                 // anything else, never reconciled
)

// ParsePaidFlag maps the raw cell value to a PaidFlag without trimming or case folding.
func ParsePaidFlag(raw string) PaidFlag {
	switch raw {
	case "":
		return PaidPending
	case "false":
		return PaidOpen
	case "true":
		return PaidDone
	default:
		return PaidUnknown
	}
}

// Raw returns the value written back to the sheet.
func (f PaidFlag) Raw() string {
	switch f {
	case PaidOpen:
		return "false"
	case PaidDone:
		return "true"
	default:
		return ""
	}
}

// Outstanding reports whether the order still waits for supplier payment.
func (f PaidFlag) Outstanding() bool {
	return f == PaidPending || f == PaidOpen
}

func (f PaidFlag) String() string {
	switch f {
	case PaidPending:
		return "pending"
	case PaidOpen:
		return "open"
	case PaidDone:
		return "paid"
	default:
		return "unknown"
	}
}

// CustomerClass separates retail buyers from partners (resellers).
type CustomerClass string

const (
	ClassRetail  CustomerClass = "retail"
	ClassPartner CustomerClass = "partner"
)

// Order id prefixes per customer class.
const (
	PrefixRetail  = "MAVL"
	PrefixPartner = "MAVC"
)

// Prefix returns the id prefix for the class.
func (c CustomerClass) Prefix() string {
	if c == ClassPartner {
		return PrefixPartner
	}
	return PrefixRetail
}

// ClassOf derives the customer class from an order id.
func ClassOf(orderID string) CustomerClass {
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(orderID)), PrefixPartner) {
		return ClassPartner
	}
	return ClassRetail
}

type Order struct {
	// Identity
	ID       string // Immutable, prefixed by customer class
	Customer string // Buyer name or contact handle

	// Product
	ProductCode string // Base name + duration marker, e.g. "NETFLIX--3m"
	SourceName  string // Supplying vendor
	TermDays    int    // Derived from ProductCode

	// Dates (calendar days, midnight in the configured location)
	RegistrationDate time.Time
	ExpiryDate       time.Time

	// Amounts in the smallest display unit
	CostPrice int64
	SalePrice int64

	// Status
	Paid PaidFlag
	Note string
}

// Class returns the customer class encoded in the id.
func (o *Order) Class() CustomerClass {
	return ClassOf(o.ID)
}

// DaysRemaining returns expiry minus today in whole calendar days.
// A zero expiry yields 0.
func (o *Order) DaysRemaining(today time.Time) int {
	if o.ExpiryDate.IsZero() {
		return 0
	}
	return DaysBetween(today, o.ExpiryDate)
}

// DaysBetween counts calendar days from a to b, ignoring the time of day.
func DaysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// Source is one supplier row.
type Source struct {
	Name        string
	BankAccount string
	BankCode    string
}
