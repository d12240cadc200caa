package renewal

import (
	"time"
)

// DefaultThresholdDays is how close to expiry an order must be to renew.
const DefaultThresholdDays = 4

// InitialExpiry is the last day of a new order's first period. Both ends count, so a 30 day
// term registered on 01/01 expires on 30/01.
func InitialExpiry(registered time.Time, termDays int) time.Time {
	return registered.AddDate(0, 0, termDays-1)
}

// NextStart is the first day of the period after expiry.
func NextStart(expiry time.Time) time.Time {
	return expiry.AddDate(0, 0, 1)
}

// Rollover computes the expiry of a renewed period starting on start. The term is split into
// years (365 days), months (30 days) and remaining days, applied on the calendar; the last day
// is inclusive.
func Rollover(start time.Time, termDays int) time.Time {
	years := termDays / daysPerYear
	rem := termDays % daysPerYear
	months := rem / daysPerMonth
	days := rem%daysPerMonth - 1

	return addMonths(start, years*12+months).AddDate(0, 0, days)
}

// Eligible reports whether an order with daysRemaining left is due for renewal.
func Eligible(daysRemaining, threshold int) bool {
	return daysRemaining <= threshold
}

// addMonths adds months and clamps to the last day of the target month, so 31/01 plus one
// month is 29/02 in a leap year rather than 02/03.
func addMonths(t time.Time, months int) time.Time {
	if months == 0 {
		return t
	}
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
