package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// DateLayout is the day-first layout used in every ledger sheet.
const DateLayout = "02/01/2006"

var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"2006-01-02",
}

// ParseDate parses a day-first calendar date into midnight of loc.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range dateLayouts {
		if date, err := time.ParseInLocation(layout, cleaned, loc); err == nil {
			return date, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", raw)
}

// FormatDate renders a date in the ledger layout; the zero time renders empty.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// Today returns midnight of now in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	n := now.In(loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
}

// ParseAmount parses an integer currency amount. Thousands separators ('.', ',', spaces) and
// currency markers ("đ", "VND", "₫") are ignored; a leading minus is kept.
func ParseAmount(raw string) (int64, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return 0, fmt.Errorf("empty amount")
	}

	negative := strings.HasPrefix(cleaned, "-")

	var digits strings.Builder
	for _, r := range cleaned {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, fmt.Errorf("unable to parse amount: %s", raw)
	}

	amount, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unable to parse amount: %s: %w", raw, err)
	}
	if negative {
		amount = -amount
	}
	return amount, nil
}

// FormatAmount renders an amount with '.' thousands separators, e.g. 1250000 -> "1.250.000".
func FormatAmount(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	s := strconv.FormatInt(amount, 10)
	var out strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out.WriteByte('.')
		}
		out.WriteRune(r)
	}
	return sign + out.String()
}

// NameKey normalizes a supplier name for comparison: one leading '@' dropped, case folded,
// all whitespace removed.
func NameKey(name string) string {
	n := strings.TrimSpace(name)
	n = strings.TrimPrefix(n, "@")
	n = strings.ToLower(n)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, n)
}

// SameName reports whether two supplier names refer to the same source.
func SameName(a, b string) bool {
	ka := NameKey(a)
	return ka != "" && ka == NameKey(b)
}

// cell returns row[col] or "" when the row is shorter.
func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}
