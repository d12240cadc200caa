package renewal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Days per billing unit. A year of service is 365 days, any other month count is 30 days each.
const (
	daysPerYear  = 365
	daysPerMonth = 30
)

var (
	durationPattern = regexp.MustCompile(`(?i)--\s*(\d+)\s*m$`)

	// Chat clients and spreadsheets like to turn "--" into a typographic dash.
	dashReplacer = strings.NewReplacer(
		"–", "--", // en dash
		"—", "--", // em dash
		"‒", "--", // figure dash
		"―", "--", // horizontal bar
		"−", "--", // minus sign
		"‐", "--", // hyphen
		"‑", "--", // non-breaking hyphen
	)
)

// ParseMonths extracts the month count from a product code such as "NETFLIX--3m".
func ParseMonths(productCode string) (int, error) {
	code := dashReplacer.Replace(strings.TrimSpace(productCode))
	m := durationPattern.FindStringSubmatch(code)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrNoDuration, productCode)
	}
	months, err := strconv.Atoi(m[1])
	if err != nil || months <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrNoDuration, productCode)
	}
	return months, nil
}

// ParseTermDays converts the duration marker of a product code into a term in days.
func ParseTermDays(productCode string) (int, error) {
	months, err := ParseMonths(productCode)
	if err != nil {
		return 0, err
	}
	return MonthsToDays(months), nil
}

// MonthsToDays maps 12 months to 365 days and any other month count to 30 days per month.
func MonthsToDays(months int) int {
	if months == 12 {
		return daysPerYear
	}
	return months * daysPerMonth
}
