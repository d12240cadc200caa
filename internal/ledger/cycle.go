package ledger

import (
	"fmt"
	"strings"
	"time"
)

// TotalHeaderPrefix marks the expected-total column that follows a cycle status column.
const TotalHeaderPrefix = "Tổng "

// Cycle is one billing period of the supplier ledger. StatusCol holds the payment status text,
// TotalCol the expected payment total (-1 when the sheet has no total column for the cycle).
type Cycle struct {
	Label     string
	Start     time.Time
	End       time.Time
	StatusCol int
	TotalCol  int
}

// Contains reports whether day falls inside the cycle, both ends inclusive.
func (c Cycle) Contains(day time.Time) bool {
	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, c.Start.Location())
	return !d.Before(c.Start) && !d.After(c.End)
}

// ParseCycleLabel parses "dd/mm/yyyy-dd/mm/yyyy".
func ParseCycleLabel(label string, loc *time.Location) (Cycle, error) {
	parts := strings.Split(strings.TrimSpace(label), "-")
	if len(parts) != 2 {
		return Cycle{}, fmt.Errorf("cycle label %q is not a date range", label)
	}

	start, err := ParseDate(parts[0], loc)
	if err != nil {
		return Cycle{}, fmt.Errorf("cycle label %q: %w", label, err)
	}
	end, err := ParseDate(parts[1], loc)
	if err != nil {
		return Cycle{}, fmt.Errorf("cycle label %q: %w", label, err)
	}
	if end.Before(start) {
		return Cycle{}, fmt.Errorf("cycle label %q ends before it starts", label)
	}

	return Cycle{
		Label:     strings.TrimSpace(label),
		Start:     start,
		End:       end,
		StatusCol: -1,
		TotalCol:  -1,
	}, nil
}

// MonthCycle returns the calendar-month cycle containing day.
func MonthCycle(day time.Time) Cycle {
	start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 1, -1)
	return Cycle{
		Label:     FormatDate(start) + "-" + FormatDate(end),
		Start:     start,
		End:       end,
		StatusCol: -1,
		TotalCol:  -1,
	}
}

// TotalHeader is the header of the expected-total column of a cycle.
func (c Cycle) TotalHeader() string {
	return TotalHeaderPrefix + c.Label
}

// cyclesFromHeader finds every cycle label in the header row, starting at column from.
func cyclesFromHeader(header []string, from int, loc *time.Location) []Cycle {
	var cycles []Cycle
	for col := from; col < len(header); col++ {
		c, err := ParseCycleLabel(header[col], loc)
		if err != nil {
			continue
		}
		c.StatusCol = col
		next := strings.TrimSpace(cell(header, col+1))
		if strings.HasPrefix(strings.ToLower(next), strings.ToLower(TotalHeaderPrefix)) {
			c.TotalCol = col + 1
		}
		cycles = append(cycles, c)
	}
	return cycles
}
