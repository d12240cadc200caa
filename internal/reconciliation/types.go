package reconciliation

import (
	"time"
)

// Candidate is an outstanding order considered for a payment.
type Candidate struct {
	ID         string
	Row        int
	Cost       int64
	Registered time.Time // zero when the sheet date did not parse
}

// Selection is the outcome of the greedy pass.
type Selection struct {
	Total  int64
	Picked []Candidate
}

// Result reports one reconciliation attempt.
type Result struct {
	Source        string
	Expected      int64
	Matched       bool
	AchievedTotal int64
	OrderIDs      []string

	// Cycle and Status are set when the supplier ledger was updated.
	Cycle  string
	Status string
}

// Shortfall is what the best greedy total misses of the target; zero when matched.
func (r *Result) Shortfall() int64 {
	return r.Expected - r.AchievedTotal
}
