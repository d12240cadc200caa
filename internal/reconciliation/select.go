package reconciliation

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"ordersbot/internal/ledger"
)

// Candidates collects the outstanding orders of source: paid flag blank or "false", a
// positive numeric cost, and a supplier name equal under ledger.NameKey.
func Candidates(records []ledger.OrderRecord, source string) []Candidate {
	var out []Candidate
	for _, r := range records {
		if !r.Order.Paid.Outstanding() || r.CostErr != nil || r.Order.CostPrice <= 0 {
			continue
		}
		if !ledger.SameName(r.Order.SourceName, source) {
			continue
		}
		out = append(out, Candidate{
			ID:         r.Order.ID,
			Row:        r.Row,
			Cost:       r.Order.CostPrice,
			Registered: r.Order.RegistrationDate,
		})
	}
	return out
}

// SelectOrders walks the candidates oldest registration first (undated ones last, sheet order
// otherwise) and adds each cost that keeps the running total within expected. Once the total
// equals expected nothing more is added. The caller decides whether Total == expected.
func SelectOrders(candidates []Candidate, expected int64) Selection {
	ordered := append([]Candidate(nil), candidates...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].Registered, ordered[j].Registered
		switch {
		case a.IsZero():
			return false
		case b.IsZero():
			return true
		default:
			return a.Before(b)
		}
	})

	var sel Selection
	for _, c := range ordered {
		if sel.Total == expected {
			break
		}
		if sel.Total+c.Cost <= expected {
			sel.Total += c.Cost
			sel.Picked = append(sel.Picked, c)
		}
	}
	return sel
}

// Matched reports whether a selection pays exactly expected with at least one order.
func (s Selection) Matched(expected int64) bool {
	return len(s.Picked) > 0 && s.Total == expected
}

var amountPattern = regexp.MustCompile(`\d{1,3}(?:[.,]\d{3})+|\d+`)

// PaidSoFar returns the cumulative amount recorded after the paid marker of a status cell.
func PaidSoFar(status string) int64 {
	_, rest, ok := splitStatus(status)
	if !ok {
		return 0
	}
	token := amountPattern.FindString(rest)
	if token == "" {
		return 0
	}
	amount, err := ledger.ParseAmount(token)
	if err != nil {
		return 0
	}
	return amount
}

// ComposeStatus keeps the operator note in front of the marker and records the new cumulative
// total: "note đã thanh toán 1.250.000".
func ComposeStatus(previous string, achieved int64) string {
	note, _, ok := splitStatus(previous)
	if !ok {
		note = strings.TrimSpace(previous)
	}
	status := ledger.PaidMarker + " " + ledger.FormatAmount(PaidSoFar(previous)+achieved)
	if note != "" {
		status = note + " " + status
	}
	return status
}

// splitStatus splits a status cell around the paid marker, matched case-insensitively on the
// original text so the note keeps its case.
func splitStatus(status string) (note, rest string, ok bool) {
	n := utf8.RuneCountInString(ledger.PaidMarker)
	for i := range status {
		j := i
		for k := 0; k < n && j < len(status); k++ {
			_, size := utf8.DecodeRuneInString(status[j:])
			j += size
		}
		if strings.EqualFold(status[i:j], ledger.PaidMarker) {
			return strings.TrimSpace(status[:i]), status[j:], true
		}
	}
	return "", "", false
}
