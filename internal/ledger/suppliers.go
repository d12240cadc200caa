package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"ordersbot/internal/logger"
	"ordersbot/pkg/models"
)

// Supplier ledger columns; billing-cycle column pairs follow.
const (
	ColSourceName = iota
	ColPaymentInfo
	firstCycleCol
)

// PaidMarker is the text a cycle status cell contains once the cycle is settled.
const PaidMarker = "đã thanh toán"

// SupplierSnapshot is one read of the supplier ledger.
type SupplierSnapshot struct {
	Rows   [][]string
	Cycles []Cycle
}

// SourceRecord is one supplier row with its grid position.
type SourceRecord struct {
	Row    int
	Source models.Source
}

// Suppliers is the supplier ledger.
type Suppliers struct {
	table Table
	loc   *time.Location
	log   zerolog.Logger
}

// NewSuppliers wraps a table as the supplier ledger.
func NewSuppliers(table Table, loc *time.Location) *Suppliers {
	if loc == nil {
		loc = time.UTC
	}
	return &Suppliers{
		table: table,
		loc:   loc,
		log:   logger.WithComponent("ledger-suppliers"),
	}
}

// Load reads the whole supplier ledger and its cycle headers.
func (s *Suppliers) Load(ctx context.Context) (*SupplierSnapshot, error) {
	const op = "Load"

	rows, err := s.table.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read supplier ledger: %w", op, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptySheet)
	}

	return &SupplierSnapshot{
		Rows:   rows,
		Cycles: cyclesFromHeader(rows[0], firstCycleCol, s.loc),
	}, nil
}

// Sources lists every supplier with parsed payment info.
func (s *Suppliers) Sources(ctx context.Context) ([]SourceRecord, error) {
	snap, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Sources(), nil
}

// EnsureCycle returns the cycle containing day, appending a calendar-month cycle (status and
// total columns) when the header has none. The returned snapshot reflects the new columns.
func (s *Suppliers) EnsureCycle(ctx context.Context, day time.Time) (*SupplierSnapshot, Cycle, error) {
	const op = "EnsureCycle"

	snap, err := s.Load(ctx)
	if err != nil {
		return nil, Cycle{}, err
	}
	if c, ok := snap.CycleFor(day); ok {
		return snap, c, nil
	}

	c := MonthCycle(day.In(s.loc))
	if _, err := s.table.AppendColumns(ctx, []string{c.Label, c.TotalHeader()}); err != nil {
		return nil, Cycle{}, fmt.Errorf("%s: failed to add cycle %s: %w", op, c.Label, err)
	}
	s.log.Info().Str("cycle", c.Label).Msg("Billing cycle columns added")

	snap, err = s.Load(ctx)
	if err != nil {
		return nil, Cycle{}, err
	}
	c, ok := snap.CycleFor(day)
	if !ok {
		return nil, Cycle{}, fmt.Errorf("%s: %w: %s", op, ErrCycleNotFound, FormatDate(day))
	}
	return snap, c, nil
}

// WriteCell writes one supplier ledger cell.
func (s *Suppliers) WriteCell(ctx context.Context, row, col int, value string) error {
	if err := s.table.UpdateCell(ctx, row, col, value); err != nil {
		return fmt.Errorf("WriteCell: failed to write supplier cell %d,%d: %w", row, col, err)
	}
	return nil
}

// CycleFor returns the first cycle whose range contains day.
func (snap *SupplierSnapshot) CycleFor(day time.Time) (Cycle, bool) {
	for _, c := range snap.Cycles {
		if c.Contains(day) {
			return c, true
		}
	}
	return Cycle{}, false
}

// Find returns the row of a source, matched by NameKey.
func (snap *SupplierSnapshot) Find(name string) (SourceRecord, error) {
	for i, row := range snap.Rows[1:] {
		if SameName(cell(row, ColSourceName), name) {
			return sourceRecord(row, i+1), nil
		}
	}
	return SourceRecord{}, fmt.Errorf("%w: %s", ErrSourceNotFound, name)
}

// Sources lists every named supplier row.
func (snap *SupplierSnapshot) Sources() []SourceRecord {
	var out []SourceRecord
	for i, row := range snap.Rows[1:] {
		if strings.TrimSpace(cell(row, ColSourceName)) == "" {
			continue
		}
		out = append(out, sourceRecord(row, i+1))
	}
	return out
}

// Cell returns a cell of the snapshot, "" when absent.
func (snap *SupplierSnapshot) Cell(row, col int) string {
	if row < 0 || row >= len(snap.Rows) {
		return ""
	}
	return cell(snap.Rows[row], col)
}

// ExpectedTotal parses the cycle total cell of a source row.
func (snap *SupplierSnapshot) ExpectedTotal(row int, c Cycle) (int64, error) {
	if c.TotalCol < 0 {
		return 0, NewValidationError("total", c.Label, "cycle has no total column")
	}
	raw := snap.Cell(row, c.TotalCol)
	total, err := ParseAmount(raw)
	if err != nil {
		return 0, NewValidationError("total", raw, "expected payment total is not a number")
	}
	return total, nil
}

// IsSettled reports whether a status cell carries the paid marker.
func IsSettled(status string) bool {
	return strings.Contains(strings.ToLower(status), PaidMarker)
}

func sourceRecord(row []string, rowNum int) SourceRecord {
	account, bank := ParsePaymentInfo(cell(row, ColPaymentInfo))
	return SourceRecord{
		Row: rowNum,
		Source: models.Source{
			Name:        strings.TrimSpace(cell(row, ColSourceName)),
			BankAccount: account,
			BankCode:    bank,
		},
	}
}

// ParsePaymentInfo splits the two-line payment info field into account number and bank code.
func ParsePaymentInfo(raw string) (account, bank string) {
	var lines []string
	for _, l := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) > 0 {
		account = strings.ReplaceAll(lines[0], " ", "")
	}
	if len(lines) > 1 {
		bank = strings.ToUpper(lines[1])
	}
	return account, bank
}
