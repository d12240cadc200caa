package ledger

import (
	"context"
	"fmt"
	"sync"

	"ordersbot/internal/sheets"
)

// Table is a row-addressed sheet. Rows and columns are zero-based grid indices; row 0 is the
// header row. Deleting a row shifts every later row up by one, so callers resolve positions
// from a fresh Rows read after any structural change.
type Table interface {
	Rows(ctx context.Context) ([][]string, error)
	UpdateCell(ctx context.Context, row, col int, value interface{}) error
	UpdateCells(ctx context.Context, cells []sheets.Cell) error
	AppendRow(ctx context.Context, values []interface{}) error
	DeleteRow(ctx context.Context, row int) error
	AppendColumns(ctx context.Context, headers []string) (int, error)
}

// MemoryTable is an in-process Table. It backs dry runs and tests.
type MemoryTable struct {
	mu   sync.Mutex
	rows [][]string
}

// NewMemoryTable copies rows into a new table.
func NewMemoryTable(rows [][]string) *MemoryTable {
	t := &MemoryTable{}
	for _, r := range rows {
		t.rows = append(t.rows, append([]string(nil), r...))
	}
	return t
}

// Snapshot copies the current content of src into a MemoryTable.
func Snapshot(ctx context.Context, src Table) (*MemoryTable, error) {
	rows, err := src.Rows(ctx)
	if err != nil {
		return nil, err
	}
	return NewMemoryTable(rows), nil
}

func (t *MemoryTable) Rows(_ context.Context) ([][]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([][]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (t *MemoryTable) UpdateCell(_ context.Context, row, col int, value interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.set(row, col, value)
}

func (t *MemoryTable) UpdateCells(_ context.Context, cells []sheets.Cell) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, c := range cells {
		if err := t.set(c.Row, c.Col, c.Value); err != nil {
			return err
		}
	}
	return nil
}

func (t *MemoryTable) AppendRow(_ context.Context, values []interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	row := make([]string, len(values))
	for i, v := range values {
		row[i] = fmt.Sprint(v)
	}
	t.rows = append(t.rows, row)
	return nil
}

func (t *MemoryTable) DeleteRow(_ context.Context, row int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if row < 0 || row >= len(t.rows) {
		return fmt.Errorf("row %d out of range", row)
	}
	t.rows = append(t.rows[:row], t.rows[row+1:]...)
	return nil
}

func (t *MemoryTable) AppendColumns(_ context.Context, headers []string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.rows) == 0 {
		t.rows = append(t.rows, nil)
	}
	first := len(t.rows[0])
	t.rows[0] = append(t.rows[0], headers...)
	return first, nil
}

// Cell returns the stored value, "" when out of range.
func (t *MemoryTable) Cell(row, col int) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if row < 0 || row >= len(t.rows) {
		return ""
	}
	return cell(t.rows[row], col)
}

func (t *MemoryTable) set(row, col int, value interface{}) error {
	if row < 0 || col < 0 {
		return fmt.Errorf("cell %d,%d out of range", row, col)
	}
	for len(t.rows) <= row {
		t.rows = append(t.rows, nil)
	}
	for len(t.rows[row]) <= col {
		t.rows[row] = append(t.rows[row], "")
	}
	t.rows[row][col] = fmt.Sprint(value)
	return nil
}
