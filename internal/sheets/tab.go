package sheets

import (
	"context"
	"fmt"
)

// Tab binds the Service to one named sheet and exposes it as a row-addressed table.
type Tab struct {
	svc  *Service
	name string
}

// Tab returns the table view of the named sheet.
func (s *Service) Tab(name string) *Tab {
	return &Tab{svc: s, name: name}
}

// Name returns the sheet title.
func (t *Tab) Name() string {
	return t.name
}

// Rows reads the whole sheet, header row included, as the cell text.
func (t *Tab) Rows(ctx context.Context) ([][]string, error) {
	values, err := t.svc.ReadRange(ctx, fmt.Sprintf("'%s'", t.name))
	if err != nil {
		return nil, err
	}

	rows := make([][]string, len(values))
	for i, row := range values {
		out := make([]string, len(row))
		for j := range row {
			out[j] = getString(row, j)
		}
		rows[i] = out
	}
	return rows, nil
}

// UpdateCell writes a single cell.
func (t *Tab) UpdateCell(ctx context.Context, row, col int, value interface{}) error {
	return t.svc.WriteCells(ctx, t.name, []Cell{{Row: row, Col: col, Value: value}})
}

// UpdateCells writes a set of cells in one request.
func (t *Tab) UpdateCells(ctx context.Context, cells []Cell) error {
	return t.svc.WriteCells(ctx, t.name, cells)
}

// AppendRow appends one row of values.
func (t *Tab) AppendRow(ctx context.Context, values []interface{}) error {
	return t.svc.AppendRow(ctx, t.name, values)
}

// DeleteRow removes a grid row.
func (t *Tab) DeleteRow(ctx context.Context, row int) error {
	return t.svc.DeleteRow(ctx, t.name, row)
}

// AppendColumns adds header cells after the current last header column.
func (t *Tab) AppendColumns(ctx context.Context, headers []string) (int, error) {
	header, err := t.svc.ReadRange(ctx, fmt.Sprintf("'%s'!1:1", t.name))
	if err != nil {
		return 0, err
	}
	width := 0
	if len(header) > 0 {
		width = len(header[0])
	}
	return t.svc.AppendColumns(ctx, t.name, width, headers)
}

// getString extracts a cell as written. Callers trim where a column allows it.
func getString(row []interface{}, index int) string {
	if index >= len(row) || row[index] == nil {
		return ""
	}
	return fmt.Sprintf("%v", row[index])
}
