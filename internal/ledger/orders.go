package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"ordersbot/internal/logger"
	"ordersbot/internal/sheets"
	"ordersbot/pkg/models"
)

// Order ledger columns.
const (
	ColOrderID = iota
	ColCustomer
	ColProductCode
	ColSource
	ColRegistration
	ColTermDays
	ColExpiry
	ColCost
	ColSale
	ColPaid
	ColNote
	orderColumns
)

// OrderHeaders is the header row written when the order sheet is created.
var OrderHeaders = []string{
	"Mã đơn", "Khách hàng", "Sản phẩm", "Nguồn", "Ngày đăng ký", "Số ngày",
	"Ngày hết hạn", "Giá nhập", "Giá bán", "Đã thanh toán", "Ghi chú",
}

// OrderRecord is one parsed order row and its grid position at read time.
type OrderRecord struct {
	Row   int
	Order models.Order

	// CostErr is set when the cost cell is not a number; such rows never take part in
	// reconciliation.
	CostErr error
	// ExpiryErr is set when the expiry cell is not a date.
	ExpiryErr error
}

// Orders is the order ledger.
type Orders struct {
	table Table
	loc   *time.Location
	log   zerolog.Logger

	// rows guards positions: Delete holds it, and callers that read a row number and write to it
	// later hold it through Lock.
	rows sync.Mutex
}

// NewOrders wraps a table as the order ledger.
func NewOrders(table Table, loc *time.Location) *Orders {
	if loc == nil {
		loc = time.UTC
	}
	return &Orders{
		table: table,
		loc:   loc,
		log:   logger.WithComponent("ledger-orders"),
	}
}

// Lock blocks row deletes until Unlock so that row numbers from List or Find stay valid.
func (o *Orders) Lock() {
	o.rows.Lock()
}

// Unlock releases Lock.
func (o *Orders) Unlock() {
	o.rows.Unlock()
}

// Location returns the time zone dates are parsed in.
func (o *Orders) Location() *time.Location {
	return o.loc
}

// List reads and parses every order row. Rows without an id are skipped.
func (o *Orders) List(ctx context.Context) ([]OrderRecord, error) {
	const op = "List"

	rows, err := o.table.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read order ledger: %w", op, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	records := make([]OrderRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rowNum := i + 1
		if strings.TrimSpace(cell(row, ColOrderID)) == "" {
			continue
		}
		records = append(records, o.parseRow(row, rowNum))
	}

	o.log.Debug().
		Int("total_rows", len(rows)-1).
		Int("orders", len(records)).
		Msg("Order ledger read")

	return records, nil
}

func (o *Orders) parseRow(row []string, rowNum int) OrderRecord {
	rec := OrderRecord{Row: rowNum}
	ord := &rec.Order

	ord.ID = strings.TrimSpace(cell(row, ColOrderID))
	ord.Customer = strings.TrimSpace(cell(row, ColCustomer))
	ord.ProductCode = strings.TrimSpace(cell(row, ColProductCode))
	ord.SourceName = strings.TrimSpace(cell(row, ColSource))
	ord.Paid = models.ParsePaidFlag(cell(row, ColPaid))
	ord.Note = strings.TrimSpace(cell(row, ColNote))

	if d, err := ParseDate(cell(row, ColRegistration), o.loc); err == nil {
		ord.RegistrationDate = d
	}
	if d, err := ParseDate(cell(row, ColExpiry), o.loc); err == nil {
		ord.ExpiryDate = d
	} else {
		rec.ExpiryErr = err
	}
	if n, err := strconv.Atoi(strings.TrimSpace(cell(row, ColTermDays))); err == nil {
		ord.TermDays = n
	}

	if cost, err := ParseAmount(cell(row, ColCost)); err == nil {
		ord.CostPrice = cost
	} else {
		rec.CostErr = err
	}
	if sale, err := ParseAmount(cell(row, ColSale)); err == nil {
		ord.SalePrice = sale
	}

	return rec
}

// Index maps upper-cased order ids to grid rows. It is only valid until the next insert or
// delete and is rebuilt from every fresh List.
func Index(records []OrderRecord) map[string]int {
	idx := make(map[string]int, len(records))
	for _, r := range records {
		idx[strings.ToUpper(r.Order.ID)] = r.Row
	}
	return idx
}

// Find reads the ledger and returns the record with the given id.
func (o *Orders) Find(ctx context.Context, id string) (OrderRecord, error) {
	records, err := o.List(ctx)
	if err != nil {
		return OrderRecord{}, err
	}

	key := strings.ToUpper(strings.TrimSpace(id))
	for _, r := range records {
		if strings.ToUpper(r.Order.ID) == key {
			return r, nil
		}
	}
	return OrderRecord{}, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
}

// Append writes a new order row at the end of the ledger.
func (o *Orders) Append(ctx context.Context, ord models.Order) error {
	const op = "Append"

	values := make([]interface{}, orderColumns)
	values[ColOrderID] = ord.ID
	values[ColCustomer] = ord.Customer
	values[ColProductCode] = ord.ProductCode
	values[ColSource] = ord.SourceName
	values[ColRegistration] = FormatDate(ord.RegistrationDate)
	values[ColTermDays] = ord.TermDays
	values[ColExpiry] = FormatDate(ord.ExpiryDate)
	values[ColCost] = ord.CostPrice
	values[ColSale] = ord.SalePrice
	values[ColPaid] = ord.Paid.Raw()
	values[ColNote] = ord.Note

	if err := o.table.AppendRow(ctx, values); err != nil {
		return fmt.Errorf("%s: failed to append order %s: %w", op, ord.ID, err)
	}

	o.log.Info().Str("order_id", ord.ID).Msg("Order appended")
	return nil
}

// Delete removes the row of the given order. The position is resolved from a fresh read.
func (o *Orders) Delete(ctx context.Context, id string) (models.Order, error) {
	const op = "Delete"

	o.rows.Lock()
	defer o.rows.Unlock()

	rec, err := o.Find(ctx, id)
	if err != nil {
		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := o.table.DeleteRow(ctx, rec.Row); err != nil {
		return models.Order{}, fmt.Errorf("%s: failed to delete order %s: %w", op, id, err)
	}

	o.log.Info().Str("order_id", rec.Order.ID).Int("row", rec.Row+1).Msg("Order deleted")
	return rec.Order, nil
}

// SetPaid writes the same paid flag into every given grid row in one batch.
func (o *Orders) SetPaid(ctx context.Context, rows []int, flag models.PaidFlag) error {
	const op = "SetPaid"

	if len(rows) == 0 {
		return nil
	}

	cells := make([]sheets.Cell, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, sheets.Cell{Row: r, Col: ColPaid, Value: flag.Raw()})
	}
	if err := o.table.UpdateCells(ctx, cells); err != nil {
		return fmt.Errorf("%s: failed to set paid flag on %d rows: %w", op, len(rows), err)
	}
	return nil
}

// UpdatePeriod rewrites the dates, term, prices and paid flag of one row in one batch.
func (o *Orders) UpdatePeriod(ctx context.Context, row int, ord models.Order) error {
	const op = "UpdatePeriod"

	cells := []sheets.Cell{
		{Row: row, Col: ColRegistration, Value: FormatDate(ord.RegistrationDate)},
		{Row: row, Col: ColTermDays, Value: ord.TermDays},
		{Row: row, Col: ColExpiry, Value: FormatDate(ord.ExpiryDate)},
		{Row: row, Col: ColCost, Value: ord.CostPrice},
		{Row: row, Col: ColSale, Value: ord.SalePrice},
		{Row: row, Col: ColPaid, Value: ord.Paid.Raw()},
	}
	if err := o.table.UpdateCells(ctx, cells); err != nil {
		return fmt.Errorf("%s: failed to update order %s: %w", op, ord.ID, err)
	}
	return nil
}
