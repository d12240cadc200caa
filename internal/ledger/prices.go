package ledger

import (
	"context"
	"fmt"
	"strings"

	"ordersbot/pkg/models"
)

// Price list sale-rate column headers.
const (
	HeaderPartnerRate = "Giá CTV"
	HeaderRetailRate  = "Giá lẻ"
)

// Price is a cost/sale pair for one product from one source.
type Price struct {
	Cost int64
	Sale int64
}

// PriceList reads the price sheet: product code in column A, one cost column per source
// (header = source name) and the partner and retail sale columns.
type PriceList struct {
	table Table
}

// NewPriceList wraps a table as the price list.
func NewPriceList(table Table) *PriceList {
	return &PriceList{table: table}
}

// Lookup finds the price of productCode from source for the given customer class. The product
// code must match exactly (surrounding spaces ignored) and the source column must hold a number.
func (p *PriceList) Lookup(ctx context.Context, productCode, source string, class models.CustomerClass) (Price, error) {
	const op = "Lookup"

	rows, err := p.table.Rows(ctx)
	if err != nil {
		return Price{}, fmt.Errorf("%s: failed to read price list: %w", op, err)
	}
	if len(rows) == 0 {
		return Price{}, fmt.Errorf("%s: %w", op, ErrEmptySheet)
	}

	header := rows[0]
	sourceCol, partnerCol, retailCol := -1, -1, -1
	for i, h := range header {
		switch {
		case i == 0:
		case NameKey(h) == NameKey(HeaderPartnerRate):
			partnerCol = i
		case NameKey(h) == NameKey(HeaderRetailRate):
			retailCol = i
		case sourceCol < 0 && SameName(h, source):
			sourceCol = i
		}
	}
	if sourceCol < 0 {
		return Price{}, fmt.Errorf("%s: %w: no column for source %s", op, ErrPriceNotFound, source)
	}

	saleCol := retailCol
	if class == models.ClassPartner {
		saleCol = partnerCol
	}

	code := strings.TrimSpace(productCode)
	for _, row := range rows[1:] {
		if strings.TrimSpace(cell(row, 0)) != code {
			continue
		}
		cost, err := ParseAmount(cell(row, sourceCol))
		if err != nil {
			return Price{}, fmt.Errorf("%s: %w: %s has no cost from %s", op, ErrPriceNotFound, code, source)
		}
		sale, err := ParseAmount(cell(row, saleCol))
		if err != nil {
			return Price{}, fmt.Errorf("%s: %w: %s has no %s sale price", op, ErrPriceNotFound, code, class)
		}
		return Price{Cost: cost, Sale: sale}, nil
	}

	return Price{}, fmt.Errorf("%s: %w: %s", op, ErrPriceNotFound, code)
}
