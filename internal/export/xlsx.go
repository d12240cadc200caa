package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"ordersbot/internal/ledger"
	"ordersbot/internal/orders"
)

// SheetName is the worksheet holding the unpaid orders.
const SheetName = "Chưa thanh toán"

var unpaidHeaders = []interface{}{"STT", "Mã đơn", "Sản phẩm", "Ngày đăng ký", "Ngày hết hạn", "Giá nhập"}

// UnpaidXLSX writes the outstanding queue of a source as a workbook the supplier can check
// against their own records. The last row holds the total.
func UnpaidXLSX(w io.Writer, u *orders.Unpaid) error {
	const op = "UnpaidXLSX"

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("%s: rename sheet: %w", op, err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &unpaidHeaders); err != nil {
		return fmt.Errorf("%s: write header: %w", op, err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("%s: create style: %w", op, err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "F1", bold); err != nil {
		return fmt.Errorf("%s: style header: %w", op, err)
	}

	row := 2
	for i, o := range u.Orders {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		values := []interface{}{
			i + 1,
			o.ID,
			o.ProductCode,
			ledger.FormatDate(o.RegistrationDate),
			ledger.FormatDate(o.ExpiryDate),
			o.CostPrice,
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("%s: write order %s: %w", op, o.ID, err)
		}
		row++
	}

	totalLabel, _ := excelize.CoordinatesToCellName(5, row)
	totalCell, _ := excelize.CoordinatesToCellName(6, row)
	if err := f.SetCellValue(SheetName, totalLabel, "Tổng"); err != nil {
		return fmt.Errorf("%s: write total: %w", op, err)
	}
	if err := f.SetCellValue(SheetName, totalCell, u.Total); err != nil {
		return fmt.Errorf("%s: write total: %w", op, err)
	}
	if err := f.SetCellStyle(SheetName, totalLabel, totalCell, bold); err != nil {
		return fmt.Errorf("%s: style total: %w", op, err)
	}

	if err := f.SetColWidth(SheetName, "B", "C", 20); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := f.SetColWidth(SheetName, "D", "F", 14); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("%s: write workbook: %w", op, err)
	}
	return nil
}

// FileName is the suggested attachment name for a source's export.
func FileName(source string) string {
	key := ledger.NameKey(source)
	if key == "" {
		key = "nguon"
	}
	return fmt.Sprintf("chua-thanh-toan-%s.xlsx", key)
}
