package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"ordersbot/internal/orders"
	"ordersbot/pkg/models"
)

func TestUnpaidXLSX(t *testing.T) {
	u := &orders.Unpaid{
		Source: "ShopA",
		Orders: []models.Order{
			{
				ID:               "MAVL1",
				ProductCode:      "NETFLIX--1m",
				RegistrationDate: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
				ExpiryDate:       time.Date(2026, 10, 30, 0, 0, 0, 0, time.UTC),
				CostPrice:        70000,
			},
			{ID: "MAVC2", ProductCode: "SPOTIFY--12m", CostPrice: 300000},
		},
		Total: 370000,
	}

	var buf bytes.Buffer
	require.NoError(t, UnpaidXLSX(&buf, u))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Mã đơn", rows[0][1])
	assert.Equal(t, []string{"1", "MAVL1", "NETFLIX--1m", "01/10/2026", "30/10/2026", "70000"}, rows[1])
	assert.Equal(t, "MAVC2", rows[2][1])
	assert.Equal(t, "Tổng", rows[3][4])
	assert.Equal(t, "370000", rows[3][5])
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "chua-thanh-toan-shopa.xlsx", FileName("@Shop A"))
	assert.Equal(t, "chua-thanh-toan-nguon.xlsx", FileName(""))
}
