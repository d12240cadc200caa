package orders

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ordersbot/internal/ledger"
	"ordersbot/pkg/models"
)

type seqIDs struct{ n int }

func (g *seqIDs) NextID(prefix string) (string, error) {
	g.n++
	return fmt.Sprintf("%s%03d", prefix, g.n), nil
}

func newTestService(t *testing.T) (*Service, *ledger.MemoryTable) {
	t.Helper()

	orders := ledger.NewMemoryTable([][]string{
		ledger.OrderHeaders,
		{"MAVL001", "An", "NETFLIX--1m", "ShopA", "01/10/2026", "30", "30/10/2026", "70.000", "110.000", "", ""},
		{"MAVL002", "Binh", "NETFLIX--1m", "@shopa", "", "30", "21/10/2026", "70.000", "110.000", "false", ""},
		{"MAVC003", "Chi", "SPOTIFY--12m", "ShopB", "05/09/2026", "365", "04/09/2027", "300.000", "350.000", "", ""},
		{"MAVL004", "Dung", "NETFLIX--1m", "ShopA", "20/09/2026", "30", "19/10/2026", "70.000", "110.000", "true", ""},
		{"MAVL005", "Em", "NETFLIX--1m", "ShopA", "", "30", "", "abc", "110.000", "", ""},
	})
	suppliers := ledger.NewMemoryTable([][]string{
		{"Nguồn", "Thanh toán"},
		{"ShopA", "0123 456 789\nVCB"},
		{"ShopB", "987654321\nTCB"},
	})
	prices := ledger.NewMemoryTable([][]string{
		{"Mã sản phẩm", "ShopA", "ShopB", "Giá CTV", "Giá lẻ"},
		{"NETFLIX--1m", "70.000", "72.000", "90.000", "110.000"},
	})

	svc := NewService(
		ledger.NewOrders(orders, time.UTC),
		ledger.NewSuppliers(suppliers, time.UTC),
		ledger.NewPriceList(prices),
		&seqIDs{n: 5},
		4,
	)
	svc.SetClock(func() time.Time { return time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC) })
	return svc, orders
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("LooksUpPrices", func(t *testing.T) {
		svc, table := newTestService(t)

		ord, err := svc.Create(ctx, Draft{
			Class:       models.ClassPartner,
			Customer:    " Giang ",
			ProductCode: "NETFLIX--1m",
			Source:      "@shopb",
			Registered:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
		assert.Equal(t, "MAVC006", ord.ID)
		assert.Equal(t, "ShopB", ord.SourceName)
		assert.Equal(t, 30, ord.TermDays)
		assert.Equal(t, time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC), ord.ExpiryDate)
		assert.Equal(t, int64(72000), ord.CostPrice)
		assert.Equal(t, int64(90000), ord.SalePrice)

		assert.Equal(t, "MAVC006", table.Cell(6, ledger.ColOrderID))
		assert.Equal(t, "Giang", table.Cell(6, ledger.ColCustomer))
		assert.Equal(t, "30/01/2024", table.Cell(6, ledger.ColExpiry))
		assert.Equal(t, "", table.Cell(6, ledger.ColPaid))
	})

	t.Run("ExplicitPricesAndToday", func(t *testing.T) {
		svc, _ := newTestService(t)

		ord, err := svc.Create(ctx, Draft{
			Class:       models.ClassRetail,
			ProductCode: "CANVA--12m",
			Source:      "987654321",
			CostPrice:   100,
			SalePrice:   200,
		})
		require.NoError(t, err)
		assert.Equal(t, "MAVL006", ord.ID)
		assert.Equal(t, "ShopB", ord.SourceName)
		assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), ord.RegistrationDate)
		assert.Equal(t, time.Date(2027, 10, 18, 0, 0, 0, 0, time.UTC), ord.ExpiryDate)
	})

	t.Run("Rejects", func(t *testing.T) {
		svc, table := newTestService(t)

		drafts := map[string]Draft{
			"class":    {ProductCode: "NETFLIX--1m", Source: "ShopA"},
			"duration": {Class: models.ClassRetail, ProductCode: "NETFLIX", Source: "ShopA"},
			"source":   {Class: models.ClassRetail, ProductCode: "NETFLIX--1m"},
			"negative": {Class: models.ClassRetail, ProductCode: "NETFLIX--1m", Source: "ShopA", CostPrice: -1},
		}
		for name, d := range drafts {
			_, err := svc.Create(ctx, d)
			assert.True(t, ledger.IsValidation(err), name)
		}

		_, err := svc.Create(ctx, Draft{Class: models.ClassRetail, ProductCode: "NETFLIX--1m", Source: "ShopZ"})
		assert.True(t, errors.Is(err, ledger.ErrSourceNotFound))

		_, err = svc.Create(ctx, Draft{Class: models.ClassRetail, ProductCode: "HBO--1m", Source: "ShopA"})
		assert.True(t, errors.Is(err, ledger.ErrPriceNotFound))

		assert.Equal(t, "", table.Cell(6, ledger.ColOrderID))
	})
}

func TestService_SetPaidAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, table := newTestService(t)

	ord, err := svc.SetPaid(ctx, "mavc003", models.PaidDone)
	require.NoError(t, err)
	assert.Equal(t, models.PaidDone, ord.Paid)
	assert.Equal(t, "true", table.Cell(3, ledger.ColPaid))

	_, err = svc.SetPaid(ctx, "MAVC003", models.PaidUnknown)
	assert.True(t, ledger.IsValidation(err))

	deleted, err := svc.Delete(ctx, "MAVL001")
	require.NoError(t, err)
	assert.Equal(t, "An", deleted.Customer)
	assert.Equal(t, "MAVL002", table.Cell(1, ledger.ColOrderID))

	_, err = svc.SetPaid(ctx, "MAVL002", models.PaidOpen)
	require.NoError(t, err)
	assert.Equal(t, "false", table.Cell(1, ledger.ColPaid))

	_, err = svc.Delete(ctx, "MAVL001")
	assert.True(t, IsNotFound(err))
}

func TestService_Refund(t *testing.T) {
	ctx := context.Background()

	t.Run("ProratesAndRemovesRow", func(t *testing.T) {
		svc, table := newTestService(t)

		r, err := svc.Refund(ctx, "mavl001")
		require.NoError(t, err)
		assert.Equal(t, "MAVL001", r.Order.ID)
		assert.Equal(t, 11, r.DaysRemaining)
		assert.Equal(t, int64(40333), r.Amount)
		assert.Equal(t, "MAVL002", table.Cell(1, ledger.ColOrderID))

		unpaid, err := svc.Unpaid(ctx, "ShopA")
		require.NoError(t, err)
		for _, o := range unpaid.Orders {
			assert.NotEqual(t, "MAVL001", o.ID)
		}
	})

	t.Run("ExpiredRefundsNothing", func(t *testing.T) {
		svc, _ := newTestService(t)

		r, err := svc.Refund(ctx, "MAVL004")
		require.NoError(t, err)
		assert.Equal(t, 0, r.DaysRemaining)
		assert.Equal(t, int64(0), r.Amount)
	})

	t.Run("Missing", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.Refund(ctx, "MAVL999")
		assert.True(t, IsNotFound(err))
	})

	t.Run("RefundAmount", func(t *testing.T) {
		today := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
		ord := models.Order{TermDays: 30, SalePrice: 90000, ExpiryDate: time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)}

		amount, days := RefundAmount(ord, today)
		assert.Equal(t, 30, days)
		assert.Equal(t, int64(90000), amount)

		ord.ExpiryDate = time.Date(2026, 10, 29, 0, 0, 0, 0, time.UTC)
		amount, days = RefundAmount(ord, today)
		assert.Equal(t, 10, days)
		assert.Equal(t, int64(30000), amount)

		amount, _ = RefundAmount(models.Order{TermDays: 30, SalePrice: 90000}, today)
		assert.Equal(t, int64(0), amount)
	})
}

func TestService_Queries(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	t.Run("Unpaid", func(t *testing.T) {
		unpaid, err := svc.Unpaid(ctx, "shopa")
		require.NoError(t, err)

		var ids []string
		for _, o := range unpaid.Orders {
			ids = append(ids, o.ID)
		}
		// MAVL002 is due in 2 days and MAVL004 is paid.
		assert.Equal(t, []string{"MAVL001", "MAVL005"}, ids)
		assert.Equal(t, int64(70000), unpaid.Total)
	})

	t.Run("Expiring", func(t *testing.T) {
		expiring, err := svc.Expiring(ctx)
		require.NoError(t, err)
		// MAVL004 is inside the threshold but already paid
		require.Len(t, expiring, 1)
		assert.Equal(t, "MAVL002", expiring[0].ID)
	})

	t.Run("Sources", func(t *testing.T) {
		sources, err := svc.Sources(ctx)
		require.NoError(t, err)
		require.Len(t, sources, 2)
		assert.Equal(t, models.Source{Name: "ShopA", BankAccount: "0123456789", BankCode: "VCB"}, sources[0])

		src, err := svc.ResolveSource(ctx, "0123456789")
		require.NoError(t, err)
		assert.Equal(t, "ShopA", src.Name)
	})
}
