package renewal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ordersbot/internal/ledger"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseTermDays(t *testing.T) {
	cases := map[string]int{
		"SPOTIFY--12m": 365,
		"NETFLIX--3m":  90,
		"NETFLIX--1m":  30,
		"YOUTUBE--6M":  180,
		"CANVA-- 24m":  720,
		"CANVA--36m":   1080,
		"NETFLIX–3m":   90,
		"NETFLIX—1m ":  30,
	}
	for code, want := range cases {
		got, err := ParseTermDays(code)
		require.NoError(t, err, code)
		assert.Equal(t, want, got, code)
	}

	for _, code := range []string{"NETFLIX", "NETFLIX-3m", "NETFLIX--0m", "NETFLIX--3m extra", ""} {
		_, err := ParseTermDays(code)
		assert.True(t, errors.Is(err, ErrNoDuration), code)
	}
}

func TestDates(t *testing.T) {
	t.Run("InitialExpiry", func(t *testing.T) {
		assert.Equal(t, date(2024, 1, 30), InitialExpiry(date(2024, 1, 1), 30))
		assert.Equal(t, date(2024, 12, 30), InitialExpiry(date(2024, 1, 1), 365))
	})

	t.Run("CreationAndRenewalConventions", func(t *testing.T) {
		// creation counts the registration day, renewal rolls a whole month from the start day
		assert.Equal(t, date(2024, 1, 30), InitialExpiry(date(2024, 1, 1), 30))
		assert.Equal(t, date(2024, 1, 31), Rollover(date(2024, 1, 1), 30))
		assert.Equal(t, date(2024, 1, 31), Rollover(NextStart(date(2023, 12, 31)), 30))
	})

	t.Run("Rollover", func(t *testing.T) {
		assert.Equal(t, date(2026, 11, 23), Rollover(date(2026, 10, 24), 30))
		assert.Equal(t, date(2027, 1, 23), Rollover(date(2026, 10, 24), 90))
		assert.Equal(t, date(2027, 10, 23), Rollover(date(2026, 10, 24), 365))
		assert.Equal(t, date(2024, 2, 28), Rollover(date(2024, 1, 31), 30))
	})

	t.Run("Eligible", func(t *testing.T) {
		assert.True(t, Eligible(4, DefaultThresholdDays))
		assert.True(t, Eligible(-3, DefaultThresholdDays))
		assert.False(t, Eligible(5, DefaultThresholdDays))
	})
}

type recordingNotifier struct {
	results []Result
}

func (n *recordingNotifier) RenewalResult(_ context.Context, res Result) error {
	n.results = append(n.results, res)
	return nil
}

func fixture() (*ledger.MemoryTable, *ledger.PriceList) {
	orders := ledger.NewMemoryTable([][]string{
		ledger.OrderHeaders,
		{"MAVC1", "Binh", "NETFLIX--1m", "ShopA", "24/09/2026", "30", "23/10/2026", "70.000", "90.000", "true", ""},
		{"MAVL2", "An", "NETFLIX--1m", "ShopA", "25/09/2026", "30", "24/10/2026", "70.000", "110.000", "", ""},
		{"MAVL3", "Chi", "NETFLIX", "ShopA", "01/09/2026", "30", "20/10/2026", "70.000", "110.000", "", ""},
		{"MAVL4", "Dung", "NETFLIX--1m", "ShopA", "01/09/2026", "30", "soon", "70.000", "110.000", "", ""},
		{"MAVL5", "Em", "CANVA--12m", "ShopZ", "21/10/2025", "365", "20/10/2026", "300.000", "400.000", "true", "x"},
	})
	prices := ledger.NewPriceList(ledger.NewMemoryTable([][]string{
		{"Mã sản phẩm", "ShopA", "Giá CTV", "Giá lẻ"},
		{"NETFLIX--1m", "75.000", "95.000", "120.000"},
	}))
	return orders, prices
}

func TestService_Renew(t *testing.T) {
	ctx := context.Background()
	now := func() time.Time { return time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC) }

	newService := func() (*Service, *ledger.MemoryTable, *recordingNotifier) {
		table, prices := fixture()
		n := &recordingNotifier{}
		svc := NewService(ledger.NewOrders(table, time.UTC), prices, n, Config{Now: now})
		return svc, table, n
	}

	t.Run("RenewsWithFreshPrices", func(t *testing.T) {
		svc, table, n := newService()

		res, err := svc.Renew(ctx, "mavc1")
		require.NoError(t, err)
		assert.Equal(t, OutcomeRenewal, res.Outcome)
		assert.Equal(t, 4, res.Details.DaysRemaining)
		assert.True(t, res.Details.PriceRefreshed)

		assert.Equal(t, "24/10/2026", table.Cell(1, ledger.ColRegistration))
		assert.Equal(t, "23/11/2026", table.Cell(1, ledger.ColExpiry))
		assert.Equal(t, "75000", table.Cell(1, ledger.ColCost))
		assert.Equal(t, "95000", table.Cell(1, ledger.ColSale))
		assert.Equal(t, "", table.Cell(1, ledger.ColPaid))

		require.Len(t, n.results, 1)
		assert.Equal(t, "MAVC1", n.results[0].OrderID)
	})

	t.Run("SkipsWhenNotDue", func(t *testing.T) {
		svc, table, n := newService()

		res, err := svc.Renew(ctx, "MAVL2")
		require.NoError(t, err)
		assert.Equal(t, OutcomeSkipped, res.Outcome)
		assert.Equal(t, 5, res.Details.DaysRemaining)
		assert.Equal(t, "24/10/2026", table.Cell(2, ledger.ColExpiry))
		assert.Len(t, n.results, 1)
	})

	t.Run("NoDurationMarker", func(t *testing.T) {
		svc, table, _ := newService()

		res, err := svc.Renew(ctx, "MAVL3")
		assert.True(t, errors.Is(err, ErrNoDuration))
		assert.Equal(t, OutcomeError, res.Outcome)
		assert.Equal(t, "20/10/2026", table.Cell(3, ledger.ColExpiry))
	})

	t.Run("BadExpiry", func(t *testing.T) {
		svc, table, _ := newService()

		res, err := svc.Renew(ctx, "MAVL4")
		assert.True(t, errors.Is(err, ErrBadExpiry))
		assert.Equal(t, OutcomeError, res.Outcome)
		assert.Equal(t, "01/09/2026", table.Cell(4, ledger.ColRegistration))
	})

	t.Run("KeepsPricesOnMiss", func(t *testing.T) {
		svc, table, _ := newService()

		res, err := svc.Renew(ctx, "MAVL5")
		require.NoError(t, err)
		assert.Equal(t, OutcomeRenewal, res.Outcome)
		assert.False(t, res.Details.PriceRefreshed)
		assert.Equal(t, "20/10/2027", table.Cell(5, ledger.ColExpiry))
		assert.Equal(t, "300000", table.Cell(5, ledger.ColCost))
		assert.Equal(t, "400000", table.Cell(5, ledger.ColSale))
		assert.Equal(t, "", table.Cell(5, ledger.ColPaid))
		assert.Equal(t, "x", table.Cell(5, ledger.ColNote))
	})

	t.Run("UnknownOrder", func(t *testing.T) {
		svc, _, n := newService()

		res, err := svc.Renew(ctx, "MAVL404")
		assert.True(t, errors.Is(err, ledger.ErrOrderNotFound))
		assert.Equal(t, OutcomeError, res.Outcome)
		require.Len(t, n.results, 1)
		assert.Equal(t, OutcomeError, n.results[0].Outcome)
	})
}
