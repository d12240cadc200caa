package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ordersbot/internal/orders"
	"ordersbot/internal/reconciliation"
	"ordersbot/internal/renewal"
	"ordersbot/pkg/models"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func TestTelegram(t *testing.T) {
	ctx := context.Background()

	t.Run("SendsToOperator", func(t *testing.T) {
		sender := &fakeSender{}
		sink := NewTelegram(sender, 42)

		require.NoError(t, sink.Reconciliation(ctx, &reconciliation.Result{
			Source:        "ShopA",
			Expected:      250000,
			Matched:       true,
			AchievedTotal: 250000,
			OrderIDs:      []string{"MAVL1", "MAVL2"},
			Cycle:         "01/10/2026-31/10/2026",
			Status:        "đã thanh toán 250.000",
		}, nil))

		require.Len(t, sender.sent, 1)
		assert.Equal(t, int64(42), sender.sent[0].ChatID)
		assert.Contains(t, sender.sent[0].Text, "250.000")
		assert.Contains(t, sender.sent[0].Text, "MAVL1, MAVL2")
	})

	t.Run("NoChat", func(t *testing.T) {
		sender := &fakeSender{}
		require.NoError(t, NewTelegram(sender, 0).Text(ctx, "hello"))
		assert.Empty(t, sender.sent)
	})

	t.Run("SendError", func(t *testing.T) {
		sender := &fakeSender{err: errors.New("blocked")}
		err := NewTelegram(sender, 42).Text(ctx, "hello")
		assert.Error(t, err)
	})
}

func TestFormatReconciliation(t *testing.T) {
	res := &reconciliation.Result{Source: "ShopA", Expected: 350, AchievedTotal: 250, OrderIDs: []string{"A", "B"}}
	err := fmt.Errorf("%w: reached 250 of 350", reconciliation.ErrNoExactMatch)

	msg := FormatReconciliation(res, err)
	assert.Contains(t, msg, "cần 350")
	assert.Contains(t, msg, "chỉ ghép được 250")

	assert.Contains(t, FormatReconciliation(nil, reconciliation.ErrAlreadySettled), "đã được thanh toán đủ")
	assert.Contains(t, FormatReconciliation(nil, errors.New("boom")), "boom")
}

func TestFormatRenewal(t *testing.T) {
	prev := models.Order{ID: "MAVL1", CostPrice: 70000, SalePrice: 110000}
	next := prev
	next.RegistrationDate = time.Date(2026, 10, 24, 0, 0, 0, 0, time.UTC)
	next.ExpiryDate = time.Date(2026, 11, 23, 0, 0, 0, 0, time.UTC)
	next.CostPrice = 75000

	msg := FormatRenewal(renewal.Result{
		OrderID: "MAVL1",
		Outcome: renewal.OutcomeRenewal,
		Details: renewal.Details{Previous: prev, Order: next, PriceRefreshed: true},
	})
	assert.Contains(t, msg, "24/10/2026 → 23/11/2026")
	assert.Contains(t, msg, "75.000")
	assert.Contains(t, msg, "giá cũ 70.000")

	msg = FormatRenewal(renewal.Result{OrderID: "MAVL1", Outcome: renewal.OutcomeSkipped, Details: renewal.Details{DaysRemaining: 9}})
	assert.Contains(t, msg, "còn 9 ngày")

	msg = FormatRenewal(renewal.Result{OrderID: "MAVL1", Outcome: renewal.OutcomeError, Message: "no duration"})
	assert.Contains(t, msg, "no duration")
}

func TestFormatRefund(t *testing.T) {
	msg := FormatRefund(orders.Refund{
		Order:         models.Order{ID: "MAVL1", Customer: "An", ProductCode: "NETFLIX--1m", TermDays: 30},
		DaysRemaining: 11,
		Amount:        40333,
	})
	assert.Contains(t, msg, "Hoàn tiền MAVL1 · An")
	assert.Contains(t, msg, "Còn 11 ngày · hoàn 40.333")
	assert.Contains(t, msg, "NETFLIX--1m (30 ngày)")
}

func TestFormatLists(t *testing.T) {
	unpaid := &orders.Unpaid{
		Source: "ShopA",
		Orders: []models.Order{{ID: "MAVL1", ProductCode: "NETFLIX--1m", CostPrice: 70000}},
		Total:  70000,
	}
	assert.Contains(t, FormatUnpaid(unpaid), "Tổng: 70.000")
	assert.Contains(t, FormatUnpaid(&orders.Unpaid{Source: "ShopB"}), "không có đơn")

	assert.Equal(t, "Không có đơn sắp hết hạn.", FormatExpiring(nil))
	assert.Equal(t, "• ShopA · 0123 VCB\n• ShopB", FormatSources([]models.Source{
		{Name: "ShopA", BankAccount: "0123", BankCode: "VCB"},
		{Name: "ShopB"},
	}))
}
