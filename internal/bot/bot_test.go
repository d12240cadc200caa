package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ordersbot/internal/ledger"
	"ordersbot/internal/ocr"
	"ordersbot/internal/orders"
	"ordersbot/internal/reconciliation"
	"ordersbot/internal/renewal"
	"ordersbot/pkg/models"
)

const operatorChat int64 = 42

type fakeAPI struct {
	mu      sync.Mutex
	sent    []tgbotapi.Chattable
	updates chan tgbotapi.Update
	stopped bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 4)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) GetFileDirectURL(fileID string) (string, error) {
	return "https://files.example/" + fileID, nil
}

func (f *fakeAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// lastText returns the text of the last plain message sent.
func (f *fakeAPI) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if m, ok := f.sent[i].(tgbotapi.MessageConfig); ok {
			return m.Text
		}
	}
	return ""
}

type fakeOrders struct {
	today   time.Time
	sources []models.Source
	created []orders.Draft
	unpaid  *orders.Unpaid
	paid    map[string]models.PaidFlag
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{
		today: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
		sources: []models.Source{
			{Name: "ShopA", BankAccount: "0123456789", BankCode: "VCB"},
			{Name: "ShopB"},
		},
		paid: make(map[string]models.PaidFlag),
	}
}

func (f *fakeOrders) Today() time.Time { return f.today }

func (f *fakeOrders) Create(_ context.Context, d orders.Draft) (models.Order, error) {
	f.created = append(f.created, d)
	return models.Order{ID: "MAVL1", ProductCode: d.ProductCode, SourceName: d.Source, RegistrationDate: d.Registered}, nil
}

func (f *fakeOrders) Delete(_ context.Context, id string) (models.Order, error) {
	if id != "MAVL1" {
		return models.Order{}, fmt.Errorf("%w: %s", ledger.ErrOrderNotFound, id)
	}
	return models.Order{ID: id}, nil
}

func (f *fakeOrders) Refund(_ context.Context, id string) (orders.Refund, error) {
	if id != "MAVL1" {
		return orders.Refund{}, fmt.Errorf("%w: %s", ledger.ErrOrderNotFound, id)
	}
	return orders.Refund{Order: models.Order{ID: id, Customer: "An"}, DaysRemaining: 11, Amount: 40333}, nil
}

func (f *fakeOrders) SetPaid(_ context.Context, id string, flag models.PaidFlag) (models.Order, error) {
	f.paid[id] = flag
	return models.Order{ID: id, Paid: flag}, nil
}

func (f *fakeOrders) Unpaid(_ context.Context, source string) (*orders.Unpaid, error) {
	if f.unpaid != nil {
		return f.unpaid, nil
	}
	return &orders.Unpaid{Source: source}, nil
}

func (f *fakeOrders) Expiring(context.Context) ([]models.Order, error) {
	return nil, nil
}

func (f *fakeOrders) Sources(context.Context) ([]models.Source, error) {
	return f.sources, nil
}

func (f *fakeOrders) ResolveSource(_ context.Context, key string) (models.Source, error) {
	for _, s := range f.sources {
		if ledger.SameName(s.Name, key) || s.BankAccount == key {
			return s, nil
		}
	}
	return models.Source{}, fmt.Errorf("%w: %s", ledger.ErrSourceNotFound, key)
}

type fakeReconciler struct {
	calls []string
}

func (f *fakeReconciler) Reconcile(_ context.Context, source string, expected int64) (*reconciliation.Result, error) {
	f.calls = append(f.calls, fmt.Sprintf("%s=%d", source, expected))
	return &reconciliation.Result{Source: source, Expected: expected, AchievedTotal: expected, Matched: true, OrderIDs: []string{"MAVL1"}}, nil
}

func (f *fakeReconciler) ReconcileCurrentCycle(_ context.Context, source string) (*reconciliation.Result, error) {
	f.calls = append(f.calls, source+"=cycle")
	return nil, reconciliation.ErrAlreadySettled
}

type fakeRenewer struct{}

func (fakeRenewer) Renew(_ context.Context, id string) (renewal.Result, error) {
	return renewal.Result{OrderID: id, Outcome: renewal.OutcomeSkipped, Details: renewal.Details{DaysRemaining: 9}}, nil
}

type fakeReceipts struct {
	amount int64
	err    error
	read   string
}

func (f *fakeReceipts) ReadReceipt(_ context.Context, r io.Reader) (*ocr.Receipt, error) {
	data, _ := io.ReadAll(r)
	f.read = string(data)
	if f.err != nil {
		return nil, f.err
	}
	return &ocr.Receipt{Amount: f.amount}, nil
}

type harness struct {
	bot  *Bot
	api  *fakeAPI
	ord  *fakeOrders
	rec  *fakeReconciler
	rcpt *fakeReceipts
}

func newHarness() *harness {
	h := &harness{api: newFakeAPI(), ord: newFakeOrders(), rec: &fakeReconciler{}, rcpt: &fakeReceipts{}}
	h.bot = New(h.api, Deps{Orders: h.ord, Renewer: fakeRenewer{}, Reconciler: h.rec, Receipts: h.rcpt},
		map[int64]bool{operatorChat: true})
	h.bot.fetch = func(_ context.Context, url string) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("bytes of " + url)), nil
	}
	return h
}

func (h *harness) say(chatID int64, text string) string {
	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chatID},
		Text: text,
	}})
	return h.api.lastText()
}

func TestParseCommand(t *testing.T) {
	name, args, ok := parseCommand("/Reconcile@orders_bot ShopA 250.000")
	require.True(t, ok)
	assert.Equal(t, "reconcile", name)
	assert.Equal(t, []string{"ShopA", "250.000"}, args)

	_, _, ok = parseCommand("hello /start")
	assert.False(t, ok)
	_, _, ok = parseCommand("/")
	assert.False(t, ok)
}

func TestSessionTransitions(t *testing.T) {
	t.Run("RejectsMissingFields", func(t *testing.T) {
		s := Session{Step: StepClass}
		assert.True(t, errors.Is(s.Advance(), ErrIncompleteDraft))
		assert.Equal(t, StepClass, s.Step)

		s = Session{Step: StepProduct, Draft: orders.Draft{ProductCode: "NETFLIX"}}
		assert.True(t, errors.Is(s.Advance(), ErrIncompleteDraft))

		s = Session{Step: StepSource}
		assert.True(t, errors.Is(s.Advance(), ErrIncompleteDraft))

		s = Session{Step: StepDate}
		assert.True(t, errors.Is(s.Advance(), ErrIncompleteDraft))
	})

	t.Run("RejectsOutOfOrderInput", func(t *testing.T) {
		s := Session{Step: StepClass}
		assert.Error(t, s.SetSource("ShopA"))
		assert.Error(t, s.SetDate(time.Now()))
		assert.Empty(t, s.Draft.Source)
	})

	t.Run("ConfirmIsLast", func(t *testing.T) {
		s := Session{Step: StepConfirm}
		assert.Error(t, s.Advance())
	})

	t.Run("WalksForward", func(t *testing.T) {
		s := Session{}
		require.NoError(t, s.Advance())
		require.NoError(t, s.SetClass(models.ClassPartner))
		require.NoError(t, s.SetProduct("SPOTIFY--12m", ""))
		require.NoError(t, s.SetSource("ShopB"))
		require.NoError(t, s.SetDate(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)))
		assert.Equal(t, StepConfirm, s.Step)
		assert.Equal(t, "confirm", s.Step.String())
	})
}

func TestOrderEntryFlow(t *testing.T) {
	h := newHarness()

	assert.Equal(t, "Loại khách?", h.say(operatorChat, "/new"))
	h.say(operatorChat, labelRetail)

	assert.Contains(t, h.say(operatorChat, "NETFLIX"), "thời hạn")
	sess, _ := h.bot.sessions.get(operatorChat)
	assert.Equal(t, StepProduct, sess.Step)

	h.say(operatorChat, "NETFLIX--3m Anh Ba")
	assert.Contains(t, h.say(operatorChat, "ShopZ"), "Không tìm thấy nguồn")
	h.say(operatorChat, "0123456789")
	assert.Contains(t, h.say(operatorChat, "32/13/2026"), "Ngày không hợp lệ")

	out := h.say(operatorChat, "15/10/2026")
	assert.Contains(t, out, "NETFLIX--3m")
	assert.Contains(t, out, "ShopA")
	assert.Contains(t, out, "15/10/2026")

	out = h.say(operatorChat, labelConfirm)
	assert.Contains(t, out, "Đã tạo đơn")

	require.Len(t, h.ord.created, 1)
	d := h.ord.created[0]
	assert.Equal(t, models.ClassRetail, d.Class)
	assert.Equal(t, "NETFLIX--3m", d.ProductCode)
	assert.Equal(t, "Anh Ba", d.Customer)
	assert.Equal(t, "ShopA", d.Source)
	assert.Equal(t, time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), d.Registered)

	_, ok := h.bot.sessions.get(operatorChat)
	assert.False(t, ok)
}

func TestOrderEntryToday(t *testing.T) {
	h := newHarness()
	h.say(operatorChat, "/new")
	h.say(operatorChat, labelPartner)
	h.say(operatorChat, "SPOTIFY--12m")
	h.say(operatorChat, "shopb")
	h.say(operatorChat, labelToday)
	h.say(operatorChat, labelConfirm)

	require.Len(t, h.ord.created, 1)
	assert.Equal(t, models.ClassPartner, h.ord.created[0].Class)
	assert.Equal(t, h.ord.today, h.ord.created[0].Registered)
}

func TestCancel(t *testing.T) {
	h := newHarness()
	h.say(operatorChat, "/new")
	assert.Equal(t, "Đã huỷ.", h.say(operatorChat, "/cancel"))
	assert.Equal(t, "Không có thao tác nào đang chạy.", h.say(operatorChat, "/cancel"))

	h.say(operatorChat, "/new")
	assert.Equal(t, "Đã huỷ.", h.say(operatorChat, labelCancel))
	assert.Empty(t, h.ord.created)
}

func TestIgnoresOtherChats(t *testing.T) {
	h := newHarness()
	h.say(7, "/start")
	assert.Zero(t, h.api.count())
}

func TestCommands(t *testing.T) {
	t.Run("ReconcileWithAmount", func(t *testing.T) {
		h := newHarness()
		out := h.say(operatorChat, "/reconcile shopa 250.000")
		assert.Equal(t, []string{"ShopA=250000"}, h.rec.calls)
		assert.Contains(t, out, "MAVL1")
	})

	t.Run("ReconcileCurrentCycle", func(t *testing.T) {
		h := newHarness()
		out := h.say(operatorChat, "/reconcile Shop A")
		assert.Equal(t, []string{"ShopA=cycle"}, h.rec.calls)
		assert.Contains(t, out, "đã được thanh toán đủ")
	})

	t.Run("ReconcileUnknownSource", func(t *testing.T) {
		h := newHarness()
		out := h.say(operatorChat, "/reconcile nobody")
		assert.Empty(t, h.rec.calls)
		assert.Contains(t, out, "Không tìm thấy nguồn")
	})

	t.Run("Renew", func(t *testing.T) {
		h := newHarness()
		assert.Contains(t, h.say(operatorChat, "/renew mavl1"), "MAVL1 chưa đến hạn")
	})

	t.Run("Paid", func(t *testing.T) {
		h := newHarness()
		h.say(operatorChat, "/paid mavl1")
		h.say(operatorChat, "/paid MAVC2 false")
		assert.Equal(t, models.PaidDone, h.ord.paid["MAVL1"])
		assert.Equal(t, models.PaidOpen, h.ord.paid["MAVC2"])
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		h := newHarness()
		assert.Contains(t, h.say(operatorChat, "/delete MAVL9"), "Không tìm thấy đơn")
	})

	t.Run("Refund", func(t *testing.T) {
		h := newHarness()
		out := h.say(operatorChat, "/refund mavl1")
		assert.Contains(t, out, "Hoàn tiền MAVL1")
		assert.Contains(t, out, "hoàn 40.333")
		assert.Contains(t, h.say(operatorChat, "/refund MAVL9"), "Không tìm thấy đơn")
		assert.Contains(t, h.say(operatorChat, "/refund"), "Cú pháp")
	})

	t.Run("Sources", func(t *testing.T) {
		h := newHarness()
		assert.Contains(t, h.say(operatorChat, "/sources"), "0123456789 VCB")
	})

	t.Run("ExportSendsDocument", func(t *testing.T) {
		h := newHarness()
		h.ord.unpaid = &orders.Unpaid{
			Source: "ShopA",
			Orders: []models.Order{{ID: "MAVL1", ProductCode: "NETFLIX--1m", CostPrice: 70000}},
			Total:  70000,
		}
		h.say(operatorChat, "/export ShopA")

		require.Equal(t, 1, h.api.count())
		doc, ok := h.api.sent[0].(tgbotapi.DocumentConfig)
		require.True(t, ok)
		file, ok := doc.File.(tgbotapi.FileBytes)
		require.True(t, ok)
		assert.Equal(t, "chua-thanh-toan-shopa.xlsx", file.Name)
		assert.NotEmpty(t, file.Bytes)
		assert.Contains(t, doc.Caption, "70.000")
	})

	t.Run("Unknown", func(t *testing.T) {
		h := newHarness()
		assert.Contains(t, h.say(operatorChat, "/frobnicate"), "Lệnh không hợp lệ")
	})
}

func TestReceiptPhoto(t *testing.T) {
	photo := func(h *harness, caption string) string {
		h.bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
			Chat:    &tgbotapi.Chat{ID: operatorChat},
			Caption: caption,
			Photo:   []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}},
		}})
		return h.api.lastText()
	}

	t.Run("ReconcilesReadAmount", func(t *testing.T) {
		h := newHarness()
		h.rcpt.amount = 300000
		out := photo(h, "/paid ShopA")
		assert.Equal(t, "bytes of https://files.example/large", h.rcpt.read)
		assert.Equal(t, []string{"ShopA=300000"}, h.rec.calls)
		assert.Contains(t, out, "300.000")
	})

	t.Run("NoAmount", func(t *testing.T) {
		h := newHarness()
		h.rcpt.err = ocr.ErrNoAmount
		out := photo(h, "/paid ShopA")
		assert.Empty(t, h.rec.calls)
		assert.Contains(t, out, "Không đọc được số tiền")
	})

	t.Run("MissingCaption", func(t *testing.T) {
		h := newHarness()
		out := photo(h, "")
		assert.Empty(t, h.rcpt.read)
		assert.Contains(t, out, "/paid <nguồn>")
	})
}

func TestRun(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.bot.Run(ctx) }()

	h.api.updates <- tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: operatorChat}, Text: "/start"}}
	require.Eventually(t, func() bool { return h.api.count() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	h.api.mu.Lock()
	defer h.api.mu.Unlock()
	assert.True(t, h.api.stopped)
}
