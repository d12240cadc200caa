// Package bot is the operator's Telegram front end: commands for the order ledger and the
// step-by-step order entry flow.
package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"ordersbot/internal/logger"
	"ordersbot/internal/ocr"
	"ordersbot/internal/orders"
	"ordersbot/internal/reconciliation"
	"ordersbot/internal/renewal"
	"ordersbot/pkg/models"
)

// API is the part of the Telegram client the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetFileDirectURL(fileID string) (string, error)
}

// OrderService manages ledger rows.
type OrderService interface {
	Today() time.Time
	Create(ctx context.Context, d orders.Draft) (models.Order, error)
	Delete(ctx context.Context, id string) (models.Order, error)
	Refund(ctx context.Context, id string) (orders.Refund, error)
	SetPaid(ctx context.Context, id string, flag models.PaidFlag) (models.Order, error)
	Unpaid(ctx context.Context, source string) (*orders.Unpaid, error)
	Expiring(ctx context.Context) ([]models.Order, error)
	Sources(ctx context.Context) ([]models.Source, error)
	ResolveSource(ctx context.Context, nameOrAccount string) (models.Source, error)
}

// Renewer renews one order.
type Renewer interface {
	Renew(ctx context.Context, orderID string) (renewal.Result, error)
}

// Reconciler settles supplier payments.
type Reconciler interface {
	Reconcile(ctx context.Context, source string, expected int64) (*reconciliation.Result, error)
	ReconcileCurrentCycle(ctx context.Context, source string) (*reconciliation.Result, error)
}

// Deps are the services behind the commands.
type Deps struct {
	Orders     OrderService
	Renewer    Renewer
	Reconciler Reconciler
	// Receipts may be nil; receipt photos are then refused.
	Receipts ocr.ReceiptReader
}

// Bot answers operator chats.
type Bot struct {
	api      API
	deps     Deps
	allowed  map[int64]bool
	sessions *sessions
	fetch    func(ctx context.Context, url string) (io.ReadCloser, error)
	log      zerolog.Logger
}

// New creates a bot that serves only the allowed chats.
func New(api API, deps Deps, allowed map[int64]bool) *Bot {
	return &Bot{
		api:      api,
		deps:     deps,
		allowed:  allowed,
		sessions: newSessions(),
		fetch:    httpFetch,
		log:      logger.WithComponent("bot"),
	}
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	b.log.Info().Int("allowed_chats", len(b.allowed)).Msg("Bot polling for updates")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.log.Info().Msg("Bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return fmt.Errorf("Run: update channel closed")
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate processes one update. Messages from chats that are not allowed are ignored.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	log := logger.WithChatID("bot", chatID)

	if !b.allowed[chatID] {
		log.Warn().Msg("Ignoring message from chat that is not allowed")
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Bytes("stack", debug.Stack()).Msg("Update handler panicked")
			b.reply(chatID, "❌ Lỗi nội bộ, vui lòng thử lại.")
		}
	}()

	ctx = log.WithContext(ctx)

	if len(msg.Photo) > 0 {
		b.handlePhoto(ctx, msg)
		return
	}

	if name, args, ok := parseCommand(msg.Text); ok {
		log.Info().Str("command", name).Strs("args", args).Msg("Command received")
		b.handleCommand(ctx, chatID, name, args)
		return
	}

	if sess, ok := b.sessions.get(chatID); ok {
		b.handleStep(ctx, chatID, sess, strings.TrimSpace(msg.Text))
		return
	}

	b.reply(chatID, "Gõ /start để xem các lệnh.")
}

// parseCommand splits "/cmd@bot a b" into "cmd" and its arguments.
func parseCommand(text string) (string, []string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	name := strings.TrimPrefix(fields[0], "/")
	name, _, _ = strings.Cut(name, "@")
	if name == "" {
		return "", nil, false
	}
	return strings.ToLower(name), fields[1:], true
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) replyWithMarkup(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	b.send(msg)
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.log.Error().Err(err).Msg("Failed to send message")
	}
}

func httpFetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download failed: %s", resp.Status)
	}
	return resp.Body, nil
}
