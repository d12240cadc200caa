package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"ordersbot/internal/logger"
	"ordersbot/internal/reconciliation"
	"ordersbot/internal/renewal"
)

// Sink receives operator notifications.
type Sink interface {
	Text(ctx context.Context, msg string) error
	RenewalResult(ctx context.Context, res renewal.Result) error
	Reconciliation(ctx context.Context, res *reconciliation.Result, err error) error
}

// Sender is the part of the Telegram client a sink needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts notifications to the operator chat.
type Telegram struct {
	sender Sender
	chatID int64
	log    zerolog.Logger
}

// NewTelegram creates a sink that writes to chatID.
func NewTelegram(sender Sender, chatID int64) *Telegram {
	return &Telegram{
		sender: sender,
		chatID: chatID,
		log:    logger.WithChatID("notify", chatID),
	}
}

// Text sends a plain message.
func (t *Telegram) Text(_ context.Context, msg string) error {
	if t.chatID == 0 {
		t.log.Warn().Msg("No operator chat configured, dropping notification")
		return nil
	}
	if _, err := t.sender.Send(tgbotapi.NewMessage(t.chatID, msg)); err != nil {
		return fmt.Errorf("Text: failed to send notification: %w", err)
	}
	return nil
}

// RenewalResult reports a renewal attempt.
func (t *Telegram) RenewalResult(ctx context.Context, res renewal.Result) error {
	return t.Text(ctx, FormatRenewal(res))
}

// Reconciliation reports a reconciliation attempt.
func (t *Telegram) Reconciliation(ctx context.Context, res *reconciliation.Result, err error) error {
	return t.Text(ctx, FormatReconciliation(res, err))
}

// Log writes notifications to the log. CLI commands use it when no chat is available.
type Log struct {
	log zerolog.Logger
}

// NewLog creates a logging sink.
func NewLog() *Log {
	return &Log{log: logger.WithComponent("notify")}
}

func (l *Log) Text(_ context.Context, msg string) error {
	l.log.Info().Msg(msg)
	return nil
}

func (l *Log) RenewalResult(_ context.Context, res renewal.Result) error {
	l.log.Info().
		Str("order_id", res.OrderID).
		Str("outcome", string(res.Outcome)).
		Msg(FormatRenewal(res))
	return nil
}

func (l *Log) Reconciliation(_ context.Context, res *reconciliation.Result, err error) error {
	l.log.Info().Err(err).Msg(FormatReconciliation(res, err))
	return nil
}
