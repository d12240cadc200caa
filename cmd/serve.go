package cmd

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"ordersbot/internal/bot"
	"ordersbot/internal/logger"
	"ordersbot/internal/notify"
	"ordersbot/internal/ocr"
	"ordersbot/internal/webhook"
	"ordersbot/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot, the bank webhook and the expiry notifier",
	Long: `Run the operator bot (long polling), the bank transfer webhook and the periodic
expiry notifier until interrupted.

Outgoing transfers reported by the bank settle the current billing cycle of the supplier
named in the transfer content. Incoming transfers renew every order id found in the content.

Required environment variables:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string
  GOOGLE_SHEET_URL - Google Sheets URL holding the order, source and price sheets
  TELEGRAM_BOT_TOKEN - Bot token from BotFather
  TELEGRAM_OPERATOR_CHAT_ID - Chat that receives notifications
  WEBHOOK_API_KEY - Key the bank sends as "Authorization: Apikey <key>"`,
	Example: `  # Run everything with settings from .env
  ordersbot serve

  # Serve the webhook on another port
  WEBHOOK_ADDR=:9090 ordersbot serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Bool("no-ocr", false, "Do not read receipt photos")
}

func runServe(cmd *cobra.Command, args []string) error {
	const op = "runServe"
	log := logger.WithComponent("serve")

	noOCR, _ := cmd.Flags().GetBool("no-ocr")

	ctx, cancel := signalContext(0, log)
	defer cancel()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	if err := a.cfg.ValidateBot(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if a.cfg.WebhookAPIKey == "" {
		log.Warn().Msg("WEBHOOK_API_KEY is empty, every webhook call will be rejected")
	}

	api, err := tgbotapi.NewBotAPI(a.cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("%s: failed to connect to Telegram: %w", op, err)
	}
	log.Info().Str("bot", api.Self.UserName).Msg("Authorized on Telegram")

	sink := notify.NewTelegram(api, a.cfg.TelegramOperatorChatID)

	var receipts ocr.ReceiptReader
	if !noOCR {
		vision, err := ocr.NewGoogleVision(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Receipt OCR unavailable, photos will be refused")
		} else {
			defer func() {
				if closeErr := vision.Close(); closeErr != nil {
					log.Warn().Err(closeErr).Msg("Failed to close Vision client")
				}
			}()
			receipts = vision
		}
	}

	// Chat commands answer in the chat; webhook renewals report to the operator channel.
	b := bot.New(api, bot.Deps{
		Orders:     a.orderSvc,
		Renewer:    a.renewer(nil),
		Reconciler: a.engine,
		Receipts:   receipts,
	}, a.cfg.AllowedChats())

	processor := webhook.NewTransferProcessor(a.engine, a.renewer(sink), a.orderSvc, sink)
	handler := webhook.NewHandler(context.WithoutCancel(ctx), processor)
	server := webhook.NewServer(a.cfg.WebhookAddr, handler, a.cfg.WebhookAPIKey)

	notifier := worker.NewExpiryNotifier(a.cfg.ExpiryCheckInterval, a.orderSvc, sink)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Run(gctx)
	})
	g.Go(func() error {
		return server.Run(gctx)
	})
	g.Go(func() error {
		notifier.Start(gctx)
		<-gctx.Done()
		notifier.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info().Msg("Serve stopped")
	return nil
}
