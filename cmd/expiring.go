package cmd

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"ordersbot/internal/logger"
	"ordersbot/internal/notify"
	"ordersbot/internal/worker"
)

var expiringCmd = &cobra.Command{
	Use:   "expiring",
	Short: "List orders that expire within the renewal threshold",
	Long: `List orders whose expiry is at most RENEWAL_THRESHOLD_DAYS away, soonest first.

With --notify the list is posted to the Telegram operator chat instead, the same message the
serve command sends on every EXPIRY_CHECK_INTERVAL.`,
	Example: `  ordersbot expiring
  ordersbot expiring --notify`,
	RunE: runExpiring,
}

func init() {
	rootCmd.AddCommand(expiringCmd)

	expiringCmd.Flags().Bool("notify", false, "Post the list to the operator chat")
}

func runExpiring(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("expiring")

	post, _ := cmd.Flags().GetBool("notify")

	ctx, cancel := signalContext(time.Minute, log)
	defer cancel()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}

	if !post {
		list, err := a.orderSvc.Expiring(ctx)
		if err != nil {
			return err
		}
		fmt.Println(notify.FormatExpiring(list))
		return nil
	}

	if err := a.cfg.ValidateBot(); err != nil {
		return err
	}
	api, err := tgbotapi.NewBotAPI(a.cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("failed to connect to Telegram: %w", err)
	}

	w := worker.NewExpiryNotifier(a.cfg.ExpiryCheckInterval, a.orderSvc, notify.NewTelegram(api, a.cfg.TelegramOperatorChatID))
	w.RunOnce(ctx)
	return nil
}
