package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"ordersbot/internal/logger"
	"ordersbot/internal/notify"
)

var renewCmd = &cobra.Command{
	Use:   "renew <order-id>...",
	Short: "Renew orders that are within the renewal threshold",
	Long: `Extend each order by its product term when it expires within RENEWAL_THRESHOLD_DAYS
(default 4). The new period starts the day after the old expiry, prices are refreshed from the
price sheet when possible and the paid flag is reset.

Orders further from expiry are skipped; that is not an error.`,
	Example: `  ordersbot renew MAVL1A2B3C
  ordersbot renew MAVL1A2B3C MAVC9Z8Y7X --dry-run`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRenew,
}

func init() {
	rootCmd.AddCommand(renewCmd)

	renewCmd.Flags().Bool("dry-run", false, "Compute renewals without writing to the sheets")
	renewCmd.Flags().Duration("timeout", 2*time.Minute, "Overall timeout")
}

func runRenew(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("renew")

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, cancel := signalContext(timeout, log)
	defer cancel()

	a, err := newApp(ctx, dryRun)
	if err != nil {
		return err
	}
	svc := a.renewer(nil)

	var errs []error
	for _, id := range args {
		res, err := svc.Renew(ctx, strings.ToUpper(id))
		fmt.Println(notify.FormatRenewal(res))
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
