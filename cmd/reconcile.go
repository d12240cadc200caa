package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"ordersbot/internal/ledger"
	"ordersbot/internal/logger"
	"ordersbot/internal/notify"
	"ordersbot/internal/reconciliation"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <source>",
	Short: "Mark a supplier's outstanding orders paid against a payment total",
	Long: `Select the outstanding orders of a supplier whose cost prices add up exactly to the
payment total, oldest registration first, then mark them paid and record the payment in the
supplier's billing-cycle status cell.

Without --amount the total still owed for the current billing cycle is used. When no exact
combination is found nothing is written and the closest total is reported.

Required environment variables:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string
  GOOGLE_SHEET_URL - Google Sheets URL holding the order, source and price sheets`,
	Example: `  # Settle what is owed for the current cycle
  ordersbot reconcile ShopA

  # Match a specific transfer amount
  ordersbot reconcile ShopA --amount 1.250.000

  # Show what would be marked without writing
  ordersbot reconcile ShopA --amount 1250000 --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().String("amount", "", "Payment total to match (default: remaining total of the current cycle)")
	reconcileCmd.Flags().Bool("dry-run", false, "Compute the match without writing to the sheets")
	reconcileCmd.Flags().Duration("timeout", 2*time.Minute, "Overall timeout")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("reconcile")

	amountStr, _ := cmd.Flags().GetString("amount")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	var amount int64
	if amountStr != "" {
		n, err := ledger.ParseAmount(amountStr)
		if err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}
		if n <= 0 {
			return fmt.Errorf("amount must be positive")
		}
		amount = n
	}

	ctx, cancel := signalContext(timeout, log)
	defer cancel()

	a, err := newApp(ctx, dryRun)
	if err != nil {
		return err
	}

	src, err := a.orderSvc.ResolveSource(ctx, args[0])
	if err != nil {
		return err
	}

	log.Info().
		Str("source", src.Name).
		Int64("amount", amount).
		Bool("dry_run", dryRun).
		Msg("Starting reconciliation")

	var res *reconciliation.Result
	if amount > 0 {
		res, err = a.engine.Reconcile(ctx, src.Name, amount)
	} else {
		res, err = a.engine.ReconcileCurrentCycle(ctx, src.Name)
	}

	fmt.Println(notify.FormatReconciliation(res, err))
	if dryRun && err == nil {
		fmt.Println("(dry run: nothing was written)")
	}

	if errors.Is(err, reconciliation.ErrAlreadySettled) {
		return nil
	}
	return err
}
