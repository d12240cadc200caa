package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"ordersbot/internal/export"
	"ordersbot/internal/ledger"
	"ordersbot/internal/logger"
)

var exportCmd = &cobra.Command{
	Use:   "export <source>",
	Short: "Write a supplier's unpaid orders to an XLSX file",
	Example: `  ordersbot export ShopA
  ordersbot export ShopA -o shopa-10.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("output", "o", "", "Output file path (default: derived from the source name)")
}

func runExport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("export")

	outputPath, _ := cmd.Flags().GetString("output")

	ctx, cancel := signalContext(time.Minute, log)
	defer cancel()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}

	src, err := a.orderSvc.ResolveSource(ctx, args[0])
	if err != nil {
		return err
	}
	u, err := a.orderSvc.Unpaid(ctx, src.Name)
	if err != nil {
		return err
	}

	if outputPath == "" {
		outputPath = export.FileName(src.Name)
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := export.UnpaidXLSX(f, u); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	log.Info().
		Str("source", src.Name).
		Int("orders", len(u.Orders)).
		Int64("total", u.Total).
		Str("output_file", outputPath).
		Msg("Unpaid orders exported")
	fmt.Printf("%d đơn, tổng %s -> %s\n", len(u.Orders), ledger.FormatAmount(u.Total), outputPath)
	return nil
}
