package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"ordersbot/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "ordersbot",
	Short: "Ordersbot - subscription orders on Google Sheets, run from Telegram",
	Long: `Ordersbot keeps a subscription reselling business on a Google spreadsheet: the order
sheet, the supplier sheet with its billing cycles and the price list.

Run "ordersbot serve" for the Telegram bot and the bank webhook. The other commands run the
same operations once from the shell.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("Ordersbot executed")

		fmt.Println("Welcome to Ordersbot!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
