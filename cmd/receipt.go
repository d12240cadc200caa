package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"ordersbot/internal/ledger"
	"ordersbot/internal/logger"
	"ordersbot/internal/notify"
	"ordersbot/internal/ocr"
)

var receiptCmd = &cobra.Command{
	Use:   "receipt [image-file]",
	Short: "Read the amount from a transfer receipt using Google Cloud Vision OCR",
	Long: `Run document text detection on a bank transfer screenshot and print the detected text
and the transferred amount (the largest money amount on the receipt).

With --source the amount is then reconciled against that supplier's outstanding orders, the
same as sending the photo to the bot with the caption "/paid <source>".

Required environment variables:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string
  GOOGLE_SHEET_URL - Only with --source`,
	Example: `  # Print the amount and text
  ordersbot receipt transfer.png

  # JSON output
  ordersbot receipt transfer.jpg --json

  # Reconcile ShopA against the amount on the receipt
  ordersbot receipt transfer.png --source ShopA --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runReceipt,
}

// ReceiptOutput represents the JSON output structure when --json flag is used
type ReceiptOutput struct {
	Amount             int64     `json:"amount"`
	Amounts            []int64   `json:"amounts"`
	Text               string    `json:"text"`
	Confidence         float32   `json:"confidence,omitempty"`
	ProcessedAt        time.Time `json:"processed_at"`
	ProcessingDuration string    `json:"processing_duration"`
	FileName           string    `json:"file_name"`
	FileSize           int64     `json:"file_size"`
}

func init() {
	rootCmd.AddCommand(receiptCmd)

	receiptCmd.Flags().Bool("json", false, "Output as JSON")
	receiptCmd.Flags().String("source", "", "Reconcile this supplier against the receipt amount")
	receiptCmd.Flags().Bool("dry-run", false, "With --source, compute the match without writing")
	receiptCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
}

func runReceipt(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("receipt")

	jsonOutput, _ := cmd.Flags().GetBool("json")
	source, _ := cmd.Flags().GetString("source")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	imagePath := args[0]

	fileInfo, err := validateImageFile(imagePath, log)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	reader, err := createReceiptReader(ctx, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := reader.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close Vision client")
		}
	}()

	f, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("failed to open image file: %w", err)
	}
	defer f.Close()

	receipt, err := reader.ReadReceipt(ctx, f)
	if err != nil {
		return handleOCRError(err, log)
	}

	log.Info().
		Int64("amount", receipt.Amount).
		Int("amounts", len(receipt.Amounts)).
		Float32("confidence", receipt.Confidence).
		Dur("duration", receipt.ProcessingDuration).
		Msg("Receipt read")

	if err := printReceipt(receipt, fileInfo, jsonOutput); err != nil {
		return err
	}

	if source == "" {
		return nil
	}

	a, err := newApp(ctx, dryRun)
	if err != nil {
		return err
	}
	src, err := a.orderSvc.ResolveSource(ctx, source)
	if err != nil {
		return err
	}
	res, err := a.engine.Reconcile(ctx, src.Name, receipt.Amount)
	fmt.Fprintln(os.Stderr, notify.FormatReconciliation(res, err))
	return err
}

// validateImageFile checks that the file exists, is a regular file and fits the OCR size limit
func validateImageFile(path string, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("image file not found: %s", path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied accessing image file: %s", path)
		}
		return nil, fmt.Errorf("error accessing image file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("path is not a regular file: %s", path)
	}
	if fileInfo.Size() == 0 {
		return nil, fmt.Errorf("image file is empty: %s", path)
	}
	if fileInfo.Size() > ocr.MaxImageBytes {
		log.Error().
			Str("file", path).
			Int64("size", fileInfo.Size()).
			Msg("Image exceeds maximum size limit")
		return nil, fmt.Errorf("image too large (%d bytes). Maximum size is %d bytes (10MB)",
			fileInfo.Size(), ocr.MaxImageBytes)
	}

	return fileInfo, nil
}

// createReceiptReader creates the Vision-backed receipt reader
func createReceiptReader(ctx context.Context, log zerolog.Logger) (*ocr.GoogleVision, error) {
	hasCredentials := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" || os.Getenv("GOOGLE_CREDENTIALS") != ""
	if !hasCredentials {
		log.Warn().Msg("No explicit Google Cloud credentials, falling back to Application Default Credentials")
	}

	reader, err := ocr.NewGoogleVision(ctx)
	if err != nil {
		if errors.Is(err, ocr.ErrMissingCredentials) {
			return nil, fmt.Errorf("Google Cloud credentials not configured. Set GOOGLE_APPLICATION_CREDENTIALS " +
				"to a service account JSON file or GOOGLE_CREDENTIALS to the inline JSON")
		}
		return nil, fmt.Errorf("failed to create OCR client: %w", err)
	}
	return reader, nil
}

// handleOCRError provides user-friendly error messages for OCR failures
func handleOCRError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Receipt OCR failed")

	errStr := err.Error()
	switch {
	case errors.Is(err, ocr.ErrContextCanceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("OCR processing timed out or was canceled. Try increasing --timeout")
	case errors.Is(err, ocr.ErrImageTooLarge):
		return fmt.Errorf("image is too large (maximum 10MB)")
	case errors.Is(err, ocr.ErrInvalidImage):
		return fmt.Errorf("file is not a supported image (JPEG, PNG, GIF, WEBP, BMP)")
	case errors.Is(err, ocr.ErrEmptyDocument):
		return fmt.Errorf("no readable text found on the receipt")
	case errors.Is(err, ocr.ErrNoAmount):
		return fmt.Errorf("no money amount found on the receipt")
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Check that the service account has "+
			"the 'Cloud Vision API User' role. Original error: %v", err)
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return fmt.Errorf("permission denied. Please ensure your Google Cloud service account has the 'Cloud Vision API User' role")
	case strings.Contains(errStr, "QUOTA_EXCEEDED") || strings.Contains(errStr, "quota"):
		return fmt.Errorf("Google Cloud Vision API quota exceeded. Check your project quotas in the Google Cloud Console")
	default:
		return fmt.Errorf("OCR processing failed: %w", err)
	}
}

func printReceipt(r *ocr.Receipt, fileInfo os.FileInfo, jsonOutput bool) error {
	if jsonOutput {
		data, err := json.MarshalIndent(ReceiptOutput{
			Amount:             r.Amount,
			Amounts:            r.Amounts,
			Text:               r.Text,
			Confidence:         r.Confidence,
			ProcessedAt:        r.ProcessedAt,
			ProcessingDuration: r.ProcessingDuration.String(),
			FileName:           filepath.Base(fileInfo.Name()),
			FileSize:           fileInfo.Size(),
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Số tiền: %s\n", ledger.FormatAmount(r.Amount))
	if r.Confidence > 0 {
		fmt.Printf("Confidence: %.1f%%\n", r.Confidence*100)
	}
	fmt.Printf("\n%s\n", r.Text)
	return nil
}
