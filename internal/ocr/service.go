// Package ocr reads bank transfer receipts (screenshots) using Google Cloud Vision API.
//
// Required Environment Variables:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//
// Cloud Vision API Limitations:
//   - Maximum image size: 10MB for inline content
//   - Supported formats: JPEG, PNG, GIF, WEBP, BMP
//
// The transferred amount is taken to be the largest money amount printed on the receipt;
// account numbers and references carry no thousands separators or currency and are ignored.
package ocr

import (
	"context"
	"io"
	"time"
)

// ReceiptReader extracts text and the transferred amount from a receipt image.
type ReceiptReader interface {
	ReadReceipt(ctx context.Context, image io.Reader) (*Receipt, error)
}

// Receipt is the OCR result for one receipt image.
type Receipt struct {
	// Text is the full detected text in reading order.
	Text string `json:"text"`

	// Amount is the largest money amount found in Text.
	Amount int64 `json:"amount"`

	// Amounts lists every money amount found, in text order.
	Amounts []int64 `json:"amounts"`

	// Confidence is the average page confidence (0.0 to 1.0).
	Confidence float32 `json:"confidence"`

	ProcessedAt        time.Time     `json:"processed_at"`
	ProcessingDuration time.Duration `json:"processing_duration"`
}
