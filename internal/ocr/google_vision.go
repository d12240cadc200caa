package ocr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"ordersbot/internal/logger"
)

// MaxImageBytes is the largest image sent inline to the Vision API (10MB).
const MaxImageBytes = 10 * 1024 * 1024

// Annotator is the Vision client call the reader depends on.
type Annotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
}

// GoogleVision implements ReceiptReader using Google Cloud Vision document text detection.
type GoogleVision struct {
	client Annotator
	closer io.Closer
	log    zerolog.Logger
}

// NewGoogleVision creates a receipt reader with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env.
func NewGoogleVision(ctx context.Context) (*GoogleVision, error) {
	const op = "NewGoogleVision"

	var client *vision.ImageAnnotatorClient
	var err error

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	r := NewGoogleVisionWithClient(client)
	r.closer = client
	return r, nil
}

// NewGoogleVisionWithClient creates a reader over an explicit client (for testing).
func NewGoogleVisionWithClient(client Annotator) *GoogleVision {
	return &GoogleVision{
		client: client,
		log:    logger.WithComponent("ocr"),
	}
}

// ReadReceipt detects the text of a receipt image and picks the transferred amount.
func (g *GoogleVision) ReadReceipt(ctx context.Context, image io.Reader) (*Receipt, error) {
	const op = "ReadReceipt"
	startTime := time.Now()

	data, err := io.ReadAll(io.LimitReader(image, MaxImageBytes+1))
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to read image data")
	}
	if len(data) > MaxImageBytes {
		return nil, WrapOCRError(op, ErrImageTooLarge, fmt.Sprintf("more than %d bytes", MaxImageBytes))
	}
	if ct := http.DetectContentType(data); !strings.HasPrefix(ct, "image/") {
		return nil, WrapOCRError(op, ErrInvalidImage, "content type "+ct)
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: data},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := g.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, WrapOCRError(op, ErrContextCanceled, ctx.Err().Error())
		}
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, WrapOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	imgResp := resp.Responses[0]
	if imgResp.Error != nil {
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", imgResp.Error.Message))
	}

	receipt, err := receiptFromResponse(imgResp)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to process Vision API response")
	}

	receipt.ProcessedAt = time.Now()
	receipt.ProcessingDuration = receipt.ProcessedAt.Sub(startTime)

	g.log.Debug().
		Int("chars", len(receipt.Text)).
		Int64("amount", receipt.Amount).
		Dur("duration", receipt.ProcessingDuration).
		Msg("Receipt read")

	return receipt, nil
}

func receiptFromResponse(resp *visionpb.AnnotateImageResponse) (*Receipt, error) {
	if resp.FullTextAnnotation == nil || strings.TrimSpace(resp.FullTextAnnotation.Text) == "" {
		return nil, ErrEmptyDocument
	}

	var confidenceSum float32
	var confidenceCount int
	for _, page := range resp.FullTextAnnotation.Pages {
		if page.Confidence > 0 {
			confidenceSum += page.Confidence
			confidenceCount++
		}
	}

	text := resp.FullTextAnnotation.Text
	receipt := &Receipt{
		Text:    text,
		Amounts: ExtractAmounts(text),
	}
	if confidenceCount > 0 {
		receipt.Confidence = confidenceSum / float32(confidenceCount)
	}
	for _, a := range receipt.Amounts {
		if a > receipt.Amount {
			receipt.Amount = a
		}
	}
	if receipt.Amount == 0 {
		return nil, ErrNoAmount
	}
	return receipt, nil
}

// Close closes the underlying Vision client.
func (g *GoogleVision) Close() error {
	if g.closer != nil {
		return g.closer.Close()
	}
	return nil
}
