package webhook

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"ordersbot/internal/ledger"
	"ordersbot/internal/logger"
	"ordersbot/internal/notify"
	"ordersbot/internal/reconciliation"
	"ordersbot/internal/renewal"
	"ordersbot/pkg/models"
)

// Transfer directions.
const (
	TransferIn  = "in"
	TransferOut = "out"
)

// Transfer is the bank notification payload.
type Transfer struct {
	ID              int64  `json:"id"`
	Gateway         string `json:"gateway"`
	TransactionDate string `json:"transactionDate"`
	AccountNumber   string `json:"accountNumber"`
	Code            string `json:"code"`
	Content         string `json:"content"`
	TransferType    string `json:"transferType"`
	TransferAmount  int64  `json:"transferAmount"`
	Accumulated     int64  `json:"accumulated"`
	SubAccount      string `json:"subAccount"`
	ReferenceCode   string `json:"referenceCode"`
	Description     string `json:"description"`
}

// Validate checks the fields processing depends on.
func (t *Transfer) Validate() error {
	switch t.TransferType {
	case TransferIn, TransferOut:
	default:
		return ledger.NewValidationError("transferType", t.TransferType, "must be in or out")
	}
	if t.TransferAmount <= 0 {
		return ledger.NewValidationError("transferAmount", t.TransferAmount, "must be positive")
	}
	return nil
}

// Processor acts on a transfer.
type Processor interface {
	Process(ctx context.Context, t Transfer) error
}

// Reconciler settles the current billing cycle of a source.
type Reconciler interface {
	ReconcileCurrentCycle(ctx context.Context, source string) (*reconciliation.Result, error)
}

// Renewer renews one order.
type Renewer interface {
	Renew(ctx context.Context, orderID string) (renewal.Result, error)
}

// SourceLister lists the suppliers.
type SourceLister interface {
	Sources(ctx context.Context) ([]models.Source, error)
}

// TransferProcessor reconciles outgoing supplier payments and renews orders paid by customers.
type TransferProcessor struct {
	reconciler Reconciler
	renewer    Renewer
	sources    SourceLister
	sink       notify.Sink
	log        zerolog.Logger
}

// NewTransferProcessor wires a processor.
func NewTransferProcessor(reconciler Reconciler, renewer Renewer, sources SourceLister, sink notify.Sink) *TransferProcessor {
	return &TransferProcessor{
		reconciler: reconciler,
		renewer:    renewer,
		sources:    sources,
		sink:       sink,
		log:        logger.WithComponent("webhook"),
	}
}

var orderIDPattern = regexp.MustCompile(`(?i)MAV[LC][0-9A-Z]+`)

// OrderIDs returns the distinct order ids mentioned in a transfer description, upper-cased.
func OrderIDs(content string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range orderIDPattern.FindAllString(content, -1) {
		id := strings.ToUpper(m)
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// MatchSource finds the supplier a transfer description refers to, by bank account number or by
// name. Account numbers win; among names the longest match wins.
func MatchSource(content string, sources []models.Source) (models.Source, bool) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return ' '
	}, content)
	for _, s := range sources {
		if len(s.BankAccount) >= 6 && strings.Contains(" "+digits+" ", " "+s.BankAccount+" ") {
			return s, true
		}
	}

	text := ledger.NameKey(content)
	var best models.Source
	bestLen := 0
	for _, s := range sources {
		key := strings.TrimPrefix(ledger.NameKey(s.Name), "@")
		if len(key) > bestLen && strings.Contains(text, key) {
			best, bestLen = s, len(key)
		}
	}
	return best, bestLen > 0
}

// Process handles one transfer. Outcomes are reported through the sink.
func (p *TransferProcessor) Process(ctx context.Context, t Transfer) error {
	log := p.log.With().Int64("transfer_id", t.ID).Str("type", t.TransferType).Logger()

	switch t.TransferType {
	case TransferOut:
		return p.processOut(ctx, t, log)
	case TransferIn:
		return p.processIn(ctx, t, log)
	default:
		return fmt.Errorf("Process: unknown transfer type %q", t.TransferType)
	}
}

func (p *TransferProcessor) processOut(ctx context.Context, t Transfer, log zerolog.Logger) error {
	const op = "processOut"

	sources, err := p.sources.Sources(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	src, ok := MatchSource(t.Content, sources)
	if !ok {
		log.Info().Str("content", t.Content).Msg("Outgoing transfer matches no source")
		return p.sink.Text(ctx, fmt.Sprintf("ℹ️ Chuyển khoản đi %s không khớp nguồn nào: %q",
			ledger.FormatAmount(t.TransferAmount), t.Content))
	}

	res, err := p.reconciler.ReconcileCurrentCycle(ctx, src.Name)
	if serr := p.sink.Reconciliation(ctx, res, err); serr != nil {
		log.Warn().Err(serr).Msg("Failed to deliver reconciliation result")
	}
	if res != nil && res.Expected != t.TransferAmount {
		msg := fmt.Sprintf("⚠️ %s: số tiền chuyển %s khác số cần thanh toán %s",
			src.Name, ledger.FormatAmount(t.TransferAmount), ledger.FormatAmount(res.Expected))
		if serr := p.sink.Text(ctx, msg); serr != nil {
			log.Warn().Err(serr).Msg("Failed to deliver amount mismatch")
		}
	}

	switch {
	case err == nil:
		log.Info().Str("source", src.Name).Strs("order_ids", res.OrderIDs).Msg("Outgoing transfer reconciled")
		return nil
	case errors.Is(err, reconciliation.ErrNoExactMatch), errors.Is(err, reconciliation.ErrAlreadySettled):
		log.Info().Err(err).Str("source", src.Name).Msg("Outgoing transfer not reconciled")
		return nil
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func (p *TransferProcessor) processIn(ctx context.Context, t Transfer, log zerolog.Logger) error {
	ids := OrderIDs(t.Content)
	if len(ids) == 0 {
		log.Info().Str("content", t.Content).Msg("Incoming transfer names no order")
		return p.sink.Text(ctx, fmt.Sprintf("ℹ️ Nhận %s không có mã đơn: %q",
			ledger.FormatAmount(t.TransferAmount), t.Content))
	}

	var errs []error
	for _, id := range ids {
		// Renew reports every outcome through the sink itself.
		if _, err := p.renewer.Renew(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
