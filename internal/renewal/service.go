package renewal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"ordersbot/internal/ledger"
	"ordersbot/internal/logger"
	"ordersbot/pkg/models"
)

// Outcome classifies a renewal attempt.
type Outcome string

const (
	OutcomeRenewal Outcome = "renewal"
	OutcomeSkipped Outcome = "skipped"
	OutcomeError   Outcome = "error"
)

// Details describes the order around a renewal.
type Details struct {
	Previous       models.Order
	Order          models.Order // after renewal; equal to Previous unless renewed
	DaysRemaining  int
	PriceRefreshed bool
}

// Result is delivered to the operator after every attempt.
type Result struct {
	OrderID string
	Outcome Outcome
	Details Details
	Message string
}

// OrderLedger is the part of the order ledger renewal reads and writes.
type OrderLedger interface {
	sync.Locker
	Find(ctx context.Context, id string) (ledger.OrderRecord, error)
	UpdatePeriod(ctx context.Context, row int, ord models.Order) error
}

// PriceLookup returns current prices for a product bought from a source.
type PriceLookup interface {
	Lookup(ctx context.Context, productCode, source string, class models.CustomerClass) (ledger.Price, error)
}

// Notifier receives every renewal result.
type Notifier interface {
	RenewalResult(ctx context.Context, res Result) error
}

// Service renews orders that are about to expire.
type Service struct {
	orders    OrderLedger
	prices    PriceLookup
	notifier  Notifier
	threshold int
	loc       *time.Location
	now       func() time.Time
	log       zerolog.Logger
}

// Config holds the service settings.
type Config struct {
	ThresholdDays int
	Location      *time.Location
	Now           func() time.Time
}

// NewService creates a renewal service. notifier may be nil.
func NewService(orders OrderLedger, prices PriceLookup, notifier Notifier, cfg Config) *Service {
	s := &Service{
		orders:    orders,
		prices:    prices,
		notifier:  notifier,
		threshold: cfg.ThresholdDays,
		loc:       cfg.Location,
		now:       cfg.Now,
		log:       logger.WithComponent("renewal"),
	}
	if s.threshold <= 0 {
		s.threshold = DefaultThresholdDays
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Renew extends one order by its product term when it is within the renewal threshold. Orders
// further from expiry are skipped. The returned error is non-nil only for the error outcome.
func (s *Service) Renew(ctx context.Context, orderID string) (Result, error) {
	res, err := s.renew(ctx, orderID)
	if err != nil {
		res.Outcome = OutcomeError
		res.Message = err.Error()
		s.log.Error().Err(err).Str("order_id", orderID).Msg("Renewal failed")
	}

	if s.notifier != nil {
		if nerr := s.notifier.RenewalResult(ctx, res); nerr != nil {
			s.log.Warn().Err(nerr).Str("order_id", orderID).Msg("Failed to deliver renewal result")
		}
	}
	return res, err
}

func (s *Service) renew(ctx context.Context, orderID string) (Result, error) {
	const op = "Renew"

	res := Result{OrderID: orderID}

	s.orders.Lock()
	defer s.orders.Unlock()

	rec, err := s.orders.Find(ctx, orderID)
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	prev := rec.Order
	res.OrderID = prev.ID
	res.Details.Previous = prev
	res.Details.Order = prev

	if rec.ExpiryErr != nil {
		return res, fmt.Errorf("%s: %s: %w", op, prev.ID, ErrBadExpiry)
	}

	today := ledger.Today(s.now(), s.loc)
	days := prev.DaysRemaining(today)
	res.Details.DaysRemaining = days
	if !Eligible(days, s.threshold) {
		res.Outcome = OutcomeSkipped
		res.Message = fmt.Sprintf("not yet due: %d days remaining", days)
		s.log.Debug().Str("order_id", prev.ID).Int("days_remaining", days).Msg("Renewal skipped")
		return res, nil
	}

	term, err := ParseTermDays(prev.ProductCode)
	if err != nil {
		return res, fmt.Errorf("%s: %s: %w", op, prev.ID, err)
	}

	next := prev
	next.TermDays = term
	next.RegistrationDate = NextStart(prev.ExpiryDate)
	next.ExpiryDate = Rollover(next.RegistrationDate, term)
	next.Paid = models.PaidPending

	price, err := s.prices.Lookup(ctx, prev.ProductCode, prev.SourceName, prev.Class())
	switch {
	case err == nil:
		next.CostPrice = price.Cost
		next.SalePrice = price.Sale
		res.Details.PriceRefreshed = true
	case errors.Is(err, ledger.ErrPriceNotFound):
		s.log.Warn().Err(err).Str("order_id", prev.ID).Msg("No current price, keeping previous prices")
	default:
		s.log.Warn().Err(err).Str("order_id", prev.ID).Msg("Price list unavailable, keeping previous prices")
	}

	if err := s.orders.UpdatePeriod(ctx, rec.Row, next); err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}

	res.Outcome = OutcomeRenewal
	res.Details.Order = next
	res.Message = fmt.Sprintf("renewed until %s", ledger.FormatDate(next.ExpiryDate))

	s.log.Info().
		Str("order_id", prev.ID).
		Str("from", ledger.FormatDate(next.RegistrationDate)).
		Str("until", ledger.FormatDate(next.ExpiryDate)).
		Int64("cost", next.CostPrice).
		Int64("sale", next.SalePrice).
		Msg("Order renewed")

	return res, nil
}
