package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"ordersbot/internal/ledger"
	"ordersbot/internal/logger"
	"ordersbot/internal/renewal"
	"ordersbot/pkg/models"
)

// Draft is the operator input for a new order. Zero prices are looked up in the price list and a
// zero registration date means today.
type Draft struct {
	Class       models.CustomerClass
	Customer    string
	ProductCode string
	Source      string
	Registered  time.Time
	CostPrice   int64
	SalePrice   int64
	Note        string
}

// IDGenerator issues prefixed order ids.
type IDGenerator interface {
	NextID(prefix string) (string, error)
}

// Refund is what a customer gets back for a cancelled order.
type Refund struct {
	Order         models.Order
	DaysRemaining int
	Amount        int64
}

// Unpaid is the outstanding queue of one source.
type Unpaid struct {
	Source string
	Orders []models.Order
	Total  int64
}

// Service manages order rows outside of renewal and reconciliation.
type Service struct {
	orders    *ledger.Orders
	suppliers *ledger.Suppliers
	prices    *ledger.PriceList
	ids       IDGenerator
	threshold int
	now       func() time.Time
	log       zerolog.Logger
}

// NewService creates an order service.
func NewService(orders *ledger.Orders, suppliers *ledger.Suppliers, prices *ledger.PriceList, ids IDGenerator, thresholdDays int) *Service {
	if thresholdDays <= 0 {
		thresholdDays = renewal.DefaultThresholdDays
	}
	return &Service{
		orders:    orders,
		suppliers: suppliers,
		prices:    prices,
		ids:       ids,
		threshold: thresholdDays,
		now:       time.Now,
		log:       logger.WithComponent("orders"),
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Today is the current calendar day in the ledger time zone.
func (s *Service) Today() time.Time {
	return ledger.Today(s.now(), s.orders.Location())
}

// Create validates a draft and appends the new order.
func (s *Service) Create(ctx context.Context, d Draft) (models.Order, error) {
	const op = "Create"

	if err := d.Validate(); err != nil {
		return models.Order{}, err
	}

	term, err := renewal.ParseTermDays(d.ProductCode)
	if err != nil {
		return models.Order{}, ledger.NewValidationError("product_code", d.ProductCode, "product code needs a --<n>m duration")
	}

	src, err := s.resolveSource(ctx, d.Source)
	if err != nil {
		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	reg := d.Registered
	if reg.IsZero() {
		reg = s.Today()
	}

	ord := models.Order{
		Customer:         strings.TrimSpace(d.Customer),
		ProductCode:      strings.TrimSpace(d.ProductCode),
		SourceName:       src.Name,
		TermDays:         term,
		RegistrationDate: reg,
		ExpiryDate:       renewal.InitialExpiry(reg, term),
		CostPrice:        d.CostPrice,
		SalePrice:        d.SalePrice,
		Paid:             models.PaidPending,
		Note:             strings.TrimSpace(d.Note),
	}

	if ord.CostPrice == 0 || ord.SalePrice == 0 {
		price, err := s.prices.Lookup(ctx, ord.ProductCode, src.Name, d.Class)
		if err != nil {
			return models.Order{}, fmt.Errorf("%s: %w", op, err)
		}
		if ord.CostPrice == 0 {
			ord.CostPrice = price.Cost
		}
		if ord.SalePrice == 0 {
			ord.SalePrice = price.Sale
		}
	}

	ord.ID, err = s.ids.NextID(d.Class.Prefix())
	if err != nil {
		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.orders.Append(ctx, ord); err != nil {
		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info().
		Str("order_id", ord.ID).
		Str("source", ord.SourceName).
		Str("product", ord.ProductCode).
		Str("expiry", ledger.FormatDate(ord.ExpiryDate)).
		Msg("Order created")

	return ord, nil
}

// Delete removes an order by id.
func (s *Service) Delete(ctx context.Context, id string) (models.Order, error) {
	return s.orders.Delete(ctx, id)
}

// Refund cancels an order: the row is removed and the sale price is prorated over the days
// left in the term.
func (s *Service) Refund(ctx context.Context, id string) (Refund, error) {
	const op = "Refund"

	ord, err := s.orders.Delete(ctx, id)
	if err != nil {
		return Refund{}, fmt.Errorf("%s: %w", op, err)
	}

	amount, days := RefundAmount(ord, s.Today())
	s.log.Info().
		Str("order_id", ord.ID).
		Int("days_remaining", days).
		Int64("amount", amount).
		Msg("Order refunded")

	return Refund{Order: ord, DaysRemaining: days, Amount: amount}, nil
}

// RefundAmount returns sale price * unused days / term, rounded down, and the unused days.
// Expired orders and orders without a term or sale price refund nothing.
func RefundAmount(ord models.Order, today time.Time) (int64, int) {
	if ord.ExpiryDate.IsZero() || ord.TermDays <= 0 || ord.SalePrice <= 0 {
		return 0, 0
	}
	days := ord.DaysRemaining(today)
	if days <= 0 {
		return 0, 0
	}
	if days > ord.TermDays {
		days = ord.TermDays
	}
	return ord.SalePrice * int64(days) / int64(ord.TermDays), days
}

// SetPaid overwrites the paid flag of one order.
func (s *Service) SetPaid(ctx context.Context, id string, flag models.PaidFlag) (models.Order, error) {
	const op = "SetPaid"

	if flag == models.PaidUnknown {
		return models.Order{}, ledger.NewValidationError("paid", flag.String(), "unknown paid flag")
	}

	s.orders.Lock()
	defer s.orders.Unlock()

	rec, err := s.orders.Find(ctx, id)
	if err != nil {
		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.orders.SetPaid(ctx, []int{rec.Row}, flag); err != nil {
		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	rec.Order.Paid = flag
	s.log.Info().Str("order_id", rec.Order.ID).Stringer("paid", flag).Msg("Paid flag set")
	return rec.Order, nil
}

// Unpaid returns the outstanding orders of a source that are not about to roll over, oldest
// first, with their cost total.
func (s *Service) Unpaid(ctx context.Context, source string) (*Unpaid, error) {
	const op = "Unpaid"

	records, err := s.orders.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	today := s.Today()
	out := &Unpaid{Source: source}
	for _, r := range records {
		ord := r.Order
		if !ord.Paid.Outstanding() || !ledger.SameName(ord.SourceName, source) {
			continue
		}
		if r.ExpiryErr == nil && ord.DaysRemaining(today) <= s.threshold {
			continue
		}
		out.Orders = append(out.Orders, ord)
		if r.CostErr == nil {
			out.Total += ord.CostPrice
		}
	}

	sort.SliceStable(out.Orders, func(i, j int) bool {
		a, b := out.Orders[i].RegistrationDate, out.Orders[j].RegistrationDate
		if a.IsZero() || b.IsZero() {
			return !a.IsZero()
		}
		return a.Before(b)
	})
	return out, nil
}

// Expiring returns outstanding orders within the renewal threshold, soonest expiry first. Paid
// orders and orders whose expiry is not a date are left out.
func (s *Service) Expiring(ctx context.Context) ([]models.Order, error) {
	const op = "Expiring"

	records, err := s.orders.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	today := s.Today()
	var out []models.Order
	for _, r := range records {
		if r.ExpiryErr != nil || !r.Order.Paid.Outstanding() {
			continue
		}
		if renewal.Eligible(r.Order.DaysRemaining(today), s.threshold) {
			out = append(out, r.Order)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExpiryDate.Before(out[j].ExpiryDate)
	})
	return out, nil
}

// Sources lists the suppliers with their payment info.
func (s *Service) Sources(ctx context.Context) ([]models.Source, error) {
	records, err := s.suppliers.Sources(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.Source, 0, len(records))
	for _, r := range records {
		out = append(out, r.Source)
	}
	return out, nil
}

// ResolveSource finds a supplier by name or bank account number.
func (s *Service) ResolveSource(ctx context.Context, nameOrAccount string) (models.Source, error) {
	return s.resolveSource(ctx, nameOrAccount)
}

func (s *Service) resolveSource(ctx context.Context, key string) (models.Source, error) {
	records, err := s.suppliers.Sources(ctx)
	if err != nil {
		return models.Source{}, err
	}
	account := strings.ReplaceAll(strings.TrimSpace(key), " ", "")
	for _, r := range records {
		if ledger.SameName(r.Source.Name, key) {
			return r.Source, nil
		}
		if account != "" && r.Source.BankAccount == account {
			return r.Source, nil
		}
	}
	return models.Source{}, fmt.Errorf("%w: %s", ledger.ErrSourceNotFound, key)
}

// Validate checks the fields every draft needs before any sheet is read.
func (d Draft) Validate() error {
	switch d.Class {
	case models.ClassRetail, models.ClassPartner:
	default:
		return ledger.NewValidationError("class", d.Class, "customer class must be retail or partner")
	}
	if strings.TrimSpace(d.ProductCode) == "" {
		return ledger.NewValidationError("product_code", d.ProductCode, "product code is required")
	}
	if strings.TrimSpace(d.Source) == "" {
		return ledger.NewValidationError("source", d.Source, "source is required")
	}
	if d.CostPrice < 0 || d.SalePrice < 0 {
		return ledger.NewValidationError("price", fmt.Sprintf("%d/%d", d.CostPrice, d.SalePrice), "prices cannot be negative")
	}
	return nil
}

// IsNotFound reports whether err means an order or source does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ledger.ErrOrderNotFound) || errors.Is(err, ledger.ErrSourceNotFound)
}
