package reconciliation

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

// ErrNoExactMatch is returned when no greedy selection sums to the expected total.
var ErrNoExactMatch = errors.New("no exact match")

// OrderLedger is the part of the order ledger reconciliation reads and writes.
type OrderLedger interface {
	sync.Locker
	List(ctx context.Context) ([]ledger.OrderRecord, error)
	SetPaid(ctx context.Context, rows []int, flag models.PaidFlag) error
}

// SupplierLedger is the part of the supplier ledger reconciliation reads and writes.
type SupplierLedger interface {
	EnsureCycle(ctx context.Context, day time.Time) (*ledger.SupplierSnapshot, ledger.Cycle, error)
	WriteCell(ctx context.Context, row, col int, value string) error
}

// Engine matches supplier payments against outstanding orders.
type Engine struct {
	orders    OrderLedger
	suppliers SupplierLedger
	loc       *time.Location
	now       func() time.Time
	log       zerolog.Logger

	// mu serializes ledger updates; two payments for one source must not read the same
	// status cell.
	mu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used to pick the billing cycle.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLocation sets the time zone of the billing calendar.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// NewEngine creates a reconciliation engine over the two ledgers.
func NewEngine(orders OrderLedger, suppliers SupplierLedger, opts ...Option) *Engine {
	e := &Engine{
		orders:    orders,
		suppliers: suppliers,
		loc:       time.UTC,
		now:       time.Now,
		log:       logger.WithComponent("reconciliation"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile pays expected to source by marking the oldest outstanding orders whose costs sum to
// exactly expected. On a mismatch nothing is written and the returned error wraps
// ErrNoExactMatch; the result still carries the best total reached.
func (e *Engine) Reconcile(ctx context.Context, source string, expected int64) (*Result, error) {
	if expected <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTotal, expected)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.reconcile(ctx, source, expected)
}

// ReconcileCurrentCycle reconciles the part of the current billing cycle total that the status
// cell does not already record as paid.
func (e *Engine) ReconcileCurrentCycle(ctx context.Context, source string) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, c, err := e.suppliers.EnsureCycle(ctx, e.today())
	if err != nil {
		return nil, wrapError("currentCycle", source, err)
	}
	rec, err := snap.Find(source)
	if err != nil {
		return nil, err
	}

	total, err := snap.ExpectedTotal(rec.Row, c)
	if err != nil {
		return nil, wrapError("currentCycle", source, err)
	}
	status := snap.Cell(rec.Row, c.StatusCol)
	paid := PaidSoFar(status)
	// a bare marker without an amount means the operator settled the cycle by hand
	if paid == 0 && ledger.IsSettled(status) {
		return nil, fmt.Errorf("%w: %s %s", ErrAlreadySettled, rec.Source.Name, c.Label)
	}
	remaining := total - paid
	if remaining <= 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrAlreadySettled, rec.Source.Name, c.Label)
	}

	e.log.Debug().
		Str("source", rec.Source.Name).
		Str("cycle", c.Label).
		Int64("cycle_total", total).
		Int64("remaining", remaining).
		Msg("Reconciling current cycle")

	return e.reconcile(ctx, rec.Source.Name, remaining)
}

func (e *Engine) reconcile(ctx context.Context, source string, expected int64) (*Result, error) {
	e.orders.Lock()
	defer e.orders.Unlock()

	records, err := e.orders.List(ctx)
	if err != nil {
		return nil, wrapError("listOrders", source, err)
	}

	sel := SelectOrders(Candidates(records, source), expected)
	res := &Result{
		Source:        source,
		Expected:      expected,
		AchievedTotal: sel.Total,
	}
	for _, c := range sel.Picked {
		res.OrderIDs = append(res.OrderIDs, c.ID)
	}

	if !sel.Matched(expected) {
		e.log.Info().
			Str("source", source).
			Int64("expected", expected).
			Int64("achieved", sel.Total).
			Msg("No exact match for payment")
		return res, fmt.Errorf("%w: reached %s of %s for %s", ErrNoExactMatch,
			ledger.FormatAmount(sel.Total), ledger.FormatAmount(expected), source)
	}

	// Supplier ledger first: if it fails no order is marked paid.
	if err := e.commitSupplierPayment(ctx, res); err != nil {
		return res, wrapError("commitSupplierPayment", source, err)
	}

	rows := make([]int, 0, len(sel.Picked))
	for _, c := range sel.Picked {
		rows = append(rows, c.Row)
	}
	if err := e.orders.SetPaid(ctx, rows, models.PaidDone); err != nil {
		return res, wrapError("markPaid", source, err)
	}

	res.Matched = true
	e.log.Info().
		Str("source", source).
		Int64("amount", expected).
		Strs("order_ids", res.OrderIDs).
		Str("cycle", res.Cycle).
		Msg("Payment reconciled")

	return res, nil
}

func (e *Engine) commitSupplierPayment(ctx context.Context, res *Result) error {
	snap, c, err := e.suppliers.EnsureCycle(ctx, e.today())
	if err != nil {
		return err
	}
	rec, err := snap.Find(res.Source)
	if err != nil {
		return err
	}

	status := ComposeStatus(snap.Cell(rec.Row, c.StatusCol), res.AchievedTotal)
	if err := e.suppliers.WriteCell(ctx, rec.Row, c.StatusCol, status); err != nil {
		return err
	}

	res.Cycle = c.Label
	res.Status = status
	return nil
}

func (e *Engine) today() time.Time {
	return ledger.Today(e.now(), e.loc)
}
