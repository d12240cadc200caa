package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"ordersbot/internal/config"
	"ordersbot/internal/ledger"
	"ordersbot/internal/logger"
	"ordersbot/internal/orders"
	"ordersbot/internal/reconciliation"
	"ordersbot/internal/renewal"
	"ordersbot/internal/sheets"
	"ordersbot/pkg/idgen"
)

// app holds the ledger and the services built on it.
type app struct {
	cfg       *config.Config
	orders    *ledger.Orders
	suppliers *ledger.Suppliers
	prices    *ledger.PriceList
	orderSvc  *orders.Service
	engine    *reconciliation.Engine
}

// newApp connects to the spreadsheet and wires the services. With dryRun the order and supplier
// sheets are copied into memory first, so nothing is written back.
func newApp(ctx context.Context, dryRun bool) (*app, error) {
	const op = "newApp"
	log := logger.WithComponent("app")

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	svc, err := sheets.NewSheetsService(ctx, cfg.GoogleSheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to initialize Google Sheets service: %w", op, err)
	}

	required := []string{cfg.OrderSheet, cfg.SourceSheet, cfg.PriceSheet}
	if err := validateSheetsExist(ctx, svc, required); err != nil {
		return nil, fmt.Errorf("%s: sheet validation failed: %w", op, err)
	}

	var orderTable, sourceTable ledger.Table = svc.Tab(cfg.OrderSheet), svc.Tab(cfg.SourceSheet)
	if dryRun {
		if orderTable, err = ledger.Snapshot(ctx, orderTable); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if sourceTable, err = ledger.Snapshot(ctx, sourceTable); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		log.Warn().Msg("Dry run: order and source sheets are read once and never written")
	}

	ids, err := idgen.NewGenerator(cfg.MachineID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	loc := cfg.Location()
	a := &app{
		cfg:       cfg,
		orders:    ledger.NewOrders(orderTable, loc),
		suppliers: ledger.NewSuppliers(sourceTable, loc),
		prices:    ledger.NewPriceList(svc.Tab(cfg.PriceSheet)),
	}
	a.orderSvc = orders.NewService(a.orders, a.suppliers, a.prices, ids, cfg.RenewalThresholdDays)
	a.engine = reconciliation.NewEngine(a.orders, a.suppliers, reconciliation.WithLocation(loc))

	log.Debug().
		Str("order_sheet", cfg.OrderSheet).
		Str("source_sheet", cfg.SourceSheet).
		Str("price_sheet", cfg.PriceSheet).
		Bool("dry_run", dryRun).
		Msg("Ledger wired")
	return a, nil
}

// renewer builds a renewal service reporting to notifier, which may be nil.
func (a *app) renewer(notifier renewal.Notifier) *renewal.Service {
	return renewal.NewService(a.orders, a.prices, notifier, renewal.Config{
		ThresholdDays: a.cfg.RenewalThresholdDays,
		Location:      a.cfg.Location(),
	})
}

// validateSheetsExist checks that all required sheets exist in the spreadsheet
func validateSheetsExist(ctx context.Context, svc *sheets.Service, required []string) error {
	const op = "validateSheetsExist"
	log := logger.WithComponent("app")

	for _, name := range required {
		ok, err := svc.SheetExists(ctx, name)
		if err != nil {
			return fmt.Errorf("%s: sheet '%s' is not accessible: %w", op, name, err)
		}
		if !ok {
			return fmt.Errorf("%s: sheet '%s' does not exist", op, name)
		}
		log.Debug().Str("sheet", name).Msg("Sheet exists and is accessible")
	}
	return nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM or, when timeout is positive,
// after timeout.
func signalContext(timeout time.Duration, log zerolog.Logger) (context.Context, context.CancelFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
