package worker

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"ordersbot/internal/logger"
	"ordersbot/internal/notify"
	"ordersbot/pkg/models"
)

// ExpiringLister lists orders due for renewal.
type ExpiringLister interface {
	Expiring(ctx context.Context) ([]models.Order, error)
}

// ExpiryNotifier is a background worker that periodically posts the orders about to expire.
type ExpiryNotifier struct {
	interval time.Duration
	orders   ExpiringLister
	sink     notify.Sink
	log      zerolog.Logger

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewExpiryNotifier creates a new ExpiryNotifier.
func NewExpiryNotifier(interval time.Duration, orders ExpiringLister, sink notify.Sink) *ExpiryNotifier {
	return &ExpiryNotifier{
		interval: interval,
		orders:   orders,
		sink:     sink,
		log:      logger.WithComponent("expiry_notifier"),
		done:     make(chan struct{}),
	}
}

// Start runs the check on every tick until ctx is cancelled or Stop is called.
func (w *ExpiryNotifier) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Starting expiry notifier worker")
	ticker := time.NewTicker(w.interval)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.done:
				return
			case <-ticker.C:
				w.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce performs a single check. Panics are recovered and logged.
func (w *ExpiryNotifier) RunOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Panic recovered in expiry notifier worker")
		}
	}()

	w.log.Debug().Msg("Running expiry check")
	list, err := w.orders.Expiring(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("Failed to list expiring orders")
		return
	}
	if len(list) == 0 {
		return
	}
	if err := w.sink.Text(ctx, notify.FormatExpiring(list)); err != nil {
		w.log.Error().Err(err).Int("orders", len(list)).Msg("Failed to post expiring orders")
	}
}

// Stop ends the worker and waits for a running check to finish.
func (w *ExpiryNotifier) Stop() {
	w.stopOnce.Do(func() {
		w.log.Info().Msg("Stopping expiry notifier worker")
		close(w.done)
	})
	w.wg.Wait()
}
