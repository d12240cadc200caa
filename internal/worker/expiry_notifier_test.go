package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ordersbot/internal/reconciliation"
	"ordersbot/internal/renewal"
	"ordersbot/pkg/models"
)

type listerFunc func(ctx context.Context) ([]models.Order, error)

func (f listerFunc) Expiring(ctx context.Context) ([]models.Order, error) { return f(ctx) }

type textSink struct {
	mu    sync.Mutex
	texts []string
}

func (s *textSink) Text(_ context.Context, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, msg)
	return nil
}

func (s *textSink) RenewalResult(context.Context, renewal.Result) error { return nil }

func (s *textSink) Reconciliation(context.Context, *reconciliation.Result, error) error { return nil }

func (s *textSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.texts)
}

func TestExpiryNotifier(t *testing.T) {
	due := []models.Order{{ID: "MAVL1", Customer: "An", ProductCode: "NETFLIX--1m", ExpiryDate: time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC)}}

	t.Run("PostsExpiringOrders", func(t *testing.T) {
		sink := &textSink{}
		w := NewExpiryNotifier(time.Hour, listerFunc(func(context.Context) ([]models.Order, error) { return due, nil }), sink)
		w.RunOnce(context.Background())

		require.Equal(t, 1, sink.count())
		assert.Contains(t, sink.texts[0], "MAVL1")
		assert.Contains(t, sink.texts[0], "21/10/2026")
	})

	t.Run("QuietWhenNothingDue", func(t *testing.T) {
		sink := &textSink{}
		w := NewExpiryNotifier(time.Hour, listerFunc(func(context.Context) ([]models.Order, error) { return nil, nil }), sink)
		w.RunOnce(context.Background())
		assert.Zero(t, sink.count())
	})

	t.Run("SurvivesErrorsAndPanics", func(t *testing.T) {
		sink := &textSink{}
		w := NewExpiryNotifier(time.Hour, listerFunc(func(context.Context) ([]models.Order, error) {
			return nil, errors.New("sheets down")
		}), sink)
		w.RunOnce(context.Background())

		w = NewExpiryNotifier(time.Hour, listerFunc(func(context.Context) ([]models.Order, error) {
			panic("boom")
		}), sink)
		assert.NotPanics(t, func() { w.RunOnce(context.Background()) })
		assert.Zero(t, sink.count())
	})

	t.Run("TicksUntilStopped", func(t *testing.T) {
		sink := &textSink{}
		w := NewExpiryNotifier(5*time.Millisecond, listerFunc(func(context.Context) ([]models.Order, error) { return due, nil }), sink)
		w.Start(context.Background())

		require.Eventually(t, func() bool { return sink.count() >= 2 }, time.Second, time.Millisecond)
		w.Stop()
		w.Stop()

		n := sink.count()
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, n, sink.count())
	})

	t.Run("StopsWithContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		w := NewExpiryNotifier(time.Hour, listerFunc(func(context.Context) ([]models.Order, error) { return nil, nil }), &textSink{})
		w.Start(ctx)
		cancel()

		stopped := make(chan struct{})
		go func() {
			w.Stop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(time.Second):
			t.Fatal("worker did not stop")
		}
	})
}
