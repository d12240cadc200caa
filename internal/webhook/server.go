package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"ordersbot/internal/logger"
)

// maxBodyBytes bounds a notification body.
const maxBodyBytes = 1 << 20

// Handler accepts bank notifications and processes them after replying.
type Handler struct {
	processor Processor
	log       zerolog.Logger

	// base outlives requests; background work stops when it is cancelled.
	base    context.Context
	pending sync.WaitGroup
}

// NewHandler creates a handler whose background work runs under base.
func NewHandler(base context.Context, processor Processor) *Handler {
	return &Handler{
		processor: processor,
		log:       logger.WithComponent("webhook"),
		base:      base,
	}
}

// NewRouter mounts the health check and the API-key protected bank endpoint.
func NewRouter(h *Handler, apiKey string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(AccessLog)
	r.Use(Recoverer)

	r.Get("/healthz", h.Health)

	r.Route("/webhook", func(r chi.Router) {
		r.Use(APIKey(apiKey))
		r.Post("/bank", h.Bank)
	})

	return r
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// Bank validates a transfer, answers at once and hands the transfer to the processor.
func (h *Handler) Bank(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	var t Transfer
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&t); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid JSON body"})
		return
	}
	if err := t.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})

	bg := log.WithContext(h.base)
	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Int64("transfer_id", t.ID).Msg("Transfer processing panicked")
			}
		}()

		if err := h.processor.Process(bg, t); err != nil {
			log.Error().Err(err).Int64("transfer_id", t.ID).Msg("Transfer processing failed")
		}
	}()
}

// Wait blocks until background processing started so far has finished.
func (h *Handler) Wait() {
	h.pending.Wait()
}

// Server runs the webhook HTTP listener.
type Server struct {
	srv     *http.Server
	handler *Handler
	log     zerolog.Logger
}

// NewServer creates a server on addr.
func NewServer(addr string, h *Handler, apiKey string) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(h, apiKey),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
		},
		handler: h,
		log:     logger.WithComponent("webhook"),
	}
}

// Run serves until ctx is cancelled, then shuts down and waits for background work.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.srv.Addr).Msg("Webhook server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("Run: webhook server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("Run: shutdown: %w", err)
	}
	s.handler.Wait()
	s.log.Info().Msg("Webhook server stopped")
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
