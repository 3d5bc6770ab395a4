package handler

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/efreitasn/basketexec/internal/service"
	"github.com/go-chi/chi/v5"
)

// Services groups what the router serves. Hub and Metrics are optional; their
// routes are only mounted when set.
type Services struct {
	Basket     *service.BasketService
	Ledger     *service.LedgerService
	Instrument *service.InstrumentService
	Feed       *service.FeedService
	Webhook    *service.WebhookService
	Hub        http.Handler
	Metrics    http.Handler
}

// NewRouter creates a chi router with all routes registered, request logging,
// and Content-Type validation middleware.
func NewRouter(svcs Services, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	// Create handlers.
	basketH := NewBasketHandler(svcs.Basket)
	ledgerH := NewLedgerHandler(svcs.Ledger)
	instrumentH := NewInstrumentHandler(svcs.Instrument)
	feedH := NewFeedHandler(svcs.Feed)
	webhookH := NewWebhookHandler(svcs.Webhook)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if svcs.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", svcs.Metrics)
	}

	// Basket routes.
	r.Post("/baskets", basketH.Submit)

	// Ledger routes.
	r.Get("/ledger/trades", ledgerH.ListTrades)

	// Instrument routes.
	r.Get("/instruments", instrumentH.List)
	r.Get("/instruments/{symbol}", instrumentH.Get)
	r.Put("/instruments/{symbol}/quote", instrumentH.SetQuote)

	// Feed routes.
	r.Post("/feed/order-updates", feedH.PostOrderUpdate)
	if svcs.Hub != nil {
		r.Method(http.MethodGet, "/feed/ws", svcs.Hub)
	}

	// Webhook routes.
	r.Post("/webhooks", webhookH.Upsert)
	r.Get("/webhooks", webhookH.List)
	r.Delete("/webhooks/{webhook_id}", webhookH.Delete)

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades through the logging middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests. If the Content-Type header doesn't start with
// "application/json", it returns 400 Bad Request before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
