package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/efreitasn/basketexec/internal/broker"
	"github.com/efreitasn/basketexec/internal/config"
	"github.com/efreitasn/basketexec/internal/domain"
	"github.com/efreitasn/basketexec/internal/engine"
	"github.com/efreitasn/basketexec/internal/handler"
	"github.com/efreitasn/basketexec/internal/live"
	"github.com/efreitasn/basketexec/internal/metrics"
	"github.com/efreitasn/basketexec/internal/pricing"
	"github.com/efreitasn/basketexec/internal/service"
	"github.com/efreitasn/basketexec/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ledgerBackend is a ledger store the process owns and closes on exit.
type ledgerBackend interface {
	service.LedgerStore
	Close() error
}

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	envFile := flag.String("env-file", ".env", "Optional KEY=VALUE file loaded before reading the environment")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		slog.Error("failed to load env file", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Instruments.
	instruments := domain.NewInstrumentRegistry()
	if err := loadInstruments(cfg.InstrumentsFile, instruments); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Error("failed to load instruments", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Warn("instruments file not found, starting with no instruments",
			slog.String("path", cfg.InstrumentsFile),
		)
	}
	logger.Info("instruments loaded", slog.Int("count", instruments.Len()))

	// Ledger.
	var ledgerStore ledgerBackend
	if cfg.LedgerDSN == "" {
		ledgerStore = store.NewLedgerStore()
	} else {
		ledgerStore, err = store.OpenSQLLedgerStore(cfg.LedgerDSN)
		if err != nil {
			logger.Error("failed to open ledger", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
	defer ledgerStore.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ledgerSvc := service.NewLedgerService(ledgerStore, logger)
	if err := ledgerSvc.Sync(ctx); err != nil {
		logger.Error("failed to sync ledger", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.LedgerDSN != "" {
		ledgerSvc.StartSync(ctx, cfg.LedgerSyncInterval)
	}

	// Metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Feed and paper broker. Without a streaming feed the paper broker's
	// pushes go straight to the engine; the hub always mirrors them.
	dispatcher := engine.NewDispatcher(logger)
	hub := live.NewHub(logger)

	var feedSvc *service.FeedService
	publishers := broker.Fanout{hub}
	if cfg.FeedURL == "" {
		publishers = append(publishers, broker.PublisherFunc(func(u domain.OrderUpdate) { feedSvc.Publish(u) }))
	}
	paper := broker.NewPaperBroker(publishers, broker.PaperConfig{
		FillDelay:   cfg.PaperFillDelay,
		Instruments: instruments,
	}, logger)
	instrumentSvc := service.NewInstrumentService(instruments, paper)
	feedSvc = service.NewFeedService(dispatcher, instrumentSvc, m, logger)

	var feedClient *live.Client
	if cfg.FeedURL != "" {
		feedClient = live.NewClient(live.ClientConfig{
			URL:            cfg.FeedURL,
			ReconnectDelay: cfg.FeedReconnectDelay,
		}, feedSvc, logger)
		feedClient.Start(ctx)
	}

	// Engine.
	webhookSvc := service.NewWebhookService(store.NewWebhookStore(), cfg.WebhookTimeout, logger)
	deps := engine.HandlerDeps{
		Config:     cfg.HandlerConfig(),
		Broker:     broker.NewInstrumented(paper, m),
		Policy:     pricing.NewAdjustByTick(instruments),
		Ticks:      instruments,
		Dispatcher: dispatcher,
		Listener:   engine.Listeners{Outcome: []engine.OutcomeListener{m, webhookSvc}},
		Logger:     logger,
	}
	manager := engine.NewOrderManager(engine.NewHandlerFactory(deps), dispatcher, ledgerSvc, webhookSvc, logger)
	m.RegisterActiveHandlers(reg, func() float64 { return float64(manager.ActiveHandlers()) })

	basketSvc := service.NewBasketService(manager, instruments, m, logger)

	// Router.
	router := handler.NewRouter(handler.Services{
		Basket:     basketSvc,
		Ledger:     ledgerSvc,
		Instrument: instrumentSvc,
		Feed:       feedSvc,
		Webhook:    webhookSvc,
		Hub:        hub,
		Metrics:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, logger)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop HTTP server, then the feed and background sync.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if inFlight := manager.InFlight(); len(inFlight) > 0 {
		symbols := make([]string, len(inFlight))
		for i, r := range inFlight {
			symbols[i] = r.Symbol
		}
		logger.Warn("shutting down with a basket in flight",
			slog.Any("symbols", symbols),
			slog.Int64("active_handlers", manager.ActiveHandlers()),
		)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	if feedClient != nil {
		feedClient.Stop()
	}
	hub.Close()
	cancel()

	logger.Info("server stopped")
}

func loadInstruments(path string, reg *domain.InstrumentRegistry) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return reg.LoadInstruments(f)
}
