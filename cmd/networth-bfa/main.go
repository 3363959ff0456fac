package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/networth-bfa-go/internal/config"
	"github.com/boddenberg/networth-bfa-go/internal/domain"
	"github.com/boddenberg/networth-bfa-go/internal/handler"
	"github.com/boddenberg/networth-bfa-go/internal/infra/client"
	"github.com/boddenberg/networth-bfa-go/internal/infra/memstore"
	"github.com/boddenberg/networth-bfa-go/internal/infra/observability"
	"github.com/boddenberg/networth-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/networth-bfa-go/internal/port"
	"github.com/boddenberg/networth-bfa-go/internal/service"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

func main() {
	issueFor := flag.String("issue-token", "", "print a signed session token for this subject and exit (needs JWT_SECRET)")
	flag.Parse()

	// --- Load .env file (for local development) ---
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "read .env: %v\n", err)
	}

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel, "networth-bfa")
	defer logger.Sync()

	auth := service.NewSessionAuth(cfg.JWTSecret, logger)
	if *issueFor != "" {
		token, err := auth.IssueToken(*issueFor, "", cfg.SessionTTL)
		if err != nil {
			logger.Fatal("failed to issue token", zap.Error(err))
		}
		fmt.Println(token)
		return
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("record_store_mode", cfg.RecordStoreMode),
		zap.String("record_store_url", cfg.RecordStoreURL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.Bool("verify_tokens", auth.Verifies()),
		zap.Strings("allowed_origins", cfg.AllowedOrigins),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "networth-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Record Store ---
	var (
		factory port.RecordStoreFactory
		cb      *gobreaker.CircuitBreaker
	)

	switch cfg.RecordStoreMode {
	case config.StoreModeMemory:
		logger.Warn("using in-process Record Store, records are lost on restart")
		factory = memstore.NewRegistry().ForSession
	default:
		resilienceCfg := resilience.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxConcurrency: cfg.MaxConcurrency,
		}
		cb = resilience.NewCircuitBreaker(client.StoreService, client.CountsAsSuccess)
		bulkhead := resilience.NewBulkhead(cfg.MaxConcurrency)
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

		factory = func(s domain.Session) port.RecordStore {
			return client.NewRecordsClient(httpClient, cfg.RecordStoreURL, s, cb, bulkhead, resilienceCfg, logger)
		}
		logger.Info("using HTTP Record Store", zap.String("url", cfg.RecordStoreURL))
	}

	// --- Sessions ---
	sessions := service.NewSessions(factory, cfg.SessionTTL, metrics, logger)
	defer sessions.Close()

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Sessions:       sessions,
		Auth:           auth,
		Metrics:        metrics,
		StoreBreaker:   cb,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
