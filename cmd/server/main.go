package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kmalyshev/topup-service/internal/adapters/engagement"
	"github.com/kmalyshev/topup-service/internal/adapters/postgres"
	"github.com/kmalyshev/topup-service/internal/config"
	"github.com/kmalyshev/topup-service/internal/gateways"
	"github.com/kmalyshev/topup-service/internal/gateways/freekassa"
	"github.com/kmalyshev/topup-service/internal/gateways/payeer"
	"github.com/kmalyshev/topup-service/internal/gateways/robokassa"
	"github.com/kmalyshev/topup-service/internal/gateways/unitpay"
	checkoutHandler "github.com/kmalyshev/topup-service/internal/handlers/checkout"
	webhookHandler "github.com/kmalyshev/topup-service/internal/handlers/webhook"
	"github.com/kmalyshev/topup-service/internal/services/settlement"
	"github.com/kmalyshev/topup-service/pkg/observability"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logger)
	defer logger.Sync()

	logger.Info("Starting top-up service",
		zap.String("version", "0.1.0"),
	)

	dbPool, err := initDatabase(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbPool.Close()

	logger.Info("Database connection established",
		zap.String("database", cfg.Database.Database),
	)

	db := postgres.NewDBExecutor(dbPool)
	paymentsRepo := postgres.NewPaymentRepository()
	ledgerRepo := postgres.NewLedgerRepository()

	unitpayAdapter, err := unitpay.New(cfg.Gateways.Unitpay, db, paymentsRepo, logger)
	if err != nil {
		logger.Fatal("Failed to initialize unitpay adapter", zap.Error(err))
	}
	freekassaAdapter, err := freekassa.New(cfg.Gateways.FreeKassa, db, paymentsRepo, logger)
	if err != nil {
		logger.Fatal("Failed to initialize freekassa adapter", zap.Error(err))
	}
	robokassaAdapter, err := robokassa.New(cfg.Gateways.Robokassa, db, paymentsRepo, logger)
	if err != nil {
		logger.Fatal("Failed to initialize robokassa adapter", zap.Error(err))
	}
	payeerAdapter, err := payeer.New(cfg.Gateways.Payeer, db, paymentsRepo, logger)
	if err != nil {
		logger.Fatal("Failed to initialize payeer adapter", zap.Error(err))
	}

	registry := gateways.NewRegistry(unitpayAdapter, freekassaAdapter, robokassaAdapter, payeerAdapter)

	settlementSvc := settlement.NewService(
		db,
		paymentsRepo,
		ledgerRepo,
		engagement.NewExperienceLogger(logger),
		engagement.NewSubscriptionLogger(logger),
		logger,
	)

	checkoutHdlr := checkoutHandler.NewHandler(db, registry, paymentsRepo, cfg.Frontend, logger)
	unitpayHdlr := webhookHandler.NewUnitpayHandler(unitpayAdapter, settlementSvc, logger)
	freekassaHdlr := webhookHandler.NewFreeKassaHandler(freekassaAdapter, settlementSvc, logger)
	robokassaHdlr := webhookHandler.NewRobokassaHandler(robokassaAdapter, settlementSvc, logger)
	payeerHdlr := webhookHandler.NewPayeerHandler(payeerAdapter, settlementSvc, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/topup", checkoutHdlr.CreateTopUp)
	mux.HandleFunc("GET /api/v1/payments/{invoice}", checkoutHdlr.GetPayment)
	mux.HandleFunc("GET /payments/success", checkoutHdlr.Success)
	mux.HandleFunc("GET /payments/fail", checkoutHdlr.Fail)
	mux.HandleFunc("GET /webhooks/unitpay", unitpayHdlr.Handle)
	mux.HandleFunc("POST /webhooks/freekassa", freekassaHdlr.Handle)
	mux.HandleFunc("POST /webhooks/robokassa", robokassaHdlr.Handle)
	mux.HandleFunc("POST /webhooks/payeer", payeerHdlr.Handle)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	healthChecker := observability.NewHealthChecker(dbPool)
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.HandleFunc("/health", healthChecker.HealthHandler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening",
			zap.Int("port", cfg.Server.Port),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("Metrics server listening",
			zap.Int("port", cfg.Server.MetricsPort),
		)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to serve metrics", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down servers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Metrics server shutdown error", zap.Error(err))
	}

	// Let in-flight post-commit side effects finish before the pool closes
	settlementSvc.WaitForSideEffects()

	logger.Info("Servers stopped")
}

// initLogger initializes the logger
func initLogger(cfg config.LoggerConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	if cfg.Development {
		zapCfg := zap.NewDevelopmentConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(level)
		logger, _ := zapCfg.Build()
		return logger
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	logger, _ := zapCfg.Build()
	return logger
}

// initDatabase initializes the PostgreSQL connection pool
func initDatabase(cfg *config.Config, logger *zap.Logger) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
