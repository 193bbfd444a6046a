package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tokenarena/pnl-indexer/internal/application/services"
	"github.com/tokenarena/pnl-indexer/internal/config"
	"github.com/tokenarena/pnl-indexer/internal/infrastructure/cache"
	"github.com/tokenarena/pnl-indexer/internal/infrastructure/database"
	"github.com/tokenarena/pnl-indexer/internal/infrastructure/gateway"
	"github.com/tokenarena/pnl-indexer/internal/infrastructure/swapfeed"
	"github.com/tokenarena/pnl-indexer/internal/presentation/handlers"
	"github.com/tokenarena/pnl-indexer/internal/presentation/middleware"
)

func main() {
	// Local development convenience; a missing .env is not an error
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.Log.Level)
	defer logger.Sync()

	logger.Info("Starting pnl-indexer",
		zap.Strings("rpc_urls", cfg.Providers.RPCURLs),
		zap.String("swap_feed", cfg.SwapFeed.BaseURL),
		zap.Int("workers", cfg.Indexer.WorkerCount),
	)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database and apply schema
	db, err := database.NewPostgresDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to ensure schema", zap.Error(err))
	}

	// Connect to Redis cache (optional, used for read-path invalidation)
	var redisCache *cache.RedisCache
	redisCache, err = cache.NewRedisCache(cfg.Redis, cfg.API.CacheTTL, logger)
	if err != nil {
		logger.Warn("Failed to connect to Redis, running without cache", zap.Error(err))
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	// Dial the chain provider pool
	pool, err := buildProviderPool(cfg.Providers, logger)
	if err != nil {
		logger.Fatal("Failed to build provider pool", zap.Error(err))
	}
	defer pool.Close()

	// Swap feed client
	feed := swapfeed.NewClient(cfg.SwapFeed, logger)

	// Create repositories
	tokenRepo := database.NewTokenRepo(db.DB())
	tradeRepo := database.NewTradeRepo(db.DB())
	positionRepo := database.NewPositionRepo(db.DB())
	walletRepo := database.NewWalletRepo(db.DB())
	registrationRepo := database.NewRegistrationRepo(db.DB())

	// Create services
	accountingService := services.NewAccountingService(tradeRepo, positionRepo, redisCache, logger)
	tracker := services.NewJobTracker(cfg.Indexer.TrackerCapacity)
	indexingService := services.NewIndexingService(
		feed,
		pool,
		accountingService,
		tokenRepo,
		tradeRepo,
		walletRepo,
		registrationRepo,
		tracker,
		redisCache,
		cfg.Indexer,
		logger,
	)

	// Start the worker pool
	indexingService.Start(ctx)

	// Trigger and observability endpoints
	indexHandler := handlers.NewIndexHandler(indexingService, tracker, pool, logger)

	var cacheChecker handlers.HealthChecker
	if redisCache != nil {
		cacheChecker = redisCache
	}
	healthHandler := handlers.NewHealthHandler(db, cacheChecker)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/live", healthHandler.Live)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		indexHandler.RegisterRoutes(r)
	})

	addr := fmt.Sprintf(":%d", cfg.Indexer.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	go func() {
		logger.Info("Indexer server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Received shutdown signal, stopping indexer...")

	// Stop accepting triggers first, then drain running jobs
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Indexer.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	indexingService.Stop()

	logger.Info("Indexer stopped")
}

// buildProviderPool dials every configured RPC endpoint. Endpoints that fail
// to dial are logged and skipped; at least one must survive.
func buildProviderPool(cfg config.ProviderConfig, logger *zap.Logger) (*gateway.ProviderPool, error) {
	providers := make([]gateway.ChainProvider, 0, len(cfg.RPCURLs))
	for _, rawURL := range cfg.RPCURLs {
		provider, err := gateway.NewRPCProvider(rawURL, cfg.ChainID, cfg.DialTimeout)
		if err != nil {
			logger.Warn("Skipping unreachable provider", zap.Error(err))
			continue
		}
		providers = append(providers, provider)
	}

	return gateway.NewProviderPool(providers, gateway.Strategy(cfg.Strategy), cfg.CallTimeout, logger)
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, _ := config.Build()
	return logger
}
