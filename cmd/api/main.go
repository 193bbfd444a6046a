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

	logger.Info("Starting pnl-indexer API",
		zap.Int("port", cfg.API.Port),
	)

	// Connect to database
	db, err := database.NewPostgresDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Connect to Redis cache (optional)
	var redisCache *cache.RedisCache
	redisCache, err = cache.NewRedisCache(cfg.Redis, cfg.API.CacheTTL, logger)
	if err != nil {
		logger.Warn("Failed to connect to Redis, running without cache", zap.Error(err))
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	// Dial the provider pool for token metadata lookups
	pool, err := buildProviderPool(cfg.Providers, logger)
	if err != nil {
		logger.Fatal("Failed to build provider pool", zap.Error(err))
	}
	defer pool.Close()

	// Create repositories
	tokenRepo := database.NewTokenRepo(db.DB())
	tradeRepo := database.NewTradeRepo(db.DB())
	positionRepo := database.NewPositionRepo(db.DB())
	registrationRepo := database.NewRegistrationRepo(db.DB())

	// Create services
	tradeService := services.NewTradeService(tradeRepo, redisCache, logger)
	positionService := services.NewPositionService(positionRepo, tradeRepo, redisCache, logger)
	tokenService := services.NewTokenService(tokenRepo, pool, redisCache, logger)
	registrationService := services.NewRegistrationService(registrationRepo, redisCache, logger)

	// Create handlers
	tradeHandler := handlers.NewTradeHandler(tradeService, logger)
	positionHandler := handlers.NewPositionHandler(positionService, logger)
	tokenHandler := handlers.NewTokenHandler(tokenService, logger)
	registrationHandler := handlers.NewRegistrationHandler(registrationService, logger)
	walletHandler := handlers.NewWalletHandler(pool, logger)

	var cacheChecker handlers.HealthChecker
	if redisCache != nil {
		cacheChecker = redisCache
	}
	healthHandler := handlers.NewHealthHandler(db, cacheChecker)

	// Setup router
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RateLimiter(cfg.API.RateLimitRPS))

	// Health endpoints (no rate limiting)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/live", healthHandler.Live)
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		tradeHandler.RegisterRoutes(r)
		positionHandler.RegisterRoutes(r)
		tokenHandler.RegisterRoutes(r)
		registrationHandler.RegisterRoutes(r)
		walletHandler.RegisterRoutes(r)
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	// Run server in goroutine
	go func() {
		logger.Info("API server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Received shutdown signal, shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	logger.Info("Server stopped")
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
