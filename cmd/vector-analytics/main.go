package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/radiusdt/vector-analytics/internal/config"
	"github.com/radiusdt/vector-analytics/internal/database"
	"github.com/radiusdt/vector-analytics/internal/geo"
	"github.com/radiusdt/vector-analytics/internal/httpserver"
	"github.com/radiusdt/vector-analytics/internal/metrics"
	"github.com/radiusdt/vector-analytics/internal/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := middleware.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting Vector-Analytics",
		zap.String("env", cfg.Server.Env),
		zap.String("addr", cfg.Server.Addr),
	)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer connectCancel()

	// Try to connect to PostgreSQL
	db, err := database.NewPostgresDB(connectCtx, cfg.Database, logger)
	if err != nil {
		logger.Warn("PostgreSQL not available, using in-memory storage", zap.Error(err))
		db = nil
	} else {
		defer db.Close()
		logger.Info("connected to PostgreSQL")
	}

	// Try to connect to Redis
	redis, err := database.NewRedisDB(connectCtx, cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis not available, realtime counters disabled", zap.Error(err))
		redis = nil
	} else {
		defer redis.Close()
		logger.Info("connected to Redis")
	}

	// Try to connect to ClickHouse
	var archive *database.ClickHouseDB
	if cfg.Archive.Enabled {
		archive, err = database.NewClickHouseDB(connectCtx, cfg.Archive, logger)
		if err != nil {
			logger.Warn("ClickHouse not available, event archiving disabled", zap.Error(err))
			archive = nil
		} else {
			defer archive.Close()
			logger.Info("connected to ClickHouse")
		}
	}

	// Open the geo database for archive enrichment
	var resolver *geo.Resolver
	if cfg.Geo.Enabled {
		resolver, err = geo.NewResolver(cfg.Geo.DatabasePath, logger)
		if err != nil {
			logger.Warn("geo database not available, archiving without country", zap.Error(err))
			resolver = nil
		} else {
			defer resolver.Close()
		}
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// Create HTTP server
	deps := &httpserver.Dependencies{
		DB:      db,
		Redis:   redis,
		Archive: archive,
		Geo:     resolver,
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
	}

	handler := httpserver.NewServer(deps)

	// Middleware chain, outermost first: recovery, logging, rate limit, auth
	rateLimit := middleware.NewRateLimitMiddleware(cfg.RateLimit, logger)
	rateLimit.SetMetrics(m)

	auth := middleware.NewAuthMiddleware(cfg.Auth, logger)
	logging := middleware.NewLoggingMiddleware(logger)
	recovery := middleware.NewRecoveryMiddleware(logger)

	handler = auth.Handler(handler)
	handler = rateLimit.Handler(handler)
	handler = logging.Handler(handler)
	handler = recovery.Handler(handler)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
