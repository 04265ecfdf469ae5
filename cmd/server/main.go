// Package main provides the entry point for the kvcoord server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kneutral-org/kvcoord/internal/api"
	"github.com/kneutral-org/kvcoord/internal/config"
	"github.com/kneutral-org/kvcoord/internal/jobstatus"
	"github.com/kneutral-org/kvcoord/internal/kvstore"
	"github.com/kneutral-org/kvcoord/internal/logging"
	"github.com/kneutral-org/kvcoord/internal/metrics"
	"github.com/kneutral-org/kvcoord/internal/ratelimit"
)

const serviceName = "kvcoord"

func main() {
	cfg := config.Load()

	// Setup logger
	var logger zerolog.Logger
	if cfg.LogPretty {
		logger = logging.NewPrettyLogger(serviceName, cfg.LogLevel)
	} else {
		logger = logging.NewLogger(serviceName, cfg.LogLevel)
	}

	// Connect to Redis
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() { _ = client.Close() }()

	store := kvstore.NewRedisStore(client, kvstore.WithKeyPrefix(cfg.RedisKeyPrefix))

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := store.Ping(pingCtx); err != nil {
		// Keep serving; /health reports the outage and primitives fail per call.
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis is not reachable")
	}
	pingCancel()

	handlerOpts := []api.Option{
		api.WithWaitTimeout(cfg.JobWaitTimeout),
		api.WithReferenceTTL(cfg.ReferenceTTL),
	}

	// Job status comes from Postgres when configured
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open database")
		}
		defer func() { _ = db.Close() }()

		handlerOpts = append(handlerOpts, api.WithJobChecker(jobstatus.NewPostgresChecker(db)))
		logger.Info().Msg("job status backed by postgres")
	}

	// Setup Gin router
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.RequestLogger(logger))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		if err := store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	metrics.RegisterMetricsEndpoint(router)

	// API v1 routes
	limiter := ratelimit.NewActionRateLimiter(store, "api_request",
		ratelimit.WithExpiry(cfg.RateLimitWindow),
		ratelimit.WithLogger(logging.ComponentLogger(logger, "ratelimit")),
	)

	apiV1 := router.Group("/api/v1")
	apiV1.Use(ratelimit.Middleware(limiter, cfg.RateLimitThreshold, ratelimit.ClientIPKey, ratelimit.ForwardedUser, logger))
	apiV1.Use(api.PayloadLimit(api.DefaultMaxPayloadBytes, logger))

	handler := api.NewHandler(store, logger, handlerOpts...)
	handler.RegisterRoutes(apiV1)

	// Create server. The wait endpoint blocks for up to JobWaitTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.JobWaitTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited properly")
}
