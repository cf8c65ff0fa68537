/**
 * @description
 * This is the main entry point for walletd, the wallet ledger API.
 * It loads configuration, connects to PostgreSQL, Redis and RabbitMQ, starts
 * the ledger reconciliation cron, and serves the wallet endpoints until a
 * termination signal arrives.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver and pool.
 * - github.com/redis/go-redis/v9: Mutation rate limiting.
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - pkg/rabbitmq: Wallet event publishing.
 */
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/transfa/wallet-desk/internal/api"
	"github.com/transfa/wallet-desk/internal/app"
	"github.com/transfa/wallet-desk/internal/config"
	"github.com/transfa/wallet-desk/internal/logging"
	"github.com/transfa/wallet-desk/internal/store"
	"github.com/transfa/wallet-desk/pkg/rabbitmq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file found, relying on environment variables")
	}

	cfg, err := config.LoadServerConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger = logger.With(zap.String("service", "walletd"))
	boot := logger.With(zap.String("component", "bootstrap"))

	if cfg.SessionJWTSecret == "" {
		boot.Fatal("session jwt secret must be configured", zap.String("env", "SESSION_JWT_SECRET"))
	}
	if cfg.DatabaseURL == "" {
		boot.Fatal("database url must be configured", zap.String("env", "DATABASE_URL"))
	}
	boot.Info("starting walletd", zap.String("port", cfg.ServerPort))

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		boot.Fatal("database url parse failed", zap.Error(err))
	}
	poolConfig.MaxConns = 20
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		boot.Fatal("database connection failed", zap.Error(err))
	}
	defer dbpool.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	err = store.Migrate(migrateCtx, dbpool)
	cancelMigrate()
	if err != nil {
		boot.Fatal("schema migration failed", zap.Error(err))
	}
	boot.Info("database connected")

	var publisher rabbitmq.Publisher = &rabbitmq.EventProducerFallback{Logger: logger}
	if cfg.RabbitMQURL == "" {
		boot.Warn("rabbitmq url missing; wallet events disabled", zap.String("env", "RABBITMQ_URL"))
	} else if producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, cfg.WalletEventsExchange, logger); err != nil {
		boot.Warn("rabbitmq producer unavailable; using fallback", zap.Error(err))
	} else {
		publisher = producer
		boot.Info("rabbitmq producer connected", zap.String("exchange", cfg.WalletEventsExchange))
	}
	defer publisher.Close()

	repository := store.NewPostgresRepository(dbpool)
	service := app.NewService(repository, publisher, cfg.DefaultCurrency, cfg.Location(), logger)

	if redisClient := connectRedis(cfg.RedisURL, boot); redisClient != nil {
		defer redisClient.Close()
		service.SetRateLimiter(app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix), cfg.MutationRateLimitPerMinute)
	}

	jobs := app.NewJobs(repository, publisher, logger)
	scheduler := app.NewScheduler(jobs, logger, cfg.ReconcileSchedule)
	if err := scheduler.Start(); err != nil {
		boot.Fatal("scheduler start failed", zap.Error(err))
	}

	handlers := api.NewWalletHandlers(service, cfg.CSRFSecret, logger)
	router := api.WalletRoutes(handlers, api.RouterOptions{
		JWTSecret:      cfg.SessionJWTSecret,
		AllowedOrigins: cfg.AllowedOrigins(),
		Logger:         logger.With(zap.String("component", "http")),
	})

	server := &http.Server{
		Addr:              ":" + strings.TrimPrefix(cfg.ServerPort, ":"),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server stopped unexpectedly", zap.String("component", "http"), zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown started", zap.String("component", "http"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", zap.String("component", "http"), zap.Error(err))
	}
	<-scheduler.Stop().Done()

	logger.Info("shutdown complete", zap.String("component", "http"))
}

// connectRedis returns nil when rate limiting cannot be enabled.
func connectRedis(redisURL string, boot *zap.Logger) *redis.Client {
	if redisURL == "" {
		boot.Warn("redis url missing; mutation rate limiting disabled", zap.String("env", "REDIS_URL"))
		return nil
	}
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		boot.Warn("redis url parse failed; mutation rate limiting disabled", zap.Error(err))
		return nil
	}
	client := redis.NewClient(options)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		boot.Warn("redis ping failed; mutation rate limiting disabled", zap.Error(err))
		client.Close()
		return nil
	}
	boot.Info("redis connected")
	return client
}
