package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/graysky/push-notifs/internal/accounts"
	"github.com/graysky/push-notifs/internal/bluesky"
	"github.com/graysky/push-notifs/internal/cache"
	"github.com/graysky/push-notifs/internal/config"
	"github.com/graysky/push-notifs/internal/firehose"
	"github.com/graysky/push-notifs/internal/httpserver"
	"github.com/graysky/push-notifs/internal/metrics"
	"github.com/graysky/push-notifs/internal/pipeline"
	"github.com/graysky/push-notifs/internal/postgres"
	"github.com/graysky/push-notifs/internal/push"
	"github.com/graysky/push-notifs/internal/ratelimit"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Optional local overrides; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	repo, err := postgres.NewRepository(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("create repository: %w", err)
	}
	defer repo.Close()
	logger.Info("connected to database")

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	kv := redis.NewClient(redisOpts)
	defer kv.Close()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Account registry: load a first snapshot before taking events.
	accountRegistry := accounts.NewRegistry(repo, logger)
	if err := accountRegistry.Refresh(ctx); err != nil {
		return fmt.Errorf("initial account refresh: %w", err)
	}
	logger.Info("account registry loaded", "accounts", accountRegistry.Len())
	go accountRegistry.Start(ctx, cfg.AccountRefreshInterval)

	client := bluesky.NewClient(cfg.AppViewURL, cfg.PLCDirectoryURL)
	enrichment := cache.New(kv, client)
	limiter := ratelimit.New(kv, cfg.RateLimit, cfg.RateLimitWindow)
	queue := push.NewQueue(kv)

	// Push sender and receipt reconciler.
	gateway := push.NewGateway(cfg.ExpoURL, cfg.ExpoAccessToken)
	sender := push.NewSender(queue, gateway, accountRegistry, repo, collector, logger)
	senderDone := make(chan struct{})
	go func() {
		defer close(senderDone)
		sender.Start(ctx, cfg.QueueDrainInterval, cfg.ReceiptCheckInterval)
	}()

	// Notification pipeline fed by the firehose classifier.
	subscriber := firehose.NewSubscriber(cfg.FirehoseURL, accountRegistry, collector, logger, 0)
	go func() {
		if err := subscriber.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("firehose subscriber exited with error", "error", err)
		}
	}()

	pipe := pipeline.New(enrichment, limiter, queue, client, collector, logger, 0)
	go pipe.Run(ctx, subscriber.Candidates())

	// Admin HTTP server (health + metrics).
	server := httpserver.NewServer(cfg, registry, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started", "port", cfg.Port)

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	// Give the in-flight drain cycle a chance to finish.
	<-senderDone

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}
