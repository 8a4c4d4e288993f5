package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/haggle-hub/haggle-hub/internal/api/http"
	"github.com/haggle-hub/haggle-hub/internal/application/history"
	"github.com/haggle-hub/haggle-hub/internal/application/negotiation"
	"github.com/haggle-hub/haggle-hub/internal/application/notification"
	"github.com/haggle-hub/haggle-hub/internal/config"
	domainNotification "github.com/haggle-hub/haggle-hub/internal/domain/notification"
	"github.com/haggle-hub/haggle-hub/internal/domain/offer"
	"github.com/haggle-hub/haggle-hub/internal/domain/policy"
	"github.com/haggle-hub/haggle-hub/internal/infrastructure/postgres"
	"github.com/haggle-hub/haggle-hub/internal/infrastructure/redis"
	"github.com/haggle-hub/haggle-hub/internal/infrastructure/sqlite"
	"github.com/haggle-hub/haggle-hub/internal/infrastructure/sse"
	"github.com/haggle-hub/haggle-hub/internal/infrastructure/telemetry"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store error: %v", err)
	}
	defer store.Close()

	// infrastructure
	sseHub := sse.NewHub(logger)
	publishers := []domainNotification.Publisher{sseHub}
	if cfg.RedisAddr != "" {
		redisPub := redis.NewPublisher(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
		defer redisPub.Close()
		if err := redisPub.Ping(ctx); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable at startup")
		}
		publishers = append(publishers, redisPub)
	}
	tel, err := telemetry.NewGlobal()
	if err != nil {
		log.Fatalf("telemetry error: %v", err)
	}
	amountRule, err := policy.NewAmountRule(cfg.Negotiation.AmountRule)
	if err != nil {
		log.Fatalf("policy error: %v", err)
	}

	// services
	historySvc := history.NewService(store, logger)
	notificationSvc := notification.NewService(store, publishers, logger)
	negotiationSvc := negotiation.NewService(store, notificationSvc, historySvc, logger,
		negotiation.WithAmountRule(amountRule),
		negotiation.WithExpiryPolicy(cfg.Negotiation.ExpiryPolicy()),
		negotiation.WithTelemetry(tel),
	)

	// API server
	apiServer := httpapi.NewServer(
		negotiationSvc,
		historySvc,
		notificationSvc,
		sseHub,
		httpapi.NewTokenAuth(cfg.JWTSecret, "haggle-hub"),
		httpapi.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		store.Ping,
		cfg.RequestTimeout,
		logger,
	)

	httpServer := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           apiServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// start server
	go func() {
		logger.Info().
			Str("addr", cfg.ServerAddr).
			Str("store", cfg.StoreDriver).
			Str("amountRule", amountRule.String()).
			Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	// Open streams end when the hub closes their channels.
	sseHub.Stop()
	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
	}
}

func openStore(ctx context.Context, cfg *config.Config) (offer.Store, error) {
	if cfg.StoreDriver == config.DriverSQLite {
		return sqlite.New(cfg.SQLitePath)
	}
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{
		MaxConns:        cfg.DBMaxConns,
		MaxConnLifetime: 30 * time.Minute,
	})
	if err != nil {
		return nil, err
	}
	if err := postgres.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
		pool.Close()
		return nil, err
	}
	return postgres.NewNegotiationStore(pool), nil
}
