package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/taxi-backend/internal/auth"
	"github.com/example/taxi-backend/internal/config"
	"github.com/example/taxi-backend/internal/dispatch"
	"github.com/example/taxi-backend/internal/httpapi"
	"github.com/example/taxi-backend/internal/ingest"
	"github.com/example/taxi-backend/internal/logging"
	"github.com/example/taxi-backend/internal/payments"
	"github.com/example/taxi-backend/internal/ratelimit"
	"github.com/example/taxi-backend/internal/rides"
	"github.com/example/taxi-backend/internal/sharedrides"
	"github.com/example/taxi-backend/internal/store"
)

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := store.NewMemory()
	if cfg.MongoURI != "" {
		mongoStore, closeFn, err := store.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			logger.Error("mongo connect failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := closeFn(closeCtx); err != nil {
				logger.Warn("mongo close failed", "error", err)
			}
		}()
		st = mongoStore
		logger.Info("using mongo store", "db", cfg.MongoDB)
	} else {
		logger.Warn("MONGO_URI not set, using in-memory store")
	}

	var chain auth.Chain
	var tokens *auth.TokenService
	if cfg.JWTSecret != "" {
		tokens = auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
		chain = append(chain, tokens)
	}
	if cfg.AuthVerifyURL != "" {
		chain = append(chain, auth.NewFederatedVerifier(cfg.AuthVerifyURL))
	}

	var limiter ratelimit.Limiter
	if cfg.RedisAddr != "" {
		limiter = ratelimit.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RateLimitWindow, cfg.RateLimitBudget)
		logger.Info("rate limiting via redis", "addr", cfg.RedisAddr)
	} else {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitWindow, cfg.RateLimitBudget)
	}

	var events ingest.Publisher = ingest.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		producer := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Warn("kafka close failed", "error", err)
			}
		}()
		events = producer
		logger.Info("publishing events to kafka", "topic", cfg.KafkaTopic)
	}

	var gateway payments.Gateway
	if cfg.StripeAPIKey != "" {
		gateway = payments.NewStripeGateway(cfg.StripeAPIKey)
	} else {
		logger.Warn("STRIPE_API_KEY not set, payment intents are recorded without a gateway")
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		logger.Error("upload dir", "error", err)
		os.Exit(1)
	}

	registry := dispatch.NewWSRegistry(logger)

	srv := httpapi.NewServer(httpapi.Deps{
		Store:         st,
		Rides:         rides.NewService(st, events, registry, logger),
		Shared:        sharedrides.NewService(st, logger),
		Payments:      payments.NewService(st, gateway, logger),
		Tokens:        tokens,
		Verifier:      chain,
		Limiter:       limiter,
		Registry:      registry,
		Events:        events,
		Logger:        logger,
		UploadDir:     cfg.UploadDir,
		WebhookSecret: cfg.StripeWebhookSecret,
	})

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
			os.Exit(1)
		}
	}
	logger.Info("server stopped")
}
