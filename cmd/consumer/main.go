// The consumer applies driver location events published by the API
// (and by driver apps directly) to the user store, so nearest-driver
// queries see fresh positions even when updates arrive out of band.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/example/taxi-backend/internal/config"
	"github.com/example/taxi-backend/internal/logging"
	"github.com/example/taxi-backend/internal/models"
	"github.com/example/taxi-backend/internal/store"
)

var (
	msgsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taxi_consumer_messages_consumed_total",
		Help: "Total driver location messages consumed",
	})
	msgsInvalid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taxi_consumer_messages_invalid_total",
		Help: "Total messages that failed to decode",
	})
	storeUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taxi_consumer_store_updates_total",
		Help: "Total successful store updates",
	})
	storeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taxi_consumer_store_errors_total",
		Help: "Total store updates that failed after retries",
	})
)

func main() {
	cfg, err := config.LoadConsumerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := store.NewMemory()
	ready := func(context.Context) error { return nil }
	if cfg.MongoURI != "" {
		mongoStore, closeFn, err := store.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			logger.Error("mongo connect failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = closeFn(closeCtx)
		}()
		st = mongoStore
		ready = func(ctx context.Context) error {
			_, err := st.Users.FindByPhone(ctx, "readiness-probe")
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}
	} else {
		logger.Warn("MONGO_URI not set, applying updates to an in-memory store")
	}

	go serveMetrics(cfg.MetricsAddr, ready, logger)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaTopic,
		GroupID:  cfg.GroupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer func() { _ = reader.Close() }()

	logger.Info("consumer started", "topic", cfg.KafkaTopic, "group", cfg.GroupID, "brokers", cfg.KafkaBrokers)

	updater := &storeUpdater{users: st.Users}
	run(ctx, reader, updater, logger)
	logger.Info("consumer stopped")
}

func serveMetrics(addr string, ready func(context.Context) error, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := ready(r.Context()); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	logger.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

func run(ctx context.Context, reader messageReader, updater driverUpdater, logger *slog.Logger) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("kafka read failed", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
		msgsConsumed.Inc()

		var ev models.DriverEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil || ev.DriverID == "" {
			msgsInvalid.Inc()
			logger.Warn("invalid driver event", "error", err, "offset", m.Offset)
			continue
		}

		if err := applyWithRetry(ctx, updater, ev, 3, 200*time.Millisecond); err != nil {
			storeErrors.Inc()
			logger.Warn("driver update failed", "driver_id", ev.DriverID, "error", err)
			continue
		}
		storeUpdates.Inc()
	}
}

// driverUpdater is the slice of the store the consumer needs. Tests
// substitute a fake.
type driverUpdater interface {
	Apply(ctx context.Context, ev models.DriverEvent) error
}

type storeUpdater struct {
	users store.Users
}

func (u *storeUpdater) Apply(ctx context.Context, ev models.DriverEvent) error {
	d, err := u.users.Get(ctx, ev.DriverID)
	if err != nil {
		return err
	}
	now := time.Now()
	d.CurrentLocation = &models.DriverLocation{GeoPoint: ev.Location, UpdatedAt: now}
	d.IsOnline = ev.IsOnline
	if ev.Rating > 0 {
		d.Rating = ev.Rating
	}
	d.UpdatedAt = now
	return u.users.Put(ctx, d)
}

func applyWithRetry(ctx context.Context, updater driverUpdater, ev models.DriverEvent, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = updater.Apply(ctx, ev); err == nil {
			return nil
		}
		// Unknown drivers never resolve by retrying.
		if errors.Is(err, store.ErrNotFound) || ctx.Err() != nil {
			return err
		}
		if i < attempts-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}
