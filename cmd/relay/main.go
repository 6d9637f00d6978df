package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/example/driver-hiring/internal/auth"
	"github.com/example/driver-hiring/internal/config"
	"github.com/example/driver-hiring/internal/logging"
	"github.com/example/driver-hiring/internal/mirror"
)

var (
	eventsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "driver_hiring_relay",
		Name:      "events_consumed_total",
		Help:      "Availability events read from Kafka",
	})
	eventsInvalid = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "driver_hiring_relay",
		Name:      "events_invalid_total",
		Help:      "Messages that did not decode to an availability event",
	})
	eventsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "driver_hiring_relay",
		Name:      "events_applied_total",
		Help:      "Events written to every configured mirror",
	})
	applyErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "driver_hiring_relay",
		Name:      "apply_errors_total",
		Help:      "Events dropped after exhausting retries",
	})
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadRelayConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sinks := mirror.NewFanout()
	ready := func(context.Context) error { return nil }

	if cfg.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer func() { _ = rc.Close() }()
		sinks.Add("redis", mirror.NewRedisMirror(mirror.NewRedisCommands(rc), cfg.RedisGeoKey, cfg.RedisChannel))
		ready = func(ctx context.Context) error { return rc.Ping(ctx).Err() }
	}
	if cfg.FirebaseDatabaseURL != "" {
		sa, err := auth.LoadServiceAccount(cfg.FirebaseServiceAccountPath)
		if err != nil {
			return err
		}
		app, err := auth.NewFirebaseApp(ctx, "", cfg.FirebaseDatabaseURL, sa)
		if err != nil {
			return err
		}
		dbc, err := app.Database(ctx)
		if err != nil {
			return fmt.Errorf("firebase database: %w", err)
		}
		sinks.Add("firebase", mirror.NewFirebaseMirror(mirror.NewRTDB(dbc)))
	}

	metrics := &http.Server{Addr: cfg.MetricsAddr, Handler: healthMux(ready), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("metrics/health listening", zap.String("addr", cfg.MetricsAddr))
		if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metrics.Shutdown(shutdownCtx)
	}()

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaTopic,
		GroupID:  cfg.KafkaGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer func() { _ = r.Close() }()

	logger.Info("relay consuming",
		zap.String("topic", cfg.KafkaTopic),
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("group", cfg.KafkaGroup),
		zap.Strings("sinks", sinks.Names()))

	return consume(ctx, r, sinks, cfg.RetryAttempts, cfg.RetryDelay, logger)
}

func healthMux(ready func(context.Context) error) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := ready(r.Context()); err != nil {
			http.Error(w, "redis not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	return mux
}

// MessageReader is satisfied by *kafka.Reader.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// consume reads until ctx is cancelled. Read errors back off exponentially
// up to 30s; undecodable messages are skipped.
func consume(ctx context.Context, r MessageReader, m mirror.Mirror, attempts int, delay time.Duration, logger *zap.Logger) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down relay")
				return nil
			}
			logger.Warn("kafka read error", zap.Error(err), zap.Duration("backoff", backoff))
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = time.Second
		eventsConsumed.Inc()

		ev, err := mirror.DecodeEvent(msg.Value)
		if err != nil {
			eventsInvalid.Inc()
			logger.Warn("invalid event", zap.Error(err), zap.Int64("offset", msg.Offset))
			continue
		}
		if err := applyWithRetry(ctx, m, ev, attempts, delay); err != nil {
			applyErrors.Inc()
			logger.Error("apply event failed", zap.Int64("driver_id", ev.DriverID), zap.Error(err))
			continue
		}
		eventsApplied.Inc()
	}
}

// applyWithRetry writes ev to m, doubling delay between failed attempts.
func applyWithRetry(ctx context.Context, m mirror.Mirror, ev mirror.Event, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = m.Update(ctx, ev.DriverID, ev.State); err == nil {
			return nil
		}
		if i == attempts-1 || !sleep(ctx, delay) {
			break
		}
		delay *= 2
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
