package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	firebase "firebase.google.com/go/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/driver-hiring/internal/auth"
	"github.com/example/driver-hiring/internal/config"
	httpapi "github.com/example/driver-hiring/internal/http"
	"github.com/example/driver-hiring/internal/logging"
	"github.com/example/driver-hiring/internal/mirror"
	"github.com/example/driver-hiring/internal/payments"
	"github.com/example/driver-hiring/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadServerConfig()
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

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	// The key file is only required when the project id is not configured
	// or the Firebase mirror needs credentials. Without it tokens are
	// checked offline against Google's published certificates.
	projectID := cfg.FirebaseProjectID
	sa, err := auth.LoadServiceAccount(cfg.FirebaseServiceAccountPath)
	var app *firebase.App
	switch {
	case err == nil:
		if projectID == "" {
			projectID = sa.ProjectID
		}
		if app, err = auth.NewFirebaseApp(ctx, projectID, cfg.FirebaseDatabaseURL, sa); err != nil {
			return err
		}
	case projectID != "" && cfg.FirebaseDatabaseURL == "":
		logger.Warn("service account not loaded", zap.Error(err))
	default:
		return err
	}
	verifier, err := buildVerifier(ctx, app, projectID)
	if err != nil {
		return err
	}

	hub := mirror.NewHub(logger.Named("ws"), nil)
	fanout, closeMirrors, err := buildMirrors(ctx, cfg, app, hub, logger)
	if err != nil {
		return err
	}
	defer closeMirrors()

	gateway, err := buildGateway(cfg)
	if err != nil {
		return err
	}

	api := httpapi.NewServer(httpapi.Deps{
		Store:            store,
		Verifier:         verifier,
		Mirror:           fanout,
		Payments:         gateway,
		Hub:              hub,
		Logger:           logger,
		Currency:         cfg.PaymentCurrency,
		AdminRequireRole: cfg.AdminRequireRole,
		AllowedOrigins:   cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("driver-hiring listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.Strings("mirrors", fanout.Names()),
			zap.String("payment_provider", gateway.Provider()),
			zap.String("project_id", projectID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.ServerConfig, logger *zap.Logger) (storage.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		return storage.NewMemoryStore(), nil
	}
	if cfg.RunMigrations {
		if err := storage.Migrate(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		logger.Info("migrations applied")
	}
	return storage.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
}

// buildMirrors assembles the realtime sinks in write order. The returned
// func releases their clients.
func buildMirrors(ctx context.Context, cfg config.ServerConfig, app *firebase.App, hub *mirror.Hub, logger *zap.Logger) (*mirror.Fanout, func(), error) {
	fanout := mirror.NewFanout()
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.FirebaseDatabaseURL != "" {
		dbc, err := app.Database(ctx)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("firebase database: %w", err)
		}
		fanout.Add("firebase", mirror.NewFirebaseMirror(mirror.NewRTDB(dbc)))
	} else {
		logger.Warn("FIREBASE_DATABASE_URL not set, firebase mirror disabled")
	}

	if cfg.RedisAddr != "" {
		rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		closers = append(closers, func() { _ = rc.Close() })
		fanout.Add("redis", mirror.NewRedisMirror(mirror.NewRedisCommands(rc), cfg.RedisGeoKey, cfg.RedisChannel))
	}

	if len(cfg.KafkaBrokers) > 0 {
		km := mirror.NewKafkaMirror(mirror.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		closers = append(closers, func() { _ = km.Close() })
		fanout.Add("kafka", km)
	}

	if cfg.AMQPURL != "" {
		conn, ch, err := mirror.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = conn.Close() })
		fanout.Add("amqp", mirror.NewAMQPMirror(ch, cfg.AMQPExchange))
	}

	fanout.Add("ws", hub)
	return fanout, closeAll, nil
}

func buildVerifier(ctx context.Context, app *firebase.App, projectID string) (auth.Verifier, error) {
	if app == nil {
		v, err := auth.NewFirebaseVerifier(projectID, auth.NewCertSource(auth.GoogleCertsURL))
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth: %w", err)
	}
	return auth.NewSDKVerifier(client), nil
}

func buildGateway(cfg config.ServerConfig) (payments.Gateway, error) {
	switch cfg.PaymentProvider {
	case "stripe":
		if cfg.StripeAPIKey == "" {
			return nil, errors.New("STRIPE_API_KEY is required for the stripe provider")
		}
		return payments.NewStripeClient(cfg.StripeAPIKey), nil
	default:
		return payments.NewRazorpayClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret), nil
	}
}
