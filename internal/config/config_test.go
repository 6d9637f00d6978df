package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":4000" {
		t.Fatalf("expected :4000, got %s", cfg.HTTPAddr)
	}
	if cfg.PaymentProvider != "razorpay" || cfg.PaymentCurrency != "INR" {
		t.Fatalf("unexpected payment defaults: %s %s", cfg.PaymentProvider, cfg.PaymentCurrency)
	}
	if cfg.AdminRequireRole {
		t.Fatal("admin role check must default to off")
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadServerConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "5050")
	t.Setenv("HTTP_WRITE_TIMEOUT", "3s")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/driver?sslmode=disable")
	t.Setenv("DB_MAX_CONNS", "4")
	t.Setenv("MIGRATE", "true")
	t.Setenv("FIREBASE_DATABASE_URL", "https://demo.firebaseio.com/")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("PAYMENT_PROVIDER", "Stripe")
	t.Setenv("PAYMENT_CURRENCY", "usd")
	t.Setenv("ADMIN_REQUIRE_ROLE", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,https://admin.example.com")

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr != ":5050" {
		t.Fatalf("expected :5050, got %s", cfg.HTTPAddr)
	}
	if cfg.WriteTimeout != 3*time.Second {
		t.Fatalf("expected 3s write timeout, got %s", cfg.WriteTimeout)
	}
	if cfg.DBMaxConns != 4 || !cfg.RunMigrations {
		t.Fatalf("unexpected db settings: %d %v", cfg.DBMaxConns, cfg.RunMigrations)
	}
	if cfg.FirebaseDatabaseURL != "https://demo.firebaseio.com" {
		t.Fatalf("trailing slash not trimmed: %s", cfg.FirebaseDatabaseURL)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.PaymentProvider != "stripe" || cfg.PaymentCurrency != "USD" {
		t.Fatalf("unexpected payment settings: %s %s", cfg.PaymentProvider, cfg.PaymentCurrency)
	}
	if !cfg.AdminRequireRole || len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("unexpected admin/cors: %v %v", cfg.AdminRequireRole, cfg.CORSAllowedOrigins)
	}
}

func TestLoadServerConfigCollectsErrors(t *testing.T) {
	t.Setenv("HTTP_READ_TIMEOUT", "soon")
	t.Setenv("MIGRATE", "maybe")
	t.Setenv("PAYMENT_PROVIDER", "paypal")

	_, err := LoadServerConfig()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"HTTP_READ_TIMEOUT", "MIGRATE", "PAYMENT_PROVIDER"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %q", want, err.Error())
		}
	}
}

func TestLoadRelayConfig(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("KAFKA_BROKERS", "k1:9092")
	t.Setenv("RELAY_RETRY_ATTEMPTS", "5")
	t.Setenv("RELAY_RETRY_DELAY", "50ms")

	cfg, err := LoadRelayConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RetryAttempts != 5 || cfg.RetryDelay != 50*time.Millisecond {
		t.Fatalf("unexpected retry settings: %d %s", cfg.RetryAttempts, cfg.RetryDelay)
	}
	if cfg.MetricsAddr != ":2112" || cfg.KafkaGroup != "driver-hiring-relay" || cfg.KafkaBrokers[0] != "k1:9092" {
		t.Fatalf("unexpected relay config %+v", cfg)
	}
}

func TestLoadRelayConfigNeedsASink(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("FIREBASE_DATABASE_URL", "")
	t.Setenv("RELAY_RETRY_ATTEMPTS", "zero")

	_, err := LoadRelayConfig()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "RELAY_RETRY_ATTEMPTS") || !strings.Contains(err.Error(), "REDIS_ADDR") {
		t.Fatalf("expected both errors, got %v", err)
	}
}

func TestLoadDashboardConfig(t *testing.T) {
	cfg := LoadDashboardConfig()
	if cfg.Addr != ":3000" || cfg.APIBaseURL != "http://localhost:4000" || cfg.Token != "" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}

	t.Setenv("DASHBOARD_ADDR", ":8081")
	t.Setenv("API_BASE_URL", "https://api.example.com/")
	t.Setenv("DASHBOARD_TOKEN", "tok")
	cfg = LoadDashboardConfig()
	if cfg.Addr != ":8081" || cfg.APIBaseURL != "https://api.example.com" || cfg.Token != "tok" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}
