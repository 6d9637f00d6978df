package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// ServerConfig captures all tunable parameters for the API process.
// Values come from the environment (optionally seeded from a .env file)
// with defaults that let the binary start locally.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	DatabaseURL   string
	DBMaxConns    int32
	RunMigrations bool

	FirebaseServiceAccountPath string
	FirebaseProjectID          string
	FirebaseDatabaseURL        string

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string
	RedisChannel  string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string

	AMQPURL      string
	AMQPExchange string

	PaymentProvider   string
	RazorpayKeyID     string
	RazorpayKeySecret string
	StripeAPIKey      string
	PaymentCurrency   string

	AdminRequireRole   bool
	CORSAllowedOrigins []string

	LogLevel string
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:                   ":4000",
		ReadTimeout:                5 * time.Second,
		WriteTimeout:               10 * time.Second,
		IdleTimeout:                120 * time.Second,
		ShutdownTimeout:            15 * time.Second,
		DBMaxConns:                 10,
		FirebaseServiceAccountPath: "./serviceAccountKey.json",
		RedisGeoKey:                "drivers_geo",
		RedisChannel:               "driver-updates",
		KafkaTopic:                 "driver-availability",
		KafkaGroup:                 "driver-hiring-relay",
		AMQPExchange:               "driver-availability",
		PaymentProvider:            "razorpay",
		PaymentCurrency:            "INR",
		CORSAllowedOrigins:         []string{"*"},
		LogLevel:                   "info",
	}
}

// LoadServerConfig reads .env (if present) and the environment. All parse
// errors are reported together.
func LoadServerConfig() (ServerConfig, error) {
	_ = godotenv.Load()

	cfg := defaultServerConfig()
	var errs []error

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		if _, err := cast.ToUint16E(port); err != nil {
			errs = append(errs, fmt.Errorf("invalid PORT: %w", err))
		} else {
			cfg.HTTPAddr = ":" + port
		}
	}
	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	setInt32FromEnv(&cfg.DBMaxConns, "DB_MAX_CONNS", &errs)
	setBoolFromEnv(&cfg.RunMigrations, "MIGRATE", &errs)

	setStringFromEnv(&cfg.FirebaseServiceAccountPath, "FIREBASE_SERVICE_ACCOUNT_PATH")
	cfg.FirebaseProjectID = strings.TrimSpace(os.Getenv("FIREBASE_PROJECT_ID"))
	cfg.FirebaseDatabaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("FIREBASE_DATABASE_URL")), "/")

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")
	setStringFromEnv(&cfg.RedisChannel, "REDIS_CHANNEL")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")

	cfg.AMQPURL = strings.TrimSpace(os.Getenv("AMQP_URL"))
	setStringFromEnv(&cfg.AMQPExchange, "AMQP_EXCHANGE")

	if v := strings.TrimSpace(os.Getenv("PAYMENT_PROVIDER")); v != "" {
		cfg.PaymentProvider = strings.ToLower(v)
	}
	cfg.RazorpayKeyID = os.Getenv("RAZORPAY_KEY_ID")
	cfg.RazorpayKeySecret = os.Getenv("RAZORPAY_KEY_SECRET")
	cfg.StripeAPIKey = os.Getenv("STRIPE_API_KEY")
	if v := strings.TrimSpace(os.Getenv("PAYMENT_CURRENCY")); v != "" {
		cfg.PaymentCurrency = strings.ToUpper(v)
	}

	setBoolFromEnv(&cfg.AdminRequireRole, "ADMIN_REQUIRE_ROLE", &errs)
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.CORSAllowedOrigins = splitAndTrim(origins)
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	switch cfg.PaymentProvider {
	case "razorpay", "stripe":
	default:
		errs = append(errs, fmt.Errorf("PAYMENT_PROVIDER must be razorpay or stripe, got %q", cfg.PaymentProvider))
	}
	if cfg.DBMaxConns <= 0 {
		errs = append(errs, fmt.Errorf("DB_MAX_CONNS must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := cast.ToDurationE(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setInt32FromEnv(target *int32, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := cast.ToInt32E(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setBoolFromEnv(target *bool, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		b, err := cast.ToBoolE(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = b
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

// RelayConfig drives cmd/relay, which replays Kafka availability events
// into the Redis and Firebase mirrors.
type RelayConfig struct {
	MetricsAddr   string
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaGroup    string
	RetryAttempts int
	RetryDelay    time.Duration

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string
	RedisChannel  string

	FirebaseServiceAccountPath string
	FirebaseDatabaseURL        string

	LogLevel string
}

func LoadRelayConfig() (RelayConfig, error) {
	_ = godotenv.Load()

	cfg := RelayConfig{
		MetricsAddr:                ":2112",
		KafkaBrokers:               []string{"localhost:9092"},
		KafkaTopic:                 "driver-availability",
		KafkaGroup:                 "driver-hiring-relay",
		RetryAttempts:              3,
		RetryDelay:                 200 * time.Millisecond,
		RedisGeoKey:                "drivers_geo",
		RedisChannel:               "driver-updates",
		FirebaseServiceAccountPath: "./serviceAccountKey.json",
		LogLevel:                   "info",
	}
	var errs []error

	setStringFromEnv(&cfg.MetricsAddr, "RELAY_METRICS_ADDR")
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")
	if v := os.Getenv("RELAY_RETRY_ATTEMPTS"); v != "" {
		n, err := cast.ToIntE(v)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("RELAY_RETRY_ATTEMPTS must be a positive integer, got %q", v))
		} else {
			cfg.RetryAttempts = n
		}
	}
	setDurationFromEnv(&cfg.RetryDelay, "RELAY_RETRY_DELAY", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")
	setStringFromEnv(&cfg.RedisChannel, "REDIS_CHANNEL")

	setStringFromEnv(&cfg.FirebaseServiceAccountPath, "FIREBASE_SERVICE_ACCOUNT_PATH")
	cfg.FirebaseDatabaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("FIREBASE_DATABASE_URL")), "/")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if cfg.RedisAddr == "" && cfg.FirebaseDatabaseURL == "" {
		errs = append(errs, errors.New("relay needs REDIS_ADDR or FIREBASE_DATABASE_URL"))
	}
	return cfg, errors.Join(errs...)
}

// DashboardConfig drives cmd/dashboard.
type DashboardConfig struct {
	Addr       string
	APIBaseURL string
	Token      string
	LogLevel   string
}

func LoadDashboardConfig() DashboardConfig {
	_ = godotenv.Load()

	cfg := DashboardConfig{Addr: ":3000", APIBaseURL: "http://localhost:4000", LogLevel: "info"}
	setStringFromEnv(&cfg.Addr, "DASHBOARD_ADDR")
	setStringFromEnv(&cfg.APIBaseURL, "API_BASE_URL")
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	cfg.Token = strings.TrimSpace(os.Getenv("DASHBOARD_TOKEN"))
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	return cfg
}
