package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	// Server
	Port        string
	Environment string
	CORSOrigins []string
	JWTSecret   string

	// Database
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSchema    string
	DBSSLMode   string
	DatabaseURL string

	// Draft store: "postgres" or "redis"
	DraftStore string
	RedisURL   string

	// Backend collaborators
	OrderAPIURL     string
	PaymentAPIURL   string
	BackendToken    string
	OrderAPITimeout time.Duration
	ProviderTimeout time.Duration
	Currency        string
	UseMockProvider bool

	// Checkout sessions
	SubmitRatePerMinute int
	SessionIdleTTL      time.Duration
	ApprovalTTL         time.Duration

	// Reconciliation
	ReconcileInterval time.Duration
	ReconcileAfter    time.Duration
	ReconcileBatch    int
	OrderLookup       bool

	// Observability
	LogLevel      string
	LogFormat     string
	EnableMetrics bool
}

func New() *Config {
	c := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		JWTSecret:   getEnv("JWT_SECRET", "change-me"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "checkout"),
		DBPassword: getEnv("DB_PASSWORD", "checkout"),
		DBName:     getEnv("DB_NAME", "checkout"),
		DBSchema:   getEnv("DB_SCHEMA", "public"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		DraftStore: getEnv("DRAFT_STORE", "postgres"),
		RedisURL:   getEnv("REDIS_URL", "localhost:6379"),

		OrderAPIURL:     getEnv("ORDER_API_URL", "http://localhost:5000/api/v1"),
		PaymentAPIURL:   getEnv("PAYMENT_API_URL", "http://localhost:5000/api/v1"),
		BackendToken:    getEnv("BACKEND_SERVICE_TOKEN", ""),
		OrderAPITimeout: getEnvAsDuration("ORDER_API_TIMEOUT", 10*time.Second),
		ProviderTimeout: getEnvAsDuration("PROVIDER_TIMEOUT", 15*time.Second),
		Currency:        strings.ToUpper(getEnv("CURRENCY", "INR")),
		UseMockProvider: getEnvAsBool("USE_MOCK_PROVIDERS", false),

		SubmitRatePerMinute: getEnvAsInt("SUBMIT_RATE_PER_MIN", 10),
		SessionIdleTTL:      getEnvAsDuration("SESSION_IDLE_TTL", 30*time.Minute),
		ApprovalTTL:         getEnvAsDuration("WALLET_APPROVAL_TTL", 10*time.Minute),

		ReconcileInterval: getEnvAsDuration("RECONCILE_INTERVAL", time.Minute),
		ReconcileAfter:    getEnvAsDuration("RECONCILE_AFTER", 5*time.Minute),
		ReconcileBatch:    getEnvAsInt("RECONCILE_BATCH", 50),
		OrderLookup:       getEnvAsBool("ORDER_LOOKUP_ENABLED", false),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
	}

	c.DatabaseURL = getEnv("DATABASE_URL", fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&search_path=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode, c.DBSchema,
	))

	return c
}

// Validate rejects combinations the service cannot start with.
func (c *Config) Validate() error {
	switch c.DraftStore {
	case "postgres", "redis":
	default:
		return fmt.Errorf("DRAFT_STORE must be postgres or redis, got %q", c.DraftStore)
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("CURRENCY must be an ISO 4217 code, got %q", c.Currency)
	}
	if c.IsProduction() && c.JWTSecret == "change-me" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if c.IsProduction() && c.UseMockProvider {
		return fmt.Errorf("USE_MOCK_PROVIDERS is not allowed in production")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var value int
	if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return valueStr == "true" || valueStr == "1"
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(valueStr)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
