package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// AI gateway
	GatewayURL            string
	GatewayTimeout        time.Duration
	GatewayMaxRetries     int
	GatewayBackoff        time.Duration
	GatewayMaxConcurrency int
	GatewaySigningSecret  string // empty: no bearer token on gateway calls
	GatewayTokenTTL       time.Duration

	// Inbound API auth; empty disables the JWT middleware.
	APIJWTSecret string

	// Evidence store
	DBPath            string // empty: incidents are not persisted
	EvidenceRetention time.Duration
	RetentionSchedule string

	// Streaming log ingest; no brokers disables the consumer.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string

	// Draft export
	DraftFromAddress string

	// Cache
	CacheTTL time.Duration

	// Batch analysis
	BatchConcurrency int

	// Minimum payment rule
	MinPaymentFloor   decimal.Decimal
	MinPaymentPercent decimal.Decimal

	// Observability
	OTLPEndpoint string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		GatewayURL:            getEnv("GATEWAY_URL", "http://localhost:8090"),
		GatewayTimeout:        getEnvDuration("GATEWAY_TIMEOUT", 20*time.Second),
		GatewayMaxRetries:     getEnvInt("GATEWAY_MAX_RETRIES", 0),
		GatewayBackoff:        getEnvDuration("GATEWAY_BACKOFF", 200*time.Millisecond),
		GatewayMaxConcurrency: getEnvInt("GATEWAY_MAX_CONCURRENCY", 8),
		GatewaySigningSecret:  getEnv("GATEWAY_SIGNING_SECRET", ""),
		GatewayTokenTTL:       getEnvDuration("GATEWAY_TOKEN_TTL", 2*time.Minute),

		APIJWTSecret: getEnv("API_JWT_SECRET", ""),

		DBPath:            getEnv("DB_PATH", ""),
		EvidenceRetention: getEnvDuration("EVIDENCE_RETENTION", 90*24*time.Hour),
		RetentionSchedule: getEnv("EVIDENCE_RETENTION_SCHEDULE", "15 3 * * *"),

		KafkaBrokers: getEnvList("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "device-logs"),
		KafkaGroup:   getEnv("KAFKA_GROUP", "dispute-bfa"),

		DraftFromAddress: getEnv("DRAFT_FROM_ADDRESS", "disputes@example.com"),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		BatchConcurrency: getEnvInt("BATCH_CONCURRENCY", 4),

		MinPaymentFloor:   getEnvDecimal("MIN_PAYMENT_FLOOR", decimal.NewFromInt(25)),
		MinPaymentPercent: getEnvDecimal("MIN_PAYMENT_PERCENT", decimal.RequireFromString("0.02")),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
