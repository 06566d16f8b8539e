package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ServiceName    = "pos-backend"
	ServiceVersion = "0.3.0"
)

type Config struct {
	HTTPPort    string
	DatabaseDSN string
	JWTSecret   string
	CORSOrigins string
	LogLevel    string

	// Postgres lock_timeout applied to every fulfillment transaction
	DBLockTimeout time.Duration

	KafkaBrokers    []string
	SaleEventsTopic string

	OtelEndpoint   string
	OtelAuthHeader string

	// A recipe without ingredients covers any batch shortfall when true
	EmptyRecipeFallback bool
}

func Load() *Config {
	cfg := &Config{
		HTTPPort:            getEnv("HTTP_PORT", "8080"),
		DatabaseDSN:         getEnv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=pos port=5432 sslmode=disable"),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		CORSOrigins:         getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DBLockTimeout:       getDuration("DB_LOCK_TIMEOUT", 5*time.Second),
		KafkaBrokers:        splitList(getEnv("KAFKA_BROKERS", "")),
		SaleEventsTopic:     getEnv("SALE_EVENTS_TOPIC", "pos.sale-completed"),
		OtelEndpoint:        getEnv("OTEL_ENDPOINT", ""),
		OtelAuthHeader:      getEnv("OTEL_AUTH_HEADER", ""),
		EmptyRecipeFallback: getBool("FULFILLMENT_EMPTY_RECIPE_FALLBACK", true),
	}

	if cfg.JWTSecret == "" {
		log.Fatal("[FATAL] JWT_SECRET is not set")
	}
	if len(cfg.JWTSecret) < 32 {
		log.Fatal("[FATAL] JWT_SECRET must be at least 32 characters long")
	}
	if cfg.DatabaseDSN == "host=localhost user=postgres password=postgres dbname=pos port=5432 sslmode=disable" {
		log.Println("[WARN] DATABASE_DSN is using the default value, set your own Postgres connection for production")
	}
	if cfg.CORSOrigins == "http://localhost:5173" {
		log.Println("[WARN] CORS_ALLOWED_ORIGINS is using the default value, set your own domain for production")
	}
	if len(cfg.KafkaBrokers) == 0 {
		log.Println("[WARN] KAFKA_BROKERS is empty, sale events will only be logged")
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[WARN] %s=%q is not a valid duration, using %s", key, v, def)
		return def
	}
	return d
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[WARN] %s=%q is not a valid boolean, using %t", key, v, def)
		return def
	}
	return b
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
