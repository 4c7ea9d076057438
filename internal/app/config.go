package app

import (
	"fmt"
	"os"
	"strconv"
)

// Поддерживаемые драйверы хранилища заказов.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Поддерживаемые backend-ы idempotency-хранилища.
const (
	IdempotencyBackendMemory = "memory"
	IdempotencyBackendRedis  = "redis"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	IdempotencyBackend string
	RedisAddr          string

	// Пустой base URL означает использование mock-сервиса.
	CatalogBaseURL string
	PaymentBaseURL string

	Currency          string
	StrictTransitions bool

	KafkaBrokers string
	KafkaGroupID string
}

// DefaultConfig возвращает конфигурацию для локального запуска:
// in-memory хранилища и mock-коллабораторы.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8080",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		IdempotencyBackend:  IdempotencyBackendMemory,
		Currency:            "usd",
		KafkaGroupID:        "orders-ms",
	}
}

// LoadConfigFromEnv читает конфигурацию из ORDERS_* переменных окружения
// поверх значений по умолчанию.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	setString(&cfg.HTTPAddr, "ORDERS_HTTP_ADDR")
	setString(&cfg.MetricsAddr, "ORDERS_METRICS_ADDR")
	setString(&cfg.StorageDriver, "ORDERS_STORAGE_DRIVER")
	setString(&cfg.PostgresDSN, "ORDERS_POSTGRES_DSN")
	setString(&cfg.IdempotencyBackend, "ORDERS_IDEMPOTENCY_BACKEND")
	setString(&cfg.RedisAddr, "ORDERS_REDIS_ADDR")
	setString(&cfg.CatalogBaseURL, "ORDERS_CATALOG_BASE_URL")
	setString(&cfg.PaymentBaseURL, "ORDERS_PAYMENT_BASE_URL")
	setString(&cfg.Currency, "ORDERS_CURRENCY")
	setString(&cfg.KafkaBrokers, "ORDERS_KAFKA_BROKERS")
	setString(&cfg.KafkaGroupID, "ORDERS_KAFKA_GROUP_ID")

	if err := setBool(&cfg.PostgresAutoMigrate, "ORDERS_POSTGRES_AUTO_MIGRATE"); err != nil {
		return Config{}, err
	}
	if err := setBool(&cfg.StrictTransitions, "ORDERS_STRICT_TRANSITIONS"); err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

// Validate проверяет согласованность конфигурации.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres storage driver requires ORDERS_POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}

	switch c.IdempotencyBackend {
	case IdempotencyBackendMemory:
	case IdempotencyBackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis idempotency backend requires ORDERS_REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown idempotency backend %q", c.IdempotencyBackend)
	}

	return nil
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setBool(dst *bool, key string) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = value
	return nil
}
