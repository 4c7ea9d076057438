package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders-ms/internal/domain"
	"github.com/vladislavdragonenkov/orders-ms/internal/service/catalog"
	"github.com/vladislavdragonenkov/orders-ms/internal/service/payment"
	"github.com/vladislavdragonenkov/orders-ms/internal/storage/memory"
	"github.com/vladislavdragonenkov/orders-ms/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/orders-ms/internal/storage/redis"
)

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	Repo            domain.OrderRepository
	Catalog         domain.ProductCatalog
	Payments        domain.PaymentGateway
	IdempotencyRepo domain.IdempotencyRepository
	Logger          *log.Entry

	store       *postgres.Store
	redisClient *goredis.Client
}

// NewDependencies создаёт и инициализирует зависимости приложения
// согласно конфигурации.
// NOTE: при пустых base URL каталог и платёжный сервис заменяются mock-ами,
// это режим для разработки и демо.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{Logger: logger}

	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres storage: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		deps.store = store
		deps.Repo = postgres.NewOrderRepository(store)
		logger.Info("postgres order storage initialized")
	default:
		deps.Repo = memory.NewOrderRepository()
		logger.Info("in-memory order storage initialized")
	}

	switch cfg.IdempotencyBackend {
	case IdempotencyBackendRedis:
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			deps.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		deps.redisClient = client
		deps.IdempotencyRepo = redisstore.NewIdempotencyRepository(client)
		logger.WithField("addr", cfg.RedisAddr).Info("redis idempotency storage initialized")
	default:
		deps.IdempotencyRepo = memory.NewIdempotencyRepository()
	}

	if cfg.CatalogBaseURL != "" {
		deps.Catalog = catalog.NewHTTPClient(cfg.CatalogBaseURL)
	} else {
		logger.Warn("catalog base url is empty, using mock catalog")
		deps.Catalog = catalog.NewMockService()
	}

	if cfg.PaymentBaseURL != "" {
		deps.Payments = payment.NewHTTPClient(cfg.PaymentBaseURL)
	} else {
		logger.Warn("payment base url is empty, using mock payment gateway")
		deps.Payments = payment.NewMockService()
	}

	return deps, nil
}

// PingStorage проверяет доступность постоянного хранилища.
// Для in-memory хранилища всегда возвращает nil.
func (d *Dependencies) PingStorage(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	return d.store.Ping(ctx)
}

// Close освобождает внешние ресурсы зависимостей.
func (d *Dependencies) Close() {
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close postgres store")
		}
	}
	if d.redisClient != nil {
		if err := d.redisClient.Close(); err != nil {
			d.Logger.WithError(err).Warn("failed to close redis client")
		}
	}
}
