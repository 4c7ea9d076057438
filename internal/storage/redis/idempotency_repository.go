package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/orders-ms/internal/domain"
)

const (
	keyPrefix  = "orders:idempotency:"
	opTimeout  = 3 * time.Second
	defaultTTL = 24 * time.Hour
)

type idempotencyRepositoryRedis struct {
	client *redis.Client
}

// NewIdempotencyRepository создаёт Redis-реализацию IdempotencyRepository.
// Время жизни записей обеспечивается нативным TTL ключей.
func NewIdempotencyRepository(client *redis.Client) domain.IdempotencyRepository {
	return &idempotencyRepositoryRedis{client: client}
}

func (r *idempotencyRepositoryRedis) CreateProcessing(key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	requestHash = strings.TrimSpace(requestHash)

	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}
	if requestHash == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	now := time.Now().UTC()
	ttl := defaultTTL
	if !ttlAt.IsZero() {
		ttl = time.Until(ttlAt)
		if ttl <= 0 {
			ttl = time.Second
		}
	} else {
		ttlAt = now.Add(defaultTTL)
	}

	record := domain.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      domain.IdempotencyStatusProcessing,
		TTLAt:       ttlAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("marshal idempotency record: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	ok, err := r.client.SetNX(ctx, keyPrefix+key, payload, ttl).Result()
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("setnx idempotency record: %w", err)
	}
	if !ok {
		existing, err := r.Get(key)
		if err != nil {
			return domain.IdempotencyRecord{}, err
		}
		if existing.RequestHash != requestHash {
			return existing, domain.ErrIdempotencyHashMismatch
		}
		return existing, domain.ErrIdempotencyKeyAlreadyExists
	}

	return record, nil
}

func (r *idempotencyRepositoryRedis) Get(key string) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	payload, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
		}
		return domain.IdempotencyRecord{}, fmt.Errorf("get idempotency record: %w", err)
	}

	var record domain.IdempotencyRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("unmarshal idempotency record: %w", err)
	}

	return record, nil
}

func (r *idempotencyRepositoryRedis) MarkDone(key string, responseBody []byte, httpStatus int) error {
	return r.markStatus(key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

func (r *idempotencyRepositoryRedis) MarkFailed(key string, responseBody []byte, httpStatus int) error {
	return r.markStatus(key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

// DeleteExpired — no-op: Redis удаляет просроченные ключи сам по TTL.
func (r *idempotencyRepositoryRedis) DeleteExpired(before time.Time, limit int) (int, error) {
	return 0, nil
}

func (r *idempotencyRepositoryRedis) markStatus(key string, status domain.IdempotencyStatus, responseBody []byte, httpStatus int) error {
	record, err := r.Get(key)
	if err != nil {
		return err
	}

	record.Status = status
	record.ResponseBody = append([]byte(nil), responseBody...)
	record.HTTPStatus = httpStatus
	record.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal idempotency record: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	// KeepTTL сохраняет исходный срок жизни ключа.
	if err := r.client.Set(ctx, keyPrefix+record.Key, payload, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("update idempotency record: %w", err)
	}

	return nil
}

var _ domain.IdempotencyRepository = (*idempotencyRepositoryRedis)(nil)
