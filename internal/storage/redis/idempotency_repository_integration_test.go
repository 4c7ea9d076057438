package redis

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orders-ms/internal/domain"
)

func openTestClient(t *testing.T) *goredis.Client {
	t.Helper()

	addr := os.Getenv("ORDERS_REDIS_TEST_ADDR")
	if addr == "" {
		addr = os.Getenv("ORDERS_REDIS_ADDR")
	}
	if addr == "" {
		addr = "localhost:6379"
	}

	client := goredis.NewClient(&goredis.Options{Addr: addr, DB: 15})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis is not available for integration tests: %v", err)
	}

	require.NoError(t, client.FlushDB(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestIdempotencyRepositoryIntegration_CreateProcessing(t *testing.T) {
	repo := NewIdempotencyRepository(openTestClient(t))

	record, err := repo.CreateProcessing("key-1", "hash-1", time.Time{})
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusProcessing, record.Status)

	_, err = repo.CreateProcessing("key-1", "hash-1", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)

	_, err = repo.CreateProcessing("key-1", "other-hash", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)
}

func TestIdempotencyRepositoryIntegration_MarkDone(t *testing.T) {
	repo := NewIdempotencyRepository(openTestClient(t))

	_, err := repo.CreateProcessing("key-1", "hash-1", time.Time{})
	require.NoError(t, err)
	require.NoError(t, repo.MarkDone("key-1", []byte(`{"ok":true}`), 201))

	record, err := repo.Get("key-1")
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusDone, record.Status)
	require.Equal(t, 201, record.HTTPStatus)
	require.JSONEq(t, `{"ok":true}`, string(record.ResponseBody))
}

func TestIdempotencyRepositoryIntegration_NativeTTL(t *testing.T) {
	repo := NewIdempotencyRepository(openTestClient(t))

	_, err := repo.CreateProcessing("short", "hash", time.Now().UTC().Add(time.Second))
	require.NoError(t, err)

	time.Sleep(1500 * time.Millisecond)

	_, err = repo.Get("short")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
}
