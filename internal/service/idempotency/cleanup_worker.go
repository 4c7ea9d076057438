// Package idempotency содержит фоновый воркер, который освобождает
// idempotency-хранилище от просроченных записей.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders-ms/internal/domain"
)

const (
	defaultSweepInterval = 10 * time.Minute
	defaultSweepBatch    = 500
)

var (
	sweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_idempotency_cleanup_runs_total",
		Help: "Total number of idempotency cleanup runs grouped by result.",
	}, []string{"result"})
	sweepDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_idempotency_cleanup_deleted_total",
		Help: "Total number of deleted expired idempotency records.",
	})
	sweepLastDeleted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orders_idempotency_cleanup_last_deleted",
		Help: "Number of deleted records during the last cleanup run.",
	})
)

// CleanupConfig настраивает воркер. Нулевые значения заменяются дефолтами.
type CleanupConfig struct {
	Logger    *log.Entry
	Interval  time.Duration
	BatchSize int
}

// CleanupWorker периодически удаляет просроченные idempotency-записи.
// Для memory-хранилища это единственный способ вернуть память,
// redis удаляет ключи сам по нативному TTL.
type CleanupWorker struct {
	repo     domain.IdempotencyRepository
	logger   *log.Entry
	interval time.Duration
	batch    int
}

// NewCleanupWorker создаёт воркер очистки поверх repo.
func NewCleanupWorker(repo domain.IdempotencyRepository, cfg CleanupConfig) *CleanupWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSweepInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultSweepBatch
	}
	if cfg.Logger == nil {
		cfg.Logger = log.WithField("component", "idempotency-cleanup")
	}

	return &CleanupWorker{
		repo:     repo,
		logger:   cfg.Logger,
		interval: cfg.Interval,
		batch:    cfg.BatchSize,
	}
}

// Run выполняет первый проход сразу, дальше по тикеру до отмены ctx.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("idempotency cleanup worker is disabled: repo is nil")
		return
	}

	w.runSweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runSweep(ctx)
		}
	}
}

func (w *CleanupWorker) runSweep(ctx context.Context) {
	deleted, err := w.Sweep(ctx, time.Now().UTC())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		sweepRunsTotal.WithLabelValues("error").Inc()
		w.logger.WithError(err).Warn("idempotency cleanup run failed")
		return
	}

	sweepRunsTotal.WithLabelValues("ok").Inc()
	sweepLastDeleted.Set(float64(deleted))
	if deleted > 0 {
		w.logger.WithField("deleted", deleted).Info("idempotency cleanup completed")
	}
}

// Sweep удаляет записи с ttl <= before порциями batch и возвращает,
// сколько записей удалено суммарно.
func (w *CleanupWorker) Sweep(ctx context.Context, before time.Time) (int, error) {
	if before.IsZero() {
		before = time.Now().UTC()
	}

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		deleted, err := w.repo.DeleteExpired(before, w.batch)
		if err != nil {
			return total, err
		}

		total += deleted
		if deleted > 0 {
			sweepDeletedTotal.Add(float64(deleted))
		}

		// Неполная порция означает, что просроченных записей больше нет.
		if deleted < w.batch {
			return total, nil
		}
	}
}
