package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/orders-ms/internal/health"
	httpsvc "github.com/vladislavdragonenkov/orders-ms/internal/service/http"
	"github.com/vladislavdragonenkov/orders-ms/internal/service/idempotency"
	"github.com/vladislavdragonenkov/orders-ms/internal/version"
)

// Run собирает зависимости и запускает HTTP API вместе с metrics-сервером.
// Блокируется до отмены ctx или фатальной ошибки сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	kafkaProducer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.Warn("continuing without kafka")
	}

	svc := createOrchestrator(deps, cfg, kafkaProducer)

	consumer, err := startStatusCommandConsumer(ctx, cfg, svc, kafkaProducer, logger)
	if err != nil {
		logger.WithError(err).Warn("status command consumer disabled")
	}
	defer closeKafka(kafkaProducer, consumer, logger)

	// Фоновая очистка просроченных idempotency ключей.
	cleanupWorker := idempotency.NewCleanupWorker(deps.IdempotencyRepo, idempotency.CleanupConfig{
		Logger: logger.WithField("component", "idempotency-cleanup"),
	})
	go cleanupWorker.Run(ctx)

	healthHandler := healthcheck.NewHandler(version.String())
	healthHandler.RegisterChecker("storage", healthcheck.CheckerFunc("storage", func() error {
		return deps.PingStorage(ctx)
	}))

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	handler := httpsvc.NewHandler(svc, logger.WithField("layer", "http"))
	apiSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpsvc.NewRouter(handler, deps.IdempotencyRepo),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP сервер слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
