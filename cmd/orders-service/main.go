package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders-ms/internal/app"
	"github.com/vladislavdragonenkov/orders-ms/internal/version"
)

// setupLogger настраивает формат и уровень логирования для сервиса.
// Уровень можно переопределить через ORDERS_LOG_LEVEL.
func setupLogger() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	if raw := os.Getenv("ORDERS_LOG_LEVEL"); raw != "" {
		level, err := log.ParseLevel(raw)
		if err != nil {
			log.WithField("value", raw).Warn("неизвестный уровень логирования, используем info")
			return
		}
		log.SetLevel(level)
	}
}

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	setupLogger()

	cfg, err := app.LoadConfigFromEnv()
	if err != nil {
		log.WithError(err).Fatal("некорректная конфигурация")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":    cfg.HTTPAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
	}).Info("запускаем orders service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("orders service остановлен")
}
