// Утилита управления схемой базы сервиса заказов: применяет,
// откатывает и показывает состояние миграций.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/orders-ms/internal/storage/postgres"
)

const migrateTimeout = 30 * time.Second

func main() {
	var (
		direction string
		steps     int
		dsn       string
	)

	flag.StringVar(&direction, "direction", "up", "migration direction: up|down|status")
	flag.IntVar(&steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	flag.StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: ORDERS_POSTGRES_DSN)")
	flag.Parse()

	if err := run(direction, steps, dsn); err != nil {
		fail("%v", err)
	}
}

func run(direction string, steps int, dsn string) error {
	direction = strings.ToLower(strings.TrimSpace(direction))
	switch direction {
	case "up", "down", "status":
	default:
		return fmt.Errorf("unsupported direction: %s (use up|down|status)", direction)
	}

	dsn = resolveDSN(dsn)
	if dsn == "" {
		return fmt.Errorf("ORDERS_POSTGRES_DSN (or -dsn) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		return fmt.Errorf("open postgres store: %w", err)
	}
	defer store.Close()

	switch direction {
	case "up":
		if err := store.MigrateUp(ctx, steps); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
		return reportStatus(ctx, store, "migrate up ok")
	case "down":
		if steps <= 0 {
			steps = 1
		}
		if err := store.MigrateDown(ctx, steps); err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
		return reportStatus(ctx, store, "migrate down ok")
	default:
		return reportStatus(ctx, store, "migration status")
	}
}

// resolveDSN предпочитает флаг, затем переменную окружения.
func resolveDSN(flagDSN string) string {
	if dsn := strings.TrimSpace(flagDSN); dsn != "" {
		return dsn
	}
	return strings.TrimSpace(os.Getenv("ORDERS_POSTGRES_DSN"))
}

func reportStatus(ctx context.Context, store *postgres.Store, label string) error {
	version, applied, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	fmt.Printf("%s: version=%d applied=%d\n", label, version, applied)
	return nil
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
