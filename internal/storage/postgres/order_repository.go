package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orders-ms/internal/domain"
)

const opTimeout = 5 * time.Second

type orderRepositoryPostgres struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepositoryPostgres{db: store.DB()}
}

func (r *orderRepositoryPostgres) Create(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create order tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, status, total_amount, total_items, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, order.ID, string(order.Status), order.TotalAmount.String(), order.TotalItems,
		order.CreatedAt, order.UpdatedAt); err != nil {
		return fmt.Errorf("insert order %s: %w", order.ID, err)
	}

	for _, item := range order.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_lines (order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4)
		`, order.ID, item.ProductID, item.Quantity, item.Price.String()); err != nil {
			return fmt.Errorf("insert order line %s/%s: %w", order.ID, item.ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create order tx: %w", err)
	}

	return nil
}

func (r *orderRepositoryPostgres) Get(id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	order, err := r.scanOrder(r.db.QueryRowContext(ctx, `
		SELECT id, status, total_amount, total_items, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id))
	if err != nil {
		return domain.Order{}, err
	}

	items, err := r.loadItems(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

func (r *orderRepositoryPostgres) Count(status *domain.OrderStatus) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `SELECT COUNT(*) FROM orders`
	args := []any{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, string(*status))
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}

	return total, nil
}

func (r *orderRepositoryPostgres) List(status *domain.OrderStatus, offset, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `
		SELECT id, status, total_amount, total_items, created_at, updated_at
		FROM orders`
	args := []any{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, string(*status))
	}
	query += fmt.Sprintf(`
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, limit)
	for rows.Next() {
		order, err := r.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	return orders, nil
}

func (r *orderRepositoryPostgres) UpdateStatus(id string, from, to domain.OrderStatus) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`, string(to), id, string(from))
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order status %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Order{}, fmt.Errorf("rows affected for order %s: %w", id, err)
	}
	if affected == 0 {
		// Либо заказа нет, либо CAS по статусу не прошёл.
		exists, err := r.orderExists(ctx, id)
		if err != nil {
			return domain.Order{}, err
		}
		if !exists {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, domain.ErrOrderStatusConflict
	}

	return r.Get(id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *orderRepositoryPostgres) scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order     domain.Order
		status    string
		amountRaw string
	)
	if err := row.Scan(&order.ID, &status, &amountRaw, &order.TotalItems,
		&order.CreatedAt, &order.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("scan order row: %w", err)
	}

	amount, err := decimal.NewFromString(amountRaw)
	if err != nil {
		return domain.Order{}, fmt.Errorf("parse total amount for order %s: %w", order.ID, err)
	}

	order.Status = domain.OrderStatus(status)
	order.TotalAmount = amount
	return order, nil
}

func (r *orderRepositoryPostgres) loadItems(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity, price
		FROM order_lines
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order lines %s: %w", orderID, err)
	}
	defer rows.Close()

	var items []domain.OrderLine
	for rows.Next() {
		var (
			line     domain.OrderLine
			priceRaw string
		)
		if err := rows.Scan(&line.ProductID, &line.Quantity, &priceRaw); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		price, err := decimal.NewFromString(priceRaw)
		if err != nil {
			return nil, fmt.Errorf("parse order line price: %w", err)
		}
		line.Price = price
		items = append(items, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}

	return items, nil
}

func (r *orderRepositoryPostgres) orderExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check order exists %s: %w", id, err)
	}
	return exists, nil
}

var _ domain.OrderRepository = (*orderRepositoryPostgres)(nil)
