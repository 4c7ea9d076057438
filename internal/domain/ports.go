package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderRepository описывает персистентное хранилище заказов.
type OrderRepository interface {
	// Create атомарно сохраняет заказ вместе со всеми позициями:
	// либо записаны все строки, либо ни одной.
	Create(order Order) error
	// Get возвращает заказ с позициями или ErrOrderNotFound.
	Get(id string) (Order, error)
	// Count возвращает количество заказов, опционально по статусу.
	Count(status *OrderStatus) (int64, error)
	// List возвращает страницу заказов (без позиций), новые первыми.
	List(status *OrderStatus, offset, limit int) ([]Order, error)
	// UpdateStatus меняет статус заказа при условии, что текущий статус
	// равен from (compare-and-swap). Возвращает ErrOrderStatusConflict,
	// если заказ существует, но статус уже успел измениться.
	UpdateStatus(id string, from, to OrderStatus) (Order, error)
}

// ProductCatalog описывает взаимодействие с сервисом каталога товаров.
type ProductCatalog interface {
	// ValidateProducts проверяет существование товаров и возвращает их
	// актуальные имя и цену. Отсутствующие товары каталог опускает.
	ValidateProducts(ids []string) ([]ProductSnapshot, error)
}

// PaymentItem — позиция заказа в запросе на платёжную сессию.
type PaymentItem struct {
	Name     string
	Price    decimal.Decimal
	Quantity int32
}

// PaymentSession — непрозрачный handle платёжной сессии от провайдера.
type PaymentSession struct {
	ID  string
	URL string
}

// PaymentGateway описывает взаимодействие с платёжным сервисом.
type PaymentGateway interface {
	// CreateSession создаёт платёжную сессию для заказа.
	CreateSession(orderID, currency string, items []PaymentItem) (PaymentSession, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}
