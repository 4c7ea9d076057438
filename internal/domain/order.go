package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, оплата и доставка ещё не начались.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusInProgress — заказ оплачен и передан в исполнение.
	OrderStatusInProgress OrderStatus = "IN_PROGRESS"
	// OrderStatusDelivered — заказ доставлен клиенту.
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// OrderStatusCancelled — заказ отменён до завершения цикла.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusInProgress, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// ParseOrderStatus разбирает строковое представление статуса.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(raw)
	if !status.Valid() {
		return "", ErrStatusInvalid
	}
	return status, nil
}

// NewOrderLine — заявка на позицию заказа от клиента: товар и количество.
// Цена намеренно отсутствует, её источником является только каталог.
type NewOrderLine struct {
	ProductID string
	Quantity  int32
}

// OrderLine представляет одну позицию заказа.
type OrderLine struct {
	// ProductID — внешний идентификатор товара в каталоге.
	ProductID string
	// Quantity — количество единиц товара.
	Quantity int32
	// Price — снапшот цены каталога на момент создания заказа.
	// Последующие изменения цены в каталоге исторические заказы не затрагивают.
	Price decimal.Decimal
	// Name заполняется только при обогащении ответа данными каталога
	// и никогда не сохраняется в хранилище.
	Name string
}

// Subtotal возвращает стоимость позиции: price * quantity.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt32(l.Quantity))
}

// Order агрегирует состояние заказа и его позиции. Позиции принадлежат
// исключительно заказу: создаются вместе с ним и отдельно не живут.
type Order struct {
	ID          string
	Status      OrderStatus
	TotalAmount decimal.Decimal
	TotalItems  int32
	Items       []OrderLine
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.TotalAmount.IsNegative() {
		errs = append(errs, ErrAmountNegative)
	}

	// Сверяем производные суммы с позициями: totalAmount и totalItems
	// всегда вычисляются, а не принимаются от клиента.
	calcAmount := decimal.Zero
	var calcItems int32
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.Price.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calcAmount = calcAmount.Add(item.Subtotal())
		calcItems += item.Quantity
	}
	if !calcAmount.Equal(o.TotalAmount) {
		errs = append(errs, ErrAmountMismatch)
	}
	if calcItems != o.TotalItems {
		errs = append(errs, ErrItemCountMismatch)
	}

	return errs
}
