package domain

import "errors"

var (
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = errors.New("total amount must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order total does not match items sum")
	// Ошибка несоответствия количества товаров и сумм позиций.
	ErrItemCountMismatch = errors.New("order item count does not match items sum")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrStatusInvalid — запрошен статус вне закрытого перечисления.
	ErrStatusInvalid = errors.New("unknown order status")
	// ErrStatusUnchanged — запрошенный статус совпадает с текущим.
	// Дубликаты сообщений о смене статуса отклоняются, а не проглатываются.
	ErrStatusUnchanged = errors.New("order already has the requested status")
	// ErrTransitionNotAllowed — переход запрещён настроенной политикой переходов.
	ErrTransitionNotAllowed = errors.New("status transition is not allowed")
	// ErrOrderStatusConflict — статус заказа изменился между чтением и записью.
	ErrOrderStatusConflict = errors.New("order status changed concurrently")

	// ErrCatalogValidation — каталог недоступен или вернул неполный набор товаров.
	ErrCatalogValidation = errors.New("products could not be validated")
	// ErrProductNotFound — для позиции не удалось определить цену по ответу каталога.
	ErrProductNotFound = errors.New("product price could not be resolved")
	// ErrPaymentUnavailable — платёжный сервис не смог создать сессию.
	ErrPaymentUnavailable = errors.New("payment session could not be created")

	// Ошибки idempotency-слоя.
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key is used with a different request")
)

// IsNotFound проверяет, является ли ошибка отсутствием заказа.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound)
}

// IsUpstream проверяет, вызвана ли ошибка внешним коллаборатором
// (каталогом или платёжным сервисом), а не самим оркестратором.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrCatalogValidation) || errors.Is(err, ErrPaymentUnavailable)
}

// IsBadRequest проверяет, относится ли ошибка к классу некорректного запроса.
func IsBadRequest(err error) bool {
	return errors.Is(err, ErrItemsRequired) ||
		errors.Is(err, ErrItemQtyInvalid) ||
		errors.Is(err, ErrStatusInvalid) ||
		errors.Is(err, ErrStatusUnchanged) ||
		errors.Is(err, ErrTransitionNotAllowed) ||
		errors.Is(err, ErrProductNotFound)
}

// IsIdempotencyConflict проверяет, является ли ошибка конфликтом idempotency-ключа.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}
