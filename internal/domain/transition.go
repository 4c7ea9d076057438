package domain

// TransitionPolicy задаёт допустимые переходы между статусами заказа.
// Граф переходов — конфигурация, а не код: ядро всегда отклоняет только
// переход в текущий статус, всё остальное решает политика. Нулевая
// политика (nil) разрешает любой переход в другой статус.
type TransitionPolicy map[OrderStatus][]OrderStatus

// Allows сообщает, разрешён ли переход from -> to.
// Совпадающие статусы запрещены всегда, независимо от политики.
func (p TransitionPolicy) Allows(from, to OrderStatus) bool {
	if from == to {
		return false
	}
	if p == nil {
		return true
	}
	for _, allowed := range p[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// DefaultTransitionPolicy возвращает граф PENDING -> IN_PROGRESS -> DELIVERED
// с отменой только из PENDING. Используется при включённом строгом режиме.
func DefaultTransitionPolicy() TransitionPolicy {
	return TransitionPolicy{
		OrderStatusPending:    {OrderStatusInProgress, OrderStatusCancelled},
		OrderStatusInProgress: {OrderStatusDelivered},
	}
}
