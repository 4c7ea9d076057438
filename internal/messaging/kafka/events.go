package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// EventType определяет тип события заказа
type EventType string

const (
	EventTypeOrderCreated          EventType = "order.created"
	EventTypeOrderStatusChanged    EventType = "order.status_changed"
	EventTypePaymentSessionCreated EventType = "order.payment_session_created"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "orders.events"
	TopicStatusCommands  = "orders.status.commands"
	TopicDeadLetterQueue = "orders.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// OrderEvent представляет событие жизненного цикла заказа
type OrderEvent struct {
	EventType EventType              `json:"event_type"`
	OrderID   string                 `json:"order_id"`
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, status string, metadata map[string]interface{}) *OrderEvent {
	return &OrderEvent{
		EventType: eventType,
		OrderID:   orderID,
		Status:    status,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}

// StatusCommand — команда смены статуса заказа, приходящая из Kafka
type StatusCommand struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// ParseOrderEvent парсит OrderEvent из сообщения
func ParseOrderEvent(message *sarama.ConsumerMessage) (*OrderEvent, error) {
	var event OrderEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order event: %w", err)
	}
	return &event, nil
}

// ParseStatusCommand парсит команду смены статуса из сообщения
func ParseStatusCommand(message *sarama.ConsumerMessage) (*StatusCommand, error) {
	var cmd StatusCommand
	if err := json.Unmarshal(message.Value, &cmd); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status command: %w", err)
	}
	if cmd.OrderID == "" {
		return nil, fmt.Errorf("status command without order_id")
	}
	return &cmd, nil
}
