package kafka

import (
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

func newTestProducer(t *testing.T) (*Producer, *mocks.SyncProducer) {
	t.Helper()

	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := &Producer{
		sp:     mockProducer,
		logger: log.WithField("component", "kafka-producer-test"),
	}
	return producer, mockProducer
}

func TestProducer_PublishEvent(t *testing.T) {
	producer, mockProducer := newTestProducer(t)
	mockProducer.ExpectSendMessageAndSucceed()

	event := NewOrderEvent(
		EventTypeOrderCreated,
		"order-123",
		"PENDING",
		map[string]interface{}{
			"total_amount": "20",
		},
	)

	if err := producer.PublishEvent(TopicOrderEvents, "order-123", event); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_BrokerError(t *testing.T) {
	producer, mockProducer := newTestProducer(t)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	event := NewOrderEvent(EventTypeOrderCreated, "order-123", "PENDING", nil)

	if err := producer.PublishEvent(TopicOrderEvents, "order-123", event); err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_MarshalError(t *testing.T) {
	producer, mockProducer := newTestProducer(t)

	// Каналы не сериализуются в JSON, отправки быть не должно.
	if err := producer.PublishEvent(TopicOrderEvents, "order-123", make(chan int)); err == nil {
		t.Fatal("expected marshal error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewOrderEvent(t *testing.T) {
	orderID := "order-123"
	metadata := map[string]interface{}{
		"total_amount": "35.50",
	}

	event := NewOrderEvent(EventTypeOrderStatusChanged, orderID, "CANCELLED", metadata)

	if event.EventType != EventTypeOrderStatusChanged {
		t.Errorf("expected event type %s, got %s", EventTypeOrderStatusChanged, event.EventType)
	}

	if event.OrderID != orderID {
		t.Errorf("expected order id %s, got %s", orderID, event.OrderID)
	}

	if event.Status != "CANCELLED" {
		t.Errorf("expected status CANCELLED, got %s", event.Status)
	}

	if event.Metadata["total_amount"] != "35.50" {
		t.Error("metadata not set correctly")
	}

	if event.Timestamp.IsZero() {
		t.Error("timestamp should not be zero")
	}

	if time.Since(event.Timestamp) > time.Second {
		t.Error("timestamp should be close to current time")
	}
}
