package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// Producer публикует события жизненного цикла заказа в Kafka.
// Отправка синхронная: вызов возвращается только после подтверждения
// брокером, поэтому потерю события видно сразу на месте публикации.
type Producer struct {
	sp     sarama.SyncProducer
	logger *log.Entry
}

// syncProducerConfig возвращает конфигурацию для идемпотентного
// синхронного продьюсера. Idempotent требует acks от всех in-sync
// реплик и не больше одного запроса в полёте на соединение.
func syncProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	return cfg
}

// NewProducer подключается к брокерам и возвращает готовый Producer.
func NewProducer(brokers []string) (*Producer, error) {
	sp, err := sarama.NewSyncProducer(brokers, syncProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &Producer{
		sp:     sp,
		logger: log.WithField("component", "kafka-producer"),
	}, nil
}

// PublishEvent сериализует payload в JSON и отправляет его в topic.
// Ключом служит идентификатор заказа: события одного заказа попадают
// в одну партицию и читаются в порядке публикации.
func (p *Producer) PublishEvent(topic string, key string, payload interface{}) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for topic %s: %w", topic, err)
	}

	partition, offset, err := p.sp.SendMessage(&sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(value),
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"topic": topic,
			"key":   key,
		}).Error("failed to publish event")
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.logger.WithFields(log.Fields{
		"topic":     topic,
		"key":       key,
		"partition": partition,
		"offset":    offset,
		"bytes":     len(value),
	}).Debug("event published")

	return nil
}

// Close завершает работу продьюсера, дожидаясь отправки буферов.
func (p *Producer) Close() error {
	if err := p.sp.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
