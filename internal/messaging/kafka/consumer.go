package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// defaultRetryDelay — пауза между in-process попытками обработки.
const defaultRetryDelay = 500 * time.Millisecond

// MessageHandler обрабатывает одно сообщение из Kafka.
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

// Consumer читает топики через consumer group. Сообщения, не обработанные
// за maxRetries попыток, уходят в DLQ, если задан dlqProducer.
type Consumer struct {
	consumer    sarama.ConsumerGroup
	topics      []string
	handler     MessageHandler
	logger      *log.Entry
	wg          sync.WaitGroup
	dlqProducer *Producer
	maxRetries  int
	retryDelay  time.Duration
}

// NewConsumer создает consumer без DLQ.
func NewConsumer(brokers []string, groupID string, topics []string, handler MessageHandler) (*Consumer, error) {
	return NewConsumerWithDLQ(brokers, groupID, topics, handler, nil, 3)
}

// NewConsumerWithDLQ создает consumer, отправляющий исчерпавшие retry
// сообщения в Dead Letter Queue.
func NewConsumerWithDLQ(brokers []string, groupID string, topics []string, handler MessageHandler, dlqProducer *Producer, maxRetries int) (*Consumer, error) {
	group, err := sarama.NewConsumerGroup(brokers, groupID, consumerGroupConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &Consumer{
		consumer:    group,
		topics:      topics,
		handler:     handler,
		logger:      log.WithField("component", "kafka-consumer"),
		dlqProducer: dlqProducer,
		maxRetries:  maxRetries,
		retryDelay:  defaultRetryDelay,
	}, nil
}

func consumerGroupConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true
	return config
}

// Start запускает цикл потребления и фоновое логирование ошибок группы.
func (c *Consumer) Start(ctx context.Context) error {
	c.wg.Add(2)
	go c.consumeLoop(ctx)
	go c.logGroupErrors()

	c.logger.WithField("topics", c.topics).Info("kafka consumer started")
	return nil
}

// consumeLoop перезапускает Consume после каждого rebalance.
// Выходит при отмене контекста или закрытии группы через Stop.
func (c *Consumer) consumeLoop(ctx context.Context) {
	defer c.wg.Done()

	for ctx.Err() == nil {
		err := c.consumer.Consume(ctx, c.topics, c)
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return
		}
		if err != nil {
			c.logger.WithError(err).Error("error from consumer")
		}
	}
}

func (c *Consumer) logGroupErrors() {
	defer c.wg.Done()

	for err := range c.consumer.Errors() {
		c.logger.WithError(err).Error("consumer error")
	}
}

// Stop закрывает consumer group и дожидается фоновых горутин.
func (c *Consumer) Stop() error {
	if err := c.consumer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	c.wg.Wait()
	c.logger.Info("kafka consumer stopped")
	return nil
}

// Setup вызывается при старте consumer session.
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup вызывается при завершении consumer session.
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim обрабатывает сообщения одной партиции. Сообщение
// маркируется только после успешной обработки или ухода в DLQ.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}

			fields := log.Fields{
				"topic":     message.Topic,
				"partition": message.Partition,
				"offset":    message.Offset,
			}
			c.logger.WithFields(fields).Debug("received message")

			if err := c.handleMessageWithRetry(session.Context(), message); err != nil {
				// Без маркировки: сообщение будет перечитано после rebalance.
				c.logger.WithError(err).WithFields(fields).Error("message processing failed after all retries")
				continue
			}

			session.MarkMessage(message, "")
		}
	}
}

// handleMessageWithRetry делает оставшиеся in-process попытки обработки,
// учитывая счетчик из заголовка, и после исчерпания публикует в DLQ.
func (c *Consumer) handleMessageWithRetry(ctx context.Context, message *sarama.ConsumerMessage) error {
	retryCount := c.getRetryCount(message)
	attempts := c.maxRetries - retryCount
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 && c.retryDelay > 0 {
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if lastErr = c.handler(ctx, message); lastErr == nil {
			return nil
		}

		c.logger.WithFields(log.Fields{
			"topic":       message.Topic,
			"retry_count": retryCount + attempt,
			"max_retries": c.maxRetries,
		}).Warn("message processing failed, will retry")
	}

	if c.dlqProducer == nil {
		return lastErr
	}

	if dlqErr := c.sendToDLQ(message, lastErr); dlqErr != nil {
		c.logger.WithError(dlqErr).Error("failed to send message to DLQ")
		return fmt.Errorf("failed to send to DLQ: %w", dlqErr)
	}

	c.logger.WithFields(log.Fields{
		"topic":       message.Topic,
		"retry_count": retryCount,
	}).Info("message sent to DLQ after max retries")
	return nil
}

// getRetryCount читает счетчик попыток из заголовка сообщения.
func (c *Consumer) getRetryCount(message *sarama.ConsumerMessage) int {
	for _, header := range message.Headers {
		if string(header.Key) != HeaderRetryCount {
			continue
		}
		if count, err := strconv.Atoi(string(header.Value)); err == nil {
			return count
		}
	}
	return 0
}

// dlqEnvelope — формат записи в DLQ. Его же разбирает cmd/dlq-reprocess.
type dlqEnvelope struct {
	OriginalTopic     string `json:"original_topic"`
	OriginalPartition int32  `json:"original_partition"`
	OriginalOffset    int64  `json:"original_offset"`
	OriginalKey       string `json:"original_key"`
	OriginalValue     string `json:"original_value"`
	ErrorMessage      string `json:"error_message"`
	FailedAt          string `json:"failed_at"`
	RetryCount        int    `json:"retry_count"`
}

func (c *Consumer) sendToDLQ(message *sarama.ConsumerMessage, processingErr error) error {
	envelope := dlqEnvelope{
		OriginalTopic:     message.Topic,
		OriginalPartition: message.Partition,
		OriginalOffset:    message.Offset,
		OriginalKey:       string(message.Key),
		OriginalValue:     string(message.Value),
		ErrorMessage:      processingErr.Error(),
		FailedAt:          time.Now().UTC().Format(time.RFC3339),
		RetryCount:        c.getRetryCount(message),
	}

	return c.dlqProducer.PublishEvent(TopicDeadLetterQueue, string(message.Key), envelope)
}
