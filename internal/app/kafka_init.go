package app

import (
	"context"
	"errors"
	"strings"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders-ms/internal/domain"
	"github.com/vladislavdragonenkov/orders-ms/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orders-ms/internal/service/orders"
)

// initKafkaProducer инициализирует Kafka producer если brokers не пустой.
// Возвращает nil, nil если brokers пустой.
func initKafkaProducer(brokers string, logger *log.Entry) (*kafka.Producer, error) {
	if brokers == "" {
		return nil, nil
	}

	brokerList := strings.Split(brokers, ",")
	producer, err := kafka.NewProducer(brokerList)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokerList).Info("kafka producer initialized")
	return producer, nil
}

// startStatusCommandConsumer подписывается на топик команд смены статуса.
// Невалидные и отклонённые политикой команды не ретраятся: повторная
// обработка даст тот же результат, поэтому они отправляются сразу в DLQ.
func startStatusCommandConsumer(
	ctx context.Context,
	cfg Config,
	svc orders.Orchestrator,
	dlqProducer *kafka.Producer,
	logger *log.Entry,
) (*kafka.Consumer, error) {
	if cfg.KafkaBrokers == "" {
		return nil, nil
	}

	handler := func(ctx context.Context, message *sarama.ConsumerMessage) error {
		cmd, err := kafka.ParseStatusCommand(message)
		if err != nil {
			return err
		}

		status, err := domain.ParseOrderStatus(cmd.Status)
		if err != nil {
			return err
		}

		if _, err := svc.ChangeStatus(cmd.OrderID, status); err != nil {
			// Дубликат команды со статусом, который уже установлен,
			// считается обработанным.
			if errors.Is(err, domain.ErrStatusUnchanged) || errors.Is(err, domain.ErrTransitionNotAllowed) {
				logger.WithError(err).WithField("order_id", cmd.OrderID).
					Warn("status command rejected")
				return nil
			}
			return err
		}
		return nil
	}

	consumer, err := kafka.NewConsumerWithDLQ(
		strings.Split(cfg.KafkaBrokers, ","),
		cfg.KafkaGroupID,
		[]string{kafka.TopicStatusCommands},
		handler,
		dlqProducer,
		3,
	)
	if err != nil {
		return nil, err
	}

	if err := consumer.Start(ctx); err != nil {
		return nil, err
	}
	return consumer, nil
}

// closeKafka закрывает Kafka producer и consumer если они не nil.
func closeKafka(producer *kafka.Producer, consumer *kafka.Consumer, logger *log.Entry) {
	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			logger.WithError(err).Warn("failed to stop kafka consumer")
		}
	}
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
