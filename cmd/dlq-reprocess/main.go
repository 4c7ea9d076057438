// Утилита возвращает сообщения из orders.dlq в их исходные топики.
// По умолчанию работает в режиме dry-run и только печатает кандидатов,
// с флагом -execute публикует их заново.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders-ms/internal/messaging/kafka"
)

const (
	defaultReplayLimit = 100
	partitionIdleWait  = 2 * time.Second
)

type config struct {
	brokers     []string
	limit       int
	execute     bool
	idleTimeout time.Duration
}

// dlqPayload соответствует формату, в котором consumer сохраняет
// необработанные сообщения в DLQ.
type dlqPayload struct {
	OriginalTopic string `json:"original_topic"`
	OriginalKey   string `json:"original_key"`
	OriginalValue string `json:"original_value"`
}

type replayMessage struct {
	topic string
	key   string
	value []byte
}

type replayStats struct {
	scanned  int
	replayed int
	skipped  int
}

func (s *replayStats) add(other replayStats) {
	s.scanned += other.scanned
	s.replayed += other.replayed
	s.skipped += other.skipped
}

// dlqSource читает накопленный хвост DLQ-топика.
type dlqSource interface {
	Partitions(topic string) ([]int32, error)
	OffsetRange(topic string, partition int32) (oldest, newest int64, err error)
	Consume(topic string, partition int32, offset int64) (partitionReader, error)
	Close() error
}

type partitionReader interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

// replaySink публикует восстановленные сообщения в исходные топики.
type replaySink interface {
	Send(topic, key string, value []byte) error
	Close() error
}

type kafkaSource struct {
	client   sarama.Client
	consumer sarama.Consumer
}

func (s *kafkaSource) Partitions(topic string) ([]int32, error) {
	return s.client.Partitions(topic)
}

func (s *kafkaSource) OffsetRange(topic string, partition int32) (int64, int64, error) {
	oldest, err := s.client.GetOffset(topic, partition, sarama.OffsetOldest)
	if err != nil {
		return 0, 0, err
	}
	newest, err := s.client.GetOffset(topic, partition, sarama.OffsetNewest)
	if err != nil {
		return 0, 0, err
	}
	return oldest, newest, nil
}

func (s *kafkaSource) Consume(topic string, partition int32, offset int64) (partitionReader, error) {
	return s.consumer.ConsumePartition(topic, partition, offset)
}

func (s *kafkaSource) Close() error {
	if s.consumer != nil {
		_ = s.consumer.Close()
	}
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

type kafkaSink struct {
	producer sarama.SyncProducer
}

func (s *kafkaSink) Send(topic, key string, value []byte) error {
	_, _, err := s.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(value),
		Timestamp: time.Now().UTC(),
	})
	return err
}

func (s *kafkaSink) Close() error {
	return s.producer.Close()
}

// openKafka подменяется в тестах.
var openKafka = func(cfg config) (dlqSource, replaySink, error) {
	clientConfig := sarama.NewConfig()
	clientConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, clientConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("create kafka client: %w", err)
	}

	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	source := &kafkaSource{client: client, consumer: consumer}

	if !cfg.execute {
		return source, nil, nil
	}

	producerConfig := sarama.NewConfig()
	producerConfig.Producer.RequiredAcks = sarama.WaitForAll
	producerConfig.Producer.Retry.Max = 5
	producerConfig.Producer.Return.Successes = true
	producerConfig.Producer.Idempotent = true
	producerConfig.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(cfg.brokers, producerConfig)
	if err != nil {
		_ = source.Close()
		return nil, nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return source, &kafkaSink{producer: producer}, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := readConfig()
	if err != nil {
		fail("%v", err)
	}

	if err := run(context.Background(), cfg); err != nil {
		fail("dlq replay failed: %v", err)
	}
}

func readConfig() (config, error) {
	var brokersRaw string
	cfg := config{idleTimeout: partitionIdleWait}

	flag.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: ORDERS_KAFKA_BROKERS)")
	flag.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max number of dlq messages to scan")
	flag.BoolVar(&cfg.execute, "execute", false, "republish candidates; default is dry-run")
	flag.Parse()

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = os.Getenv("ORDERS_KAFKA_BROKERS")
	}

	cfg.brokers = parseBrokers(brokersRaw)
	if len(cfg.brokers) == 0 {
		return config{}, fmt.Errorf("kafka brokers are required (-brokers or ORDERS_KAFKA_BROKERS)")
	}
	if cfg.limit <= 0 {
		return config{}, fmt.Errorf("limit must be > 0")
	}

	return cfg, nil
}

func parseBrokers(raw string) []string {
	chunks := strings.Split(raw, ",")
	brokers := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		broker := strings.TrimSpace(chunk)
		if broker == "" {
			continue
		}
		brokers = append(brokers, broker)
	}
	return brokers
}

func run(ctx context.Context, cfg config) error {
	source, sink, err := openKafka(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if sink != nil {
			_ = sink.Close()
		}
		if source != nil {
			_ = source.Close()
		}
	}()

	return replayAll(ctx, cfg, source, sink)
}

func replayAll(ctx context.Context, cfg config, source dlqSource, sink replaySink) error {
	if source == nil {
		return fmt.Errorf("kafka source is required")
	}
	if cfg.execute && sink == nil {
		return fmt.Errorf("sink is required in execute mode")
	}

	mode := "dry-run"
	if cfg.execute {
		mode = "execute"
	}
	log.WithFields(log.Fields{"mode": mode, "limit": cfg.limit}).Info("starting dlq replay")

	partitions, err := source.Partitions(kafka.TopicDeadLetterQueue)
	if err != nil {
		return fmt.Errorf("get dlq partitions: %w", err)
	}
	if len(partitions) == 0 {
		log.Warn("dlq topic has no partitions")
		return nil
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	var total replayStats
	for _, partition := range partitions {
		budget := cfg.limit - total.scanned
		if budget <= 0 {
			break
		}

		stats, err := replayPartition(ctx, cfg, source, sink, partition, budget)
		if err != nil {
			return err
		}
		total.add(stats)
	}

	log.WithFields(log.Fields{
		"mode":     mode,
		"scanned":  total.scanned,
		"replayed": total.replayed,
		"skipped":  total.skipped,
	}).Info("dlq replay finished")

	return nil
}

func replayPartition(ctx context.Context, cfg config, source dlqSource, sink replaySink, partition int32, budget int) (replayStats, error) {
	var stats replayStats

	oldest, newest, err := source.OffsetRange(kafka.TopicDeadLetterQueue, partition)
	if err != nil {
		return stats, fmt.Errorf("offset range for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return stats, nil
	}

	reader, err := source.Consume(kafka.TopicDeadLetterQueue, partition, oldest)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = reader.Close() }()

	idle := time.NewTimer(cfg.idleTimeout)
	defer idle.Stop()

	for stats.scanned < budget {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case err := <-reader.Errors():
			if err != nil {
				return stats, fmt.Errorf("partition %d read error: %w", partition, err)
			}
		case msg, ok := <-reader.Messages():
			if !ok || msg == nil || msg.Offset >= newest {
				return stats, nil
			}

			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(cfg.idleTimeout)

			stats.scanned++
			candidate, ok, err := extractCommand(msg)
			if err != nil {
				stats.skipped++
				log.WithError(err).WithFields(log.Fields{
					"partition": msg.Partition,
					"offset":    msg.Offset,
				}).Warn("skip unreadable dlq message")
				continue
			}
			if !ok {
				stats.skipped++
				continue
			}

			if cfg.execute {
				if err := sink.Send(candidate.topic, candidate.key, candidate.value); err != nil {
					return stats, fmt.Errorf("republish to %s: %w", candidate.topic, err)
				}
			} else {
				log.WithFields(log.Fields{
					"partition":    msg.Partition,
					"offset":       msg.Offset,
					"target_topic": candidate.topic,
					"key":          candidate.key,
				}).Info("dlq replay candidate")
			}
			stats.replayed++

			if msg.Offset+1 >= newest {
				return stats, nil
			}
		case <-idle.C:
			return stats, nil
		}
	}

	return stats, nil
}

// extractCommand восстанавливает исходное сообщение из DLQ-конверта.
// Конверты без полезной нагрузки пропускаются, при пустом original_topic
// сообщение возвращается в топик команд смены статуса.
func extractCommand(msg *sarama.ConsumerMessage) (replayMessage, bool, error) {
	var payload dlqPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return replayMessage{}, false, fmt.Errorf("decode dlq payload: %w", err)
	}
	if payload.OriginalValue == "" {
		return replayMessage{}, false, nil
	}

	topic := strings.TrimSpace(payload.OriginalTopic)
	if topic == "" {
		topic = kafka.TopicStatusCommands
	}

	return replayMessage{
		topic: topic,
		key:   payload.OriginalKey,
		value: []byte(payload.OriginalValue),
	}, true, nil
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
