package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/orders-ms/internal/messaging/kafka"
)

func TestParseBrokers(t *testing.T) {
	brokers := parseBrokers(" broker-1:9092, ,broker-2:9092 ")
	if len(brokers) != 2 {
		t.Fatalf("unexpected brokers count: got=%d want=2", len(brokers))
	}
	if brokers[0] != "broker-1:9092" || brokers[1] != "broker-2:9092" {
		t.Fatalf("unexpected brokers: %+v", brokers)
	}
}

func TestExtractCommand(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantOK    bool
		wantErr   bool
		wantTopic string
		wantKey   string
	}{
		{
			name:      "full envelope",
			value:     `{"original_topic":"orders.status.commands","original_key":"order-1","original_value":"{\"order_id\":\"order-1\",\"status\":\"CANCELLED\"}"}`,
			wantOK:    true,
			wantTopic: kafka.TopicStatusCommands,
			wantKey:   "order-1",
		},
		{
			name:      "missing topic falls back to status commands",
			value:     `{"original_key":"order-2","original_value":"{\"order_id\":\"order-2\"}"}`,
			wantOK:    true,
			wantTopic: kafka.TopicStatusCommands,
			wantKey:   "order-2",
		},
		{
			name:   "envelope without payload is skipped",
			value:  `{"original_topic":"orders.status.commands","original_key":"order-3"}`,
			wantOK: false,
		},
		{
			name:   "foreign json is skipped",
			value:  `{"id":"x","payload":"not-an-envelope"}`,
			wantOK: false,
		},
		{
			name:    "malformed json fails",
			value:   `not-json`,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok, err := extractCommand(&sarama.ConsumerMessage{Value: []byte(tc.value)})
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected decode error")
				}
				return
			}
			if err != nil {
				t.Fatalf("extractCommand failed: %v", err)
			}
			if ok != tc.wantOK {
				t.Fatalf("unexpected ok: got=%v want=%v", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if got.topic != tc.wantTopic {
				t.Fatalf("unexpected topic: %s", got.topic)
			}
			if got.key != tc.wantKey {
				t.Fatalf("unexpected key: %s", got.key)
			}
		})
	}
}

func TestReadConfig(t *testing.T) {
	withFlagArgs(t, []string{"-brokers=broker-1:9092,broker-2:9092", "-limit=10", "-execute=true"}, func() {
		cfg, err := readConfig()
		if err != nil {
			t.Fatalf("readConfig failed: %v", err)
		}
		if len(cfg.brokers) != 2 {
			t.Fatalf("unexpected brokers count: %d", len(cfg.brokers))
		}
		if cfg.limit != 10 {
			t.Fatalf("unexpected limit: %d", cfg.limit)
		}
		if !cfg.execute {
			t.Fatal("expected execute=true")
		}
		if cfg.idleTimeout != partitionIdleWait {
			t.Fatalf("unexpected idle timeout: %s", cfg.idleTimeout)
		}
	})
}

func TestReadConfig_ValidationErrors(t *testing.T) {
	t.Setenv("ORDERS_KAFKA_BROKERS", "")

	withFlagArgs(t, []string{"-brokers="}, func() {
		_, err := readConfig()
		if err == nil || !strings.Contains(err.Error(), "kafka brokers are required") {
			t.Fatalf("expected brokers validation error, got: %v", err)
		}
	})

	withFlagArgs(t, []string{"-brokers=broker:9092", "-limit=0"}, func() {
		_, err := readConfig()
		if err == nil || !strings.Contains(err.Error(), "limit must be > 0") {
			t.Fatalf("expected limit validation error, got: %v", err)
		}
	})
}

func TestReadConfig_BrokersFromEnv(t *testing.T) {
	t.Setenv("ORDERS_KAFKA_BROKERS", "env-broker:9092")

	withFlagArgs(t, nil, func() {
		cfg, err := readConfig()
		if err != nil {
			t.Fatalf("readConfig failed: %v", err)
		}
		if len(cfg.brokers) != 1 || cfg.brokers[0] != "env-broker:9092" {
			t.Fatalf("unexpected brokers: %+v", cfg.brokers)
		}
	})
}

func dlqEnvelope(orderID string) []byte {
	return []byte(fmt.Sprintf(
		`{"original_topic":"orders.status.commands","original_key":"%s","original_value":"{\"order_id\":\"%s\",\"status\":\"CANCELLED\"}"}`,
		orderID, orderID,
	))
}

func TestReplayPartition_DryRun(t *testing.T) {
	source := newStubSource(map[int32][]*sarama.ConsumerMessage{
		0: {{Partition: 0, Offset: 0, Value: dlqEnvelope("order-1")}},
	})
	cfg := config{idleTimeout: 20 * time.Millisecond}

	stats, err := replayPartition(context.Background(), cfg, source, nil, 0, 10)
	if err != nil {
		t.Fatalf("replayPartition failed: %v", err)
	}
	if stats.scanned != 1 || stats.replayed != 1 || stats.skipped != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestReplayPartition_Execute(t *testing.T) {
	source := newStubSource(map[int32][]*sarama.ConsumerMessage{
		0: {{Partition: 0, Offset: 0, Value: dlqEnvelope("order-1")}},
	})
	sink := &stubSink{}
	cfg := config{execute: true, idleTimeout: 20 * time.Millisecond}

	stats, err := replayPartition(context.Background(), cfg, source, sink, 0, 10)
	if err != nil {
		t.Fatalf("replayPartition failed: %v", err)
	}
	if stats.replayed != 1 {
		t.Fatalf("expected replayed=1, got %+v", stats)
	}
	if len(sink.sent) != 1 {
		t.Fatalf("expected one published message, got %d", len(sink.sent))
	}
	if sink.sent[0].topic != kafka.TopicStatusCommands || sink.sent[0].key != "order-1" {
		t.Fatalf("unexpected published message: %+v", sink.sent[0])
	}
}

func TestReplayPartition_SkipsForeignMessages(t *testing.T) {
	source := newStubSource(map[int32][]*sarama.ConsumerMessage{
		0: {{Partition: 0, Offset: 0, Value: []byte(`{"id":"x","payload":"not-an-envelope"}`)}},
	})
	cfg := config{execute: true, idleTimeout: 20 * time.Millisecond}

	stats, err := replayPartition(context.Background(), cfg, source, &stubSink{}, 0, 10)
	if err != nil {
		t.Fatalf("replayPartition failed: %v", err)
	}
	if stats.skipped != 1 || stats.replayed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestReplayPartition_Errors(t *testing.T) {
	cfg := config{execute: true, idleTimeout: 20 * time.Millisecond}

	offsetsBroken := newStubSource(nil)
	offsetsBroken.offsetErr = errors.New("offsets unavailable")
	if _, err := replayPartition(context.Background(), cfg, offsetsBroken, &stubSink{}, 0, 1); err == nil {
		t.Fatal("expected offset range error")
	}

	consumeBroken := newStubSource(map[int32][]*sarama.ConsumerMessage{0: {{Offset: 0, Value: dlqEnvelope("order-1")}}})
	consumeBroken.consumeErr = errors.New("consume unavailable")
	if _, err := replayPartition(context.Background(), cfg, consumeBroken, &stubSink{}, 0, 1); err == nil {
		t.Fatal("expected consume error")
	}

	readerBroken := newStubSource(nil)
	readerBroken.ranges = map[int32][2]int64{0: {0, 5}}
	failedReader := newOpenStubReader()
	failedReader.errs = make(chan *sarama.ConsumerError, 1)
	failedReader.errs <- &sarama.ConsumerError{Err: errors.New("read failed")}
	readerBroken.openReaders = map[int32]*stubReader{0: failedReader}
	if _, err := replayPartition(context.Background(), cfg, readerBroken, &stubSink{}, 0, 1); err == nil {
		t.Fatal("expected reader error")
	}

	sendBroken := newStubSource(map[int32][]*sarama.ConsumerMessage{
		0: {{Offset: 0, Value: dlqEnvelope("order-1")}},
	})
	if _, err := replayPartition(context.Background(), cfg, sendBroken, &stubSink{sendErr: errors.New("send failed")}, 0, 1); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestReplayPartition_IdleTimeoutAndCancel(t *testing.T) {
	cfg := config{idleTimeout: 10 * time.Millisecond}

	silent := newStubSource(nil)
	silent.ranges = map[int32][2]int64{0: {0, 5}}
	silent.openReaders = map[int32]*stubReader{0: newOpenStubReader()}

	stats, err := replayPartition(context.Background(), cfg, silent, nil, 0, 1)
	if err != nil {
		t.Fatalf("unexpected idle-timeout error: %v", err)
	}
	if stats.scanned != 0 {
		t.Fatalf("expected scanned=0, got %+v", stats)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	canceled := newStubSource(nil)
	canceled.ranges = map[int32][2]int64{0: {0, 5}}
	canceled.openReaders = map[int32]*stubReader{0: newOpenStubReader()}
	if _, err := replayPartition(ctx, cfg, canceled, nil, 0, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestReplayAll(t *testing.T) {
	cfg := config{limit: 1, idleTimeout: 20 * time.Millisecond}

	if err := replayAll(context.Background(), cfg, nil, nil); err == nil {
		t.Fatal("expected missing source error")
	}

	executeCfg := cfg
	executeCfg.execute = true
	if err := replayAll(context.Background(), executeCfg, newStubSource(nil), nil); err == nil {
		t.Fatal("expected execute mode to require a sink")
	}

	source := newStubSource(map[int32][]*sarama.ConsumerMessage{
		0: {{Partition: 0, Offset: 0, Value: dlqEnvelope("order-1")}},
		2: {{Partition: 2, Offset: 0, Value: dlqEnvelope("order-2")}},
	})
	if err := replayAll(context.Background(), cfg, source, nil); err != nil {
		t.Fatalf("replayAll failed: %v", err)
	}
	// limit=1 исчерпывается на первой (отсортированной) партиции.
	if len(source.consumed) != 1 || source.consumed[0] != 0 {
		t.Fatalf("unexpected consumed partitions: %+v", source.consumed)
	}

	empty := newStubSource(nil)
	if err := replayAll(context.Background(), cfg, empty, nil); err != nil {
		t.Fatalf("expected nil error for empty topic, got %v", err)
	}
}

func TestRun_ClosesDependencies(t *testing.T) {
	oldOpen := openKafka
	defer func() { openKafka = oldOpen }()

	cfg := config{limit: 1, idleTimeout: 20 * time.Millisecond, execute: true}

	openKafka = func(config) (dlqSource, replaySink, error) {
		return nil, nil, errors.New("brokers unreachable")
	}
	if err := run(context.Background(), cfg); err == nil || !strings.Contains(err.Error(), "brokers unreachable") {
		t.Fatalf("expected open error, got %v", err)
	}

	source := newStubSource(map[int32][]*sarama.ConsumerMessage{
		0: {{Partition: 0, Offset: 0, Value: dlqEnvelope("order-1")}},
	})
	sink := &stubSink{}
	openKafka = func(config) (dlqSource, replaySink, error) {
		return source, sink, nil
	}
	if err := run(context.Background(), cfg); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !source.closed || !sink.closed {
		t.Fatalf("expected deps to be closed: source=%v sink=%v", source.closed, sink.closed)
	}
}

func TestFailExits(t *testing.T) {
	if os.Getenv("DLQ_TEST_FAIL_EXIT") == "1" {
		fail("boom")
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestFailExits")
	cmd.Env = append(os.Environ(), "DLQ_TEST_FAIL_EXIT=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with error")
	}
	if exitErr, ok := err.(*exec.ExitError); !ok || exitErr.ExitCode() == 0 {
		t.Fatalf("expected non-zero exit code, got %v", err)
	}
}

func withFlagArgs(t *testing.T, args []string, fn func()) {
	t.Helper()

	oldArgs := os.Args
	oldCommandLine := flag.CommandLine

	os.Args = append([]string{"dlq-reprocess"}, args...)
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	defer func() {
		os.Args = oldArgs
		flag.CommandLine = oldCommandLine
	}()

	fn()
}

// stubSource раздаёт заранее записанные сообщения по партициям.
type stubSource struct {
	messages    map[int32][]*sarama.ConsumerMessage
	ranges      map[int32][2]int64
	openReaders map[int32]*stubReader

	offsetErr  error
	consumeErr error
	consumed   []int32
	closed     bool
}

func newStubSource(messages map[int32][]*sarama.ConsumerMessage) *stubSource {
	ranges := make(map[int32][2]int64, len(messages))
	for partition, msgs := range messages {
		ranges[partition] = [2]int64{0, int64(len(msgs)) + 1}
	}
	return &stubSource{messages: messages, ranges: ranges}
}

func (s *stubSource) Partitions(string) ([]int32, error) {
	partitions := make([]int32, 0, len(s.ranges))
	for partition := range s.ranges {
		partitions = append(partitions, partition)
	}
	return partitions, nil
}

func (s *stubSource) OffsetRange(_ string, partition int32) (int64, int64, error) {
	if s.offsetErr != nil {
		return 0, 0, s.offsetErr
	}
	r := s.ranges[partition]
	return r[0], r[1], nil
}

func (s *stubSource) Consume(_ string, partition int32, _ int64) (partitionReader, error) {
	s.consumed = append(s.consumed, partition)
	if s.consumeErr != nil {
		return nil, s.consumeErr
	}
	if reader, ok := s.openReaders[partition]; ok {
		return reader, nil
	}

	msgCh := make(chan *sarama.ConsumerMessage, len(s.messages[partition]))
	for _, msg := range s.messages[partition] {
		msgCh <- msg
	}
	close(msgCh)

	errCh := make(chan *sarama.ConsumerError)
	close(errCh)

	return &stubReader{messages: msgCh, errs: errCh}, nil
}

func (s *stubSource) Close() error {
	s.closed = true
	return nil
}

type stubReader struct {
	messages chan *sarama.ConsumerMessage
	errs     chan *sarama.ConsumerError
}

// newOpenStubReader возвращает reader, который никогда не отдаёт сообщений.
func newOpenStubReader() *stubReader {
	return &stubReader{
		messages: make(chan *sarama.ConsumerMessage),
		errs:     make(chan *sarama.ConsumerError),
	}
}

func (r *stubReader) Messages() <-chan *sarama.ConsumerMessage { return r.messages }
func (r *stubReader) Errors() <-chan *sarama.ConsumerError     { return r.errs }
func (r *stubReader) Close() error                             { return nil }

type sentMessage struct {
	topic string
	key   string
	value []byte
}

type stubSink struct {
	sendErr error
	sent    []sentMessage
	closed  bool
}

func (s *stubSink) Send(topic, key string, value []byte) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, sentMessage{topic: topic, key: key, value: value})
	return nil
}

func (s *stubSink) Close() error {
	s.closed = true
	return nil
}
