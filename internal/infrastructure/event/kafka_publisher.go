package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Message header names
const (
	HeaderEventID       = "event_id"
	HeaderEventType     = "event_type"
	HeaderAggregateType = "aggregate_type"
)

var (
	// ErrPublisherClosed is returned by Publish after Stop
	ErrPublisherClosed = errors.New("event publisher is closed")
	// ErrPublisherFull is returned when the send buffer is full
	ErrPublisherFull = errors.New("event publisher buffer is full")
)

// MessageWriter is the part of kafka.Writer the publisher needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the Kafka publisher
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BufferSize   int
	WriteTimeout time.Duration
}

// KafkaPublisher sends domain events to a Kafka topic keyed by aggregate,
// so events of one order land on one partition in order.
// Publish only enqueues; a background loop writes to the broker.
type KafkaPublisher struct {
	writer       MessageWriter
	serializer   *EventSerializer
	logger       *zap.Logger
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	inbox  chan kafka.Message
	done   chan struct{}
}

// NewKafkaWriter creates the kafka-go writer for cfg
func NewKafkaWriter(cfg KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// NewKafkaPublisher creates a publisher over writer
func NewKafkaPublisher(writer MessageWriter, serializer *EventSerializer, cfg KafkaConfig, logger *zap.Logger) *KafkaPublisher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{
		writer:       writer,
		serializer:   serializer,
		logger:       logger.Named("kafka_publisher"),
		writeTimeout: cfg.WriteTimeout,
		inbox:        make(chan kafka.Message, cfg.BufferSize),
		done:         make(chan struct{}),
	}
}

// Start runs the write loop until Stop
func (p *KafkaPublisher) Start(_ context.Context) error {
	go p.loop()
	p.logger.Info("Kafka publisher started")
	return nil
}

// Stop flushes queued messages and closes the writer
func (p *KafkaPublisher) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	p.logger.Info("Kafka publisher stopped")
	return nil
}

// Publish enqueues events for delivery
func (p *KafkaPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		payload, err := p.serializer.Serialize(e)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(e.AggregateKey()),
			Value: payload,
			Time:  e.OccurredAt(),
			Headers: []kafka.Header{
				{Key: HeaderEventID, Value: []byte(e.EventID().String())},
				{Key: HeaderEventType, Value: []byte(e.EventType())},
				{Key: HeaderAggregateType, Value: []byte(e.AggregateType())},
			},
		})
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	for _, m := range msgs {
		select {
		case p.inbox <- m:
		default:
			return ErrPublisherFull
		}
	}
	return nil
}

func (p *KafkaPublisher) loop() {
	defer close(p.done)
	for m := range p.inbox {
		ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
		err := p.writer.WriteMessages(ctx, m)
		cancel()
		if err != nil {
			p.logger.Error("Failed to write event",
				zap.String("key", string(m.Key)),
				zap.String("event_type", headerValue(m, HeaderEventType)),
				zap.Error(err),
			)
		}
	}
}

func headerValue(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

var _ shared.EventPublisher = (*KafkaPublisher)(nil)
