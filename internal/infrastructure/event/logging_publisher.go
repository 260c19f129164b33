package event

import (
	"context"

	"github.com/erp/order-reconciler/internal/domain/shared"
	"github.com/erp/order-reconciler/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// LoggingPublisher writes events to the log. Used when Kafka is disabled.
type LoggingPublisher struct {
	serializer *EventSerializer
	logger     *zap.Logger
}

// NewLoggingPublisher creates a logging publisher
func NewLoggingPublisher(serializer *EventSerializer, log *zap.Logger) *LoggingPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoggingPublisher{serializer: serializer, logger: log.Named("events")}
}

// Publish logs each event with its JSON payload
func (p *LoggingPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	log := logger.L(ctx, p.logger)
	for _, e := range events {
		payload, err := p.serializer.Serialize(e)
		if err != nil {
			return err
		}
		log.Info("Domain event",
			zap.String("event_id", e.EventID().String()),
			zap.String("event_type", e.EventType()),
			zap.String("aggregate_key", e.AggregateKey()),
			zap.ByteString("payload", payload),
		)
	}
	return nil
}

var _ shared.EventPublisher = (*LoggingPublisher)(nil)
