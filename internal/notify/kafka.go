package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/relief-network/coordinator/internal/config"
	"github.com/relief-network/coordinator/internal/observability"
)

// KafkaPublisher mirrors change events onto a Kafka topic.
type KafkaPublisher struct {
	writer  *kafkago.Writer
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewKafkaPublisher creates an async producer for the configured topic.
// Delivery failures are logged from the writer's completion callback.
func NewKafkaPublisher(cfg config.KafkaConfig, metrics *observability.Metrics, logger *slog.Logger) *KafkaPublisher {
	logger = logger.With("component", "kafka")
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		Async:        true,
		Completion: func(msgs []kafkago.Message, err error) {
			if err != nil {
				logger.Error("failed to publish events", "count", len(msgs), "error", err)
			}
		},
	}
	return &KafkaPublisher{writer: w, metrics: metrics, logger: logger}
}

func (p *KafkaPublisher) Broadcast(ctx context.Context, event string, payload any) {
	msg, err := serializeToMessage(event, payload, time.Now())
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to encode event", "event", event, "error", err)
		return
	}
	// Async writers return immediately; the request context must not cancel delivery.
	if err := p.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		p.logger.ErrorContext(ctx, "failed to queue event", "event", event, "error", err)
		return
	}
	if p.metrics != nil {
		p.metrics.Broadcasts.WithLabelValues("kafka", event).Inc()
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage wraps an event in the push frame and keys it by event name.
func serializeToMessage(event string, payload any, at time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(Message{Event: event, Payload: payload})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s event: %w", event, err)
	}
	return kafkago.Message{
		Key:   []byte(event),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event", Value: []byte(event)},
			{Key: "emitted_at", Value: []byte(at.UTC().Format(time.RFC3339))},
		},
	}, nil
}
