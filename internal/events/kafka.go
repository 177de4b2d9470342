package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"metal-trade-core/internal/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher sends each event as JSON keyed by address, so events for one
// address stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

func NewKafkaPublisher(config models.KafkaConfig) (*KafkaPublisher, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	maxAttempts := config.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(config.Brokers...),
		Topic:                  config.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            maxAttempts,
		WriteBackoffMin:        100 * time.Millisecond,
		WriteBackoffMax:        time.Second,
	}

	zap.L().Info("Kafka publisher created", zap.Strings("brokers", config.Brokers), zap.String("topic", config.Topic))
	return &KafkaPublisher{writer: writer, topic: config.Topic, now: time.Now}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, txn models.Transaction) error {
	event := NewTradeEvent(txn, p.now())
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal trade event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(txn.Address),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.EventId)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		zap.L().Error("Failed to publish trade event",
			zap.String("topic", p.topic),
			zap.String("event_id", event.EventId),
			zap.Error(err))
		return fmt.Errorf("failed to publish event %s: %w", event.EventId, err)
	}

	zap.L().Debug("Trade event published", zap.String("topic", p.topic), zap.String("event_id", event.EventId))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
