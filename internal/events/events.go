// Package events publishes settled trades to the notification layer. Every event
// is derived from a persisted transaction record and carries its id, so consumers
// can deduplicate replays.
package events

import (
	"context"
	"time"

	"metal-trade-core/internal/models"

	"go.uber.org/zap"
)

const (
	TypeOrderFilled    = "order.filled"
	TypeLockSettled    = "lock.settled"
	TypeUnknownSettled = "trade.settled"
)

// Publisher delivers trade events. Publishing happens after the store commit, so a
// failure never rolls back a settlement.
type Publisher interface {
	Publish(ctx context.Context, txn models.Transaction) error
	Close() error
}

// NewTradeEvent wraps txn in an event keyed by the transaction id.
func NewTradeEvent(txn models.Transaction, now time.Time) models.TradeEvent {
	eventType := TypeUnknownSettled
	switch txn.Type {
	case models.TransactionLimitFill:
		eventType = TypeOrderFilled
	case models.TransactionLockSettlement:
		eventType = TypeLockSettled
	}
	return models.TradeEvent{
		EventId:     txn.Id,
		Type:        eventType,
		Transaction: txn,
		PublishedAt: now.UTC(),
	}
}

// LogPublisher writes events to the structured log only. It is used when no
// broker is configured.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher { return &LogPublisher{} }

func (p *LogPublisher) Publish(_ context.Context, txn models.Transaction) error {
	event := NewTradeEvent(txn, time.Now())
	zap.L().Info("Trade event",
		zap.String("event_id", event.EventId),
		zap.String("type", event.Type),
		zap.String("address", txn.Address),
		zap.String("asset", txn.Asset),
		zap.String("grams", txn.Grams.String()),
		zap.String("price", txn.Price.String()))
	return nil
}

func (p *LogPublisher) Close() error { return nil }
