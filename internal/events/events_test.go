package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"metal-trade-core/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func sampleTransaction() models.Transaction {
	return models.Transaction{
		Id:            "txn-1",
		Address:       "0xabc",
		Type:          models.TransactionLimitFill,
		Side:          models.SideBuy,
		Asset:         "AUXG",
		Grams:         decimal.NewFromInt(10),
		Price:         decimal.RequireFromString("138.5"),
		PaymentAsset:  "AUXM",
		PaymentAmount: decimal.NewFromInt(1385),
		Reference:     "order-1",
		CreatedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestNewTradeEventTypes(t *testing.T) {
	txn := sampleTransaction()
	if got := NewTradeEvent(txn, time.Now()).Type; got != TypeOrderFilled {
		t.Fatalf("expected %s, got %s", TypeOrderFilled, got)
	}
	txn.Type = models.TransactionLockSettlement
	if got := NewTradeEvent(txn, time.Now()).Type; got != TypeLockSettled {
		t.Fatalf("expected %s, got %s", TypeLockSettled, got)
	}
	if got := NewTradeEvent(txn, time.Now()).EventId; got != txn.Id {
		t.Fatalf("event id should be the transaction id, got %s", got)
	}
}

func TestKafkaPublisherWritesKeyedJSON(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, topic: "trades", now: time.Now}

	if err := p.Publish(context.Background(), sampleTransaction()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "0xabc" {
		t.Fatalf("expected key 0xabc, got %s", msg.Key)
	}

	var event models.TradeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if event.EventId != "txn-1" || event.Type != TypeOrderFilled {
		t.Fatalf("unexpected event: %+v", event)
	}
	if !event.Transaction.PaymentAmount.Equal(decimal.NewFromInt(1385)) {
		t.Fatalf("unexpected payment amount %s", event.Transaction.PaymentAmount)
	}

	if err := p.Close(); err != nil || !w.closed {
		t.Fatalf("expected writer to be closed")
	}
}

func TestKafkaPublisherWrapsWriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := &KafkaPublisher{writer: &fakeWriter{err: boom}, topic: "trades", now: time.Now}

	if err := p.Publish(context.Background(), sampleTransaction()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped broker error, got %v", err)
	}
}

func TestNewKafkaPublisherValidates(t *testing.T) {
	if _, err := NewKafkaPublisher(models.KafkaConfig{Topic: "trades"}); err == nil {
		t.Fatalf("expected error without brokers")
	}
	if _, err := NewKafkaPublisher(models.KafkaConfig{Brokers: []string{"localhost:9092"}}); err == nil {
		t.Fatalf("expected error without topic")
	}
}
