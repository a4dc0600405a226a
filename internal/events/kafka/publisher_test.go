package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/events"
)

func TestMessageKeyedByUser(t *testing.T) {
	e := events.New(events.EnvelopeDeposit, 42)
	e.Amount = core.Cents(500)

	msg, err := message(e)
	if err != nil {
		t.Fatalf("message() error = %v", err)
	}
	if string(msg.Key) != "42" {
		t.Fatalf("key = %q, want 42", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != string(events.EnvelopeDeposit) {
		t.Fatalf("unexpected headers: %+v", msg.Headers)
	}
	got, err := events.FromJSON(msg.Value)
	if err != nil {
		t.Fatalf("decode value: %v", err)
	}
	if got.UserID != 42 || got.Amount.Cents != 500 {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestNewPublisher(t *testing.T) {
	p := NewPublisher([]string{"localhost:9092"}, "ledger")
	if p.writer.Topic != "ledger" {
		t.Fatalf("topic = %q", p.writer.Topic)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestConsumerRetriesHandler(t *testing.T) {
	c := NewConsumer([]string{"localhost:9092"}, "ledger", "finanzas-worker")
	defer c.Close()
	c.backoff = time.Millisecond

	calls := 0
	err := c.handle(context.Background(), func(context.Context, events.LedgerEvent) error {
		calls++
		if calls < 3 {
			return errors.New("sheet unavailable")
		}
		return nil
	}, events.New(events.TransactionCreated, 1))
	if err != nil || calls != 3 {
		t.Fatalf("handle() = %v after %d calls, want success on the third", err, calls)
	}

	calls = 0
	err = c.handle(context.Background(), func(context.Context, events.LedgerEvent) error {
		calls++
		return errors.New("always")
	}, events.New(events.TransactionCreated, 1))
	if err == nil || calls != maxHandlerAttempts {
		t.Fatalf("handle() = %v after %d calls, want error after %d", err, calls, maxHandlerAttempts)
	}
}
