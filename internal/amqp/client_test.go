package amqp

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finanzas/internal/core"
	"finanzas/internal/events"
)

// recordingAck captures what a delivery was settled with.
type recordingAck struct {
	mu      sync.Mutex
	acks    []uint64
	nacks   []uint64
	requeue []bool
}

func (a *recordingAck) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, tag)
	return nil
}

func (a *recordingAck) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks = append(a.nacks, tag)
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *recordingAck) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func depositEvent() events.LedgerEvent {
	e := events.New(events.EnvelopeDeposit, 42)
	e.EnvelopeID = 7
	e.TransactionID = 99
	e.Amount = core.Cents(12550)
	e.Timestamp = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return e
}

func TestPublishing_EncodesLedgerEvent(t *testing.T) {
	e := depositEvent()

	msg, err := publishing(e)
	require.NoError(t, err)

	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp091.Persistent, msg.DeliveryMode)
	assert.Equal(t, "envelope.deposit", msg.Type)
	assert.True(t, msg.Timestamp.Equal(e.Timestamp))
	assert.Contains(t, string(msg.Body), `"amount":125.50`)

	decoded, err := events.FromJSON(msg.Body)
	require.NoError(t, err)
	assert.Equal(t, e.Type, decoded.Type)
	assert.Equal(t, int64(42), decoded.UserID)
	assert.Equal(t, int64(7), decoded.EnvelopeID)
	assert.Equal(t, int64(99), decoded.TransactionID)
	assert.Equal(t, core.Cents(12550), decoded.Amount)
	assert.True(t, decoded.Timestamp.Equal(e.Timestamp))
}

func TestHandleDelivery(t *testing.T) {
	msg, err := publishing(depositEvent())
	require.NoError(t, err)

	tests := []struct {
		name        string
		body        []byte
		handlerErr  error
		wantHandled bool
		wantAck     bool
		wantRequeue []bool
	}{
		{name: "handled event is acked", body: msg.Body, wantHandled: true, wantAck: true},
		{name: "handler failure is requeued", body: msg.Body, handlerErr: errors.New("sheets unavailable"), wantHandled: true, wantRequeue: []bool{true}},
		{name: "undecodable body is dropped", body: []byte(`{"type":`), wantRequeue: []bool{false}},
		{name: "bad amount is dropped", body: []byte(`{"type":"envelope.deposit","user_id":1,"amount":"abc"}`), wantRequeue: []bool{false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &recordingAck{}
			d := amqp091.Delivery{Acknowledger: ack, DeliveryTag: 5, Body: tt.body}

			var got []events.LedgerEvent
			handleDelivery(context.Background(), d, func(_ context.Context, e events.LedgerEvent) error {
				got = append(got, e)
				return tt.handlerErr
			})

			if tt.wantHandled {
				require.Len(t, got, 1)
				assert.Equal(t, int64(42), got[0].UserID)
				assert.Equal(t, core.Cents(12550), got[0].Amount)
			} else {
				assert.Empty(t, got)
			}
			if tt.wantAck {
				assert.Equal(t, []uint64{5}, ack.acks)
				assert.Empty(t, ack.nacks)
			} else {
				assert.Empty(t, ack.acks)
				assert.Equal(t, []uint64{5}, ack.nacks)
				assert.Equal(t, tt.wantRequeue, ack.requeue)
			}
		})
	}
}

func TestHandleDelivery_RequeuedEventIsRedelivered(t *testing.T) {
	msg, err := publishing(depositEvent())
	require.NoError(t, err)

	ack := &recordingAck{}
	attempts := 0
	handler := func(context.Context, events.LedgerEvent) error {
		attempts++
		if attempts == 1 {
			return errors.New("transient")
		}
		return nil
	}

	handleDelivery(context.Background(), amqp091.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: msg.Body}, handler)
	handleDelivery(context.Background(), amqp091.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: msg.Body, Redelivered: true}, handler)

	assert.Equal(t, 2, attempts)
	assert.Equal(t, []uint64{1}, ack.nacks)
	assert.Equal(t, []bool{true}, ack.requeue)
	assert.Equal(t, []uint64{2}, ack.acks)
}

func TestPublish_OpenBreakerRejectsWithoutDialing(t *testing.T) {
	c := &Client{url: "amqp://unreachable.invalid:1/", exchangeName: "ledger", queueName: "ledger.events"}
	for i := 0; i < maxFailures; i++ {
		c.recordFailure()
	}

	err := c.Publish(context.Background(), depositEvent())
	require.ErrorIs(t, err, errCircuitOpen)
	assert.Nil(t, c.conn)

	c.lastFailure = time.Now().Add(-openTimeout - time.Second)
	assert.False(t, c.isCircuitOpen())
	assert.Equal(t, StateHalfOpen, atomic.LoadInt32(&c.state))

	c.recordSuccess()
	assert.Equal(t, StateClosed, atomic.LoadInt32(&c.state))
	assert.Zero(t, atomic.LoadInt64(&c.failureCount))
}

func TestPublish_CancelledContext(t *testing.T) {
	c := &Client{url: "amqp://unreachable.invalid:1/"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, c.Publish(ctx, depositEvent()), context.Canceled)
}

func TestConsumerReconnectBackoff(t *testing.T) {
	assert.Equal(t, time.Second, exponentialBackoff(0))
	assert.Equal(t, 8*time.Second, exponentialBackoff(3))
	assert.Equal(t, maxBackoff, exponentialBackoff(5))
	assert.Equal(t, maxBackoff, exponentialBackoff(12))

	assert.True(t, isConnectionError(amqp091.ErrClosed))
	assert.True(t, isConnectionError(errors.New("read tcp: broken pipe")))
	assert.False(t, isConnectionError(errors.New("handler failed")))
	assert.False(t, isConnectionError(nil))
}
