package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"finanzas/internal/events"
	"finanzas/internal/log"
)

const maxHandlerAttempts = 5

// Consumer reads ledger events as a member of a consumer group. Offsets
// are committed only after the handler returns.
type Consumer struct {
	reader  *kafka.Reader
	backoff time.Duration
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       1,
			MaxBytes:       1 << 20,
			MaxWait:        time.Second,
		}),
		backoff: time.Second,
	}
}

// ConsumeEvents delivers events to handler until ctx is cancelled. A
// failing handler is retried with backoff; after maxHandlerAttempts the
// message is logged and committed.
func (c *Consumer) ConsumeEvents(ctx context.Context, handler func(context.Context, events.LedgerEvent) error) error {
	slog.InfoContext(ctx, "Started consuming ledger events", log.FieldComponent, log.ComponentKafka, "topic", c.reader.Config().Topic)
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			return fmt.Errorf("fetch from kafka: %w", err)
		}

		if e, err := events.FromJSON(msg.Value); err != nil {
			slog.ErrorContext(ctx, "Failed to unmarshal ledger event",
				log.FieldComponent, log.ComponentKafka,
				log.FieldError, err,
				"partition", msg.Partition,
				"offset", msg.Offset)
		} else if err := c.handle(ctx, handler, e); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.ErrorContext(ctx, "Dropping ledger event after retries",
				log.FieldComponent, log.ComponentKafka,
				log.FieldError, err,
				"type", e.Type,
				log.FieldUserID, e.UserID)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, handler func(context.Context, events.LedgerEvent) error, e events.LedgerEvent) error {
	var err error
	for attempt := 0; attempt < maxHandlerAttempts; attempt++ {
		if err = handler(ctx, e); err == nil {
			return nil
		}
		wait := c.backoff << attempt
		slog.WarnContext(ctx, "Ledger event handler failed, retrying",
			log.FieldComponent, log.ComponentKafka,
			log.FieldError, err,
			"type", e.Type,
			"attempt", attempt+1,
			"backoff", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
