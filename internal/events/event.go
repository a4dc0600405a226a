// Package events defines the ledger events emitted after committed writes
// and the publisher port the services depend on.
package events

import (
	"context"
	"encoding/json"
	"time"

	"finanzas/internal/core"
)

type Type string

const (
	TransactionCreated Type = "transaction.created"
	TransactionDeleted Type = "transaction.deleted"
	EnvelopeCreated    Type = "envelope.created"
	EnvelopeDeleted    Type = "envelope.deleted"
	EnvelopeDeposit    Type = "envelope.deposit"
	EnvelopeWithdraw   Type = "envelope.withdraw"
)

// LedgerEvent is a lightweight notification. Consumers fetch full rows from
// the database by id.
type LedgerEvent struct {
	Type          Type       `json:"type"`
	UserID        int64      `json:"user_id"`
	TransactionID int64      `json:"transaction_id,omitempty"`
	EnvelopeID    int64      `json:"envelope_id,omitempty"`
	Amount        core.Money `json:"amount"`
	Timestamp     time.Time  `json:"timestamp"`
}

func New(t Type, userID int64) LedgerEvent {
	return LedgerEvent{Type: t, UserID: userID, Timestamp: time.Now().UTC()}
}

// Transfer reports whether the event moved money in or out of an envelope.
func (e LedgerEvent) Transfer() bool {
	return e.Type == EnvelopeDeposit || e.Type == EnvelopeWithdraw
}

func (e LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func FromJSON(data []byte) (LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return LedgerEvent{}, err
	}
	return e, nil
}

// Publisher delivers events to a broker. Callers treat failures as
// non-fatal: the database write has already committed.
type Publisher interface {
	Publish(ctx context.Context, e LedgerEvent) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, LedgerEvent) error { return nil }
func (Nop) Close() error                               { return nil }
