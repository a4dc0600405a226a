package events

import (
	"testing"
	"time"

	"finanzas/internal/core"
)

func TestNew(t *testing.T) {
	e := New(EnvelopeDeposit, 7)
	if e.UserID != 7 || e.Type != EnvelopeDeposit {
		t.Fatalf("unexpected event: %+v", e)
	}
	if time.Since(e.Timestamp) > time.Second {
		t.Fatalf("timestamp should be recent")
	}
	if !e.Transfer() || New(TransactionCreated, 7).Transfer() {
		t.Fatalf("Transfer() misclassified")
	}
}

func TestLedgerEventJSON(t *testing.T) {
	in := LedgerEvent{
		Type:          EnvelopeWithdraw,
		UserID:        3,
		TransactionID: 42,
		EnvelopeID:    9,
		Amount:        core.Cents(12050),
		Timestamp:     time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	data, err := in.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	out, err := FromJSON(data)
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestFromJSONInvalid(t *testing.T) {
	if _, err := FromJSON([]byte(`{"user_id": "nope"}`)); err == nil {
		t.Fatalf("expected error")
	}
}
