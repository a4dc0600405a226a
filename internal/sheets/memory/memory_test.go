package memory

import (
	"context"
	"testing"

	"finanzas/internal/core"
)

func TestStoreAppendAndRemove(t *testing.T) {
	ctx := context.Background()
	s := New()

	tx := core.Transaction{ID: 2, UserID: 1, Kind: core.KindIncome, Amount: core.Cents(100)}
	ref, err := s.AppendTransaction(ctx, tx)
	if err != nil || ref != "mem:1:2" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}
	if _, err := s.AppendTransaction(ctx, tx); err != nil {
		t.Fatalf("second append: %v", err)
	}
	if s.Appends() != 1 {
		t.Fatalf("expected one distinct row, got %d", s.Appends())
	}

	if _, err := s.AppendTransaction(ctx, core.Transaction{ID: 1, UserID: 1}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.AppendTransaction(ctx, core.Transaction{ID: 1, UserID: 9}); err != nil {
		t.Fatalf("append: %v", err)
	}
	rows := s.Rows(1)
	if len(rows) != 2 || rows[0].ID != 1 || rows[1].ID != 2 {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	if err := s.RemoveTransaction(ctx, 1, 2); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.RemoveTransaction(ctx, 1, 404); err != nil {
		t.Fatalf("remove missing: %v", err)
	}
	if got := len(s.Rows(1)); got != 1 {
		t.Fatalf("expected 1 row after remove, got %d", got)
	}
	if got := len(s.Rows(9)); got != 1 {
		t.Fatalf("other tenant rows changed: %d", got)
	}
}

func TestStoreRejectsUnsavedTransaction(t *testing.T) {
	if _, err := New().AppendTransaction(context.Background(), core.Transaction{UserID: 1}); err == nil {
		t.Fatal("expected error for transaction without id")
	}
}
