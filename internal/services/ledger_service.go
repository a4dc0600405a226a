package services

import (
	"context"
	"fmt"
	"log/slog"

	"finanzas/internal/core"
	"finanzas/internal/events"
	"finanzas/internal/log"
	"finanzas/internal/storage"
)

// LedgerService owns the tenant's transaction history and the balance
// derived from it.
type LedgerService struct {
	repo      *storage.Repository
	publisher events.Publisher
	stats     StatsCache
}

// NewLedgerService wires the ledger. publisher and stats may be nil.
func NewLedgerService(repo *storage.Repository, publisher events.Publisher, stats StatsCache) *LedgerService {
	return &LedgerService{repo: repo, publisher: publisher, stats: stats}
}

// ListTransactions returns all rows, newest first.
func (s *LedgerService) ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error) {
	return s.repo.ListTransactions(ctx, userID)
}

// CreateTransaction records a user-entered income or expense.
func (s *LedgerService) CreateTransaction(ctx context.Context, userID int64, t core.Transaction) (core.Transaction, error) {
	t.ID = 0
	t.UserID = userID
	t.EnvelopeID = nil
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	created, err := s.repo.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	invalidate(s.stats, userID)

	slog.InfoContext(ctx, "Transaction created",
		log.FieldComponent, log.ComponentLedger,
		log.FieldOperation, log.OpCreate,
		log.FieldUserID, userID,
		log.FieldTransactionID, created.ID,
		"kind", created.Kind,
		log.FieldAmountCents, created.Amount.Cents)

	e := events.New(events.TransactionCreated, userID)
	e.TransactionID = created.ID
	e.Amount = created.Amount
	publish(ctx, s.publisher, e)

	return created, nil
}

// DeleteTransaction removes a user-entered row. Unknown or foreign ids are
// a silent no-op. Rows written by envelope transfers are refused with
// ConflictError.
func (s *LedgerService) DeleteTransaction(ctx context.Context, userID, id int64) error {
	deleted, err := s.repo.DeleteTransaction(ctx, userID, id)
	if err != nil {
		return err
	}
	if !deleted {
		slog.DebugContext(ctx, "Delete of absent transaction ignored",
			log.FieldOperation, log.OpDelete,
			log.FieldUserID, userID, log.FieldTransactionID, id)
		return nil
	}
	invalidate(s.stats, userID)

	e := events.New(events.TransactionDeleted, userID)
	e.TransactionID = id
	publish(ctx, s.publisher, e)
	return nil
}

// GlobalBalance is total income minus total expense.
func (s *LedgerService) GlobalBalance(ctx context.Context, userID int64) (core.Money, error) {
	st, err := s.Stats(ctx, userID)
	if err != nil {
		return core.Money{}, err
	}
	return st.Balance, nil
}

// Stats returns the tenant's totals. A write that commits while the
// totals are being read keeps them out of the cache.
func (s *LedgerService) Stats(ctx context.Context, userID int64) (core.Stats, error) {
	if s.stats == nil {
		return s.repo.Stats(ctx, userID)
	}
	if st, ok := s.stats.Get(userID); ok {
		return st, nil
	}
	version := s.stats.Version(userID)
	st, err := s.repo.Stats(ctx, userID)
	if err != nil {
		return core.Stats{}, err
	}
	s.stats.SetIfVersion(userID, version, st)
	return st, nil
}
