package services

import (
	"context"
	"log/slog"
	"sync"

	"finanzas/internal/core"
	"finanzas/internal/events"
	"finanzas/internal/log"
	"finanzas/internal/storage"
)

// TransferResult is the post-transfer envelope and the ledger row that
// records the movement.
type TransferResult struct {
	Envelope    core.Envelope    `json:"envelope"`
	Transaction core.Transaction `json:"transaction"`
}

type direction int

const (
	deposit direction = iota
	withdraw
)

// TransferEngine moves money between a tenant's unallocated balance and
// its envelopes. Each transfer updates the envelope and appends the
// matching synthetic ledger row in one database transaction.
type TransferEngine struct {
	repo      *storage.Repository
	publisher events.Publisher
	stats     StatsCache
	today     func() core.Date

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewTransferEngine(repo *storage.Repository, publisher events.Publisher, stats StatsCache) *TransferEngine {
	return &TransferEngine{
		repo:      repo,
		publisher: publisher,
		stats:     stats,
		today:     core.Today,
		locks:     make(map[int64]*sync.Mutex),
	}
}

// tenantLock serializes transfers of one tenant inside this process. The
// database transaction does the same across processes.
func (e *TransferEngine) tenantLock(userID int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[userID] = l
	}
	return l
}

// Deposit allocates amount from the unallocated balance to the envelope.
// It fails with InsufficientFundsError when the global balance is lower
// than amount.
func (e *TransferEngine) Deposit(ctx context.Context, userID, envelopeID int64, amount core.Money) (TransferResult, error) {
	return e.transfer(ctx, userID, envelopeID, amount, deposit)
}

// Withdraw returns amount from the envelope to the unallocated balance. It
// fails with InsufficientFundsError when the envelope holds less.
func (e *TransferEngine) Withdraw(ctx context.Context, userID, envelopeID int64, amount core.Money) (TransferResult, error) {
	return e.transfer(ctx, userID, envelopeID, amount, withdraw)
}

func (e *TransferEngine) transfer(ctx context.Context, userID, envelopeID int64, amount core.Money, dir direction) (TransferResult, error) {
	if err := amount.Validate(); err != nil {
		return TransferResult{}, core.NewValidationError("amount", err)
	}

	l := e.tenantLock(userID)
	l.Lock()
	defer l.Unlock()

	var result TransferResult
	err := e.repo.WithinTenantTx(ctx, userID, func(tx *storage.TenantTx) error {
		env, err := tx.LockEnvelope(ctx, envelopeID)
		if err != nil {
			return err
		}

		row := core.Transaction{
			Date:       e.today(),
			Amount:     amount,
			EnvelopeID: &env.ID,
		}
		delta := amount
		switch dir {
		case deposit:
			available, err := tx.GlobalBalance(ctx)
			if err != nil {
				return err
			}
			if available.LessThan(amount) {
				return &core.InsufficientFundsError{Source: "unallocated balance", Available: available, Requested: amount}
			}
			row.Kind = core.KindExpense
			row.Category = core.CategorySavingsDeposit
			row.Description = core.DepositDescription(env.Name)
		case withdraw:
			if env.Balance.LessThan(amount) {
				return &core.InsufficientFundsError{Source: "envelope " + env.Name, Available: env.Balance, Requested: amount}
			}
			delta = core.Cents(-amount.Cents)
			row.Kind = core.KindIncome
			row.Category = core.CategorySavingsWithdrawal
			row.Description = core.WithdrawalDescription(env.Name)
		}

		updated, err := tx.AdjustEnvelopeBalance(ctx, env.ID, delta)
		if err != nil {
			return err
		}
		inserted, err := tx.InsertTransaction(ctx, row)
		if err != nil {
			return err
		}
		result = TransferResult{Envelope: updated, Transaction: inserted}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}
	invalidate(e.stats, userID)

	evType, op := events.EnvelopeDeposit, log.OpDeposit
	if dir == withdraw {
		evType, op = events.EnvelopeWithdraw, log.OpWithdraw
	}
	slog.InfoContext(ctx, "Envelope transfer committed",
		log.FieldComponent, log.ComponentEnvelope,
		log.FieldOperation, op,
		log.FieldEventType, string(evType),
		log.FieldUserID, userID,
		log.FieldEnvelopeID, envelopeID,
		log.FieldAmountCents, amount.Cents,
		"balance_cents", result.Envelope.Balance.Cents)

	ev := events.New(evType, userID)
	ev.EnvelopeID = envelopeID
	ev.TransactionID = result.Transaction.ID
	ev.Amount = amount
	publish(ctx, e.publisher, ev)

	return result, nil
}
