// Package worker consumes ledger events and runs the periodic maintenance
// jobs of the finanzas-worker process.
package worker

import (
	"context"
	"fmt"

	"finanzas/internal/core"
	"finanzas/internal/events"
	"finanzas/internal/log"
	"finanzas/internal/services"
	"finanzas/internal/sheets"
)

// TransactionSource loads ledger rows by id.
type TransactionSource interface {
	GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error)
}

// Auditor checks one tenant's envelopes against the ledger.
type Auditor interface {
	CheckTenant(ctx context.Context, userID int64) (services.Report, error)
}

// LedgerWorker mirrors ledger rows to a spreadsheet and audits tenants
// after every envelope transfer.
type LedgerWorker struct {
	source  TransactionSource
	mirror  sheets.LedgerMirror
	auditor Auditor
	logger  *log.Logger
}

// NewLedgerWorker builds a worker. A nil mirror disables mirroring.
func NewLedgerWorker(source TransactionSource, mirror sheets.LedgerMirror, auditor Auditor, logger *log.Logger) *LedgerWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &LedgerWorker{
		source:  source,
		mirror:  mirror,
		auditor: auditor,
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent processes one event. A returned error asks the broker to
// redeliver it.
func (w *LedgerWorker) HandleEvent(ctx context.Context, e events.LedgerEvent) error {
	logger := w.logger.With(log.FieldEventType, string(e.Type), log.FieldUserID, e.UserID)

	switch e.Type {
	case events.TransactionCreated, events.EnvelopeDeposit, events.EnvelopeWithdraw:
		if err := w.mirrorRow(ctx, e); err != nil {
			return err
		}
		if e.Transfer() {
			return w.audit(ctx, e.UserID)
		}
	case events.TransactionDeleted:
		if w.mirror == nil {
			return nil
		}
		if err := w.mirror.RemoveTransaction(ctx, e.UserID, e.TransactionID); err != nil {
			return fmt.Errorf("remove mirrored transaction %d: %w", e.TransactionID, err)
		}
		logger.Info("Removed mirrored transaction", log.FieldTransactionID, e.TransactionID)
	default:
		logger.Debug("Ignoring event")
	}
	return nil
}

func (w *LedgerWorker) mirrorRow(ctx context.Context, e events.LedgerEvent) error {
	if w.mirror == nil || e.TransactionID <= 0 {
		return nil
	}
	t, err := w.source.GetTransaction(ctx, e.UserID, e.TransactionID)
	if core.IsNotFoundError(err) {
		// deleted before we got to it; the delete event follows
		w.logger.Info("Skipping mirror of deleted transaction",
			log.FieldUserID, e.UserID,
			log.FieldTransactionID, e.TransactionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load transaction %d: %w", e.TransactionID, err)
	}
	ref, err := w.mirror.AppendTransaction(ctx, t)
	if err != nil {
		return fmt.Errorf("mirror transaction %d: %w", t.ID, err)
	}
	w.logger.Info("Mirrored transaction",
		log.FieldOperation, log.OpMirror,
		log.FieldUserID, t.UserID,
		log.FieldTransactionID, t.ID,
		"row_ref", ref)
	return nil
}

// audit logs drift; only a failed check is returned.
func (w *LedgerWorker) audit(ctx context.Context, userID int64) error {
	if w.auditor == nil {
		return nil
	}
	rep, err := w.auditor.CheckTenant(ctx, userID)
	if err != nil {
		return fmt.Errorf("audit tenant %d: %w", userID, err)
	}
	if !rep.Healthy() {
		for _, d := range rep.Drift {
			w.logger.Warn("Envelope drift detected",
				log.FieldUserID, userID,
				log.FieldEnvelopeID, d.EnvelopeID,
				"balance_cents", d.Balance.Cents,
				"expected_cents", d.Expected.Cents)
		}
	}
	return nil
}
