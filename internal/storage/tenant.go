package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"finanzas/internal/core"
)

// TenantTx is a write transaction scoped to one tenant. While it is open no
// other tenant-scoped write for the same user can commit.
type TenantTx struct {
	tx      *sql.Tx
	dialect dialect
	userID  int64
}

// WithinTenantTx runs fn inside a transaction holding the tenant lock. The
// transaction commits only if fn returns nil.
func (r *Repository) WithinTenantTx(ctx context.Context, userID int64, fn func(tx *TenantTx) error) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if err := r.dialect.lockTenant(ctx, tx, userID); err != nil {
			return fmt.Errorf("lock tenant %d: %w", userID, err)
		}
		return fn(&TenantTx{tx: tx, dialect: r.dialect, userID: userID})
	})
}

func (t *TenantTx) UserID() int64 { return t.userID }

// LockEnvelope reads the envelope and, where supported, row-locks it until
// the transaction ends.
func (t *TenantTx) LockEnvelope(ctx context.Context, id int64) (core.Envelope, error) {
	row := t.tx.QueryRowContext(ctx, t.dialect.rebind(`SELECT `+envelopeColumns+` FROM envelopes
		WHERE id = ? AND user_id = ?`+t.dialect.forUpdate()), id, t.userID)
	e, err := scanEnvelope(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Envelope{}, core.NewNotFoundError("envelope", id)
	}
	if err != nil {
		return core.Envelope{}, fmt.Errorf("lock envelope %d: %w", id, err)
	}
	return e, nil
}

// GlobalBalance reads the balance inside the transaction.
func (t *TenantTx) GlobalBalance(ctx context.Context) (core.Money, error) {
	s, err := stats(ctx, t.tx, t.dialect, t.userID)
	if err != nil {
		return core.Money{}, err
	}
	return s.Balance, nil
}

// ListEnvelopes reads the tenant's envelopes inside the transaction.
func (t *TenantTx) ListEnvelopes(ctx context.Context) ([]core.Envelope, error) {
	return listEnvelopes(ctx, t.tx, t.dialect, t.userID)
}

// EnvelopeFlows sums the synthetic rows per envelope inside the transaction.
func (t *TenantTx) EnvelopeFlows(ctx context.Context) (map[int64]core.EnvelopeFlow, error) {
	return envelopeFlows(ctx, t.tx, t.dialect, t.userID)
}

// AdjustEnvelopeBalance adds delta to the envelope balance. The update is
// conditional: it never takes the balance below zero, and reports
// InsufficientFundsError when it would.
func (t *TenantTx) AdjustEnvelopeBalance(ctx context.Context, id int64, delta core.Money) (core.Envelope, error) {
	res, err := t.tx.ExecContext(ctx, t.dialect.rebind(`UPDATE envelopes SET balance_cents = balance_cents + ?
		WHERE id = ? AND user_id = ? AND balance_cents + ? >= 0`), delta.Cents, id, t.userID, delta.Cents)
	if err != nil {
		return core.Envelope{}, fmt.Errorf("update envelope %d balance: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Envelope{}, fmt.Errorf("update envelope %d balance: %w", id, err)
	}
	if n == 0 {
		current, err := t.LockEnvelope(ctx, id)
		if err != nil {
			return core.Envelope{}, err
		}
		return core.Envelope{}, &core.InsufficientFundsError{
			Source:    "envelope " + current.Name,
			Available: current.Balance,
			Requested: core.Cents(-delta.Cents),
		}
	}
	return t.LockEnvelope(ctx, id)
}

// InsertTransaction appends a ledger row for the tenant.
func (t *TenantTx) InsertTransaction(ctx context.Context, in core.Transaction) (core.Transaction, error) {
	in.UserID = t.userID
	var envelopeID sql.NullInt64
	if in.EnvelopeID != nil {
		envelopeID = sql.NullInt64{Int64: *in.EnvelopeID, Valid: true}
	}
	err := t.tx.QueryRowContext(ctx, t.dialect.rebind(`INSERT INTO transactions
		(user_id, occurred_on, kind, category, amount_cents, description, envelope_id)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		in.UserID, in.Date.String(), string(in.Kind), in.Category, in.Amount.Cents, in.Description, envelopeID,
	).Scan(&in.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return in, nil
}

// DeleteEmptyEnvelope removes the envelope if it holds no money.
func (t *TenantTx) DeleteEmptyEnvelope(ctx context.Context, id int64) error {
	e, err := t.LockEnvelope(ctx, id)
	if err != nil {
		return err
	}
	if !e.Deletable() {
		return core.NewConflictError("envelope %q still holds %s; withdraw before deleting", e.Name, e.Balance)
	}
	if _, err := t.tx.ExecContext(ctx, t.dialect.rebind(`DELETE FROM envelopes WHERE id = ? AND user_id = ?`), id, t.userID); err != nil {
		return fmt.Errorf("delete envelope %d: %w", id, err)
	}
	return nil
}

func unixNow() int64 {
	return time.Now().UTC().Unix()
}
