package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"finanzas/internal/core"
)

const transactionColumns = "id, user_id, occurred_on, kind, category, amount_cents, description, envelope_id"

const balanceQuery = `SELECT
	CAST(COALESCE(SUM(CASE WHEN kind = 'income' THEN amount_cents ELSE 0 END), 0) AS BIGINT),
	CAST(COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount_cents ELSE 0 END), 0) AS BIGINT)
	FROM transactions WHERE user_id = ?`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t          core.Transaction
		date       sqlDate
		kind       string
		amount     int64
		envelopeID sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.UserID, &date, &kind, &t.Category, &amount, &t.Description, &envelopeID); err != nil {
		return core.Transaction{}, err
	}
	t.Date = core.Date{Time: date.t}
	t.Kind = core.Kind(kind)
	t.Amount = core.Cents(amount)
	if envelopeID.Valid {
		id := envelopeID.Int64
		t.EnvelopeID = &id
	}
	return t, nil
}

// ListTransactions returns every transaction of the tenant, newest first.
func (r *Repository) ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = ? ORDER BY occurred_on DESC, id DESC`), userID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *Repository) GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error) {
	return getTransaction(ctx, r.db, r.dialect, userID, id)
}

func getTransaction(ctx context.Context, q querier, d dialect, userID, id int64) (core.Transaction, error) {
	row := q.QueryRowContext(ctx, d.rebind(`SELECT `+transactionColumns+` FROM transactions
		WHERE id = ? AND user_id = ?`), id, userID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.NewNotFoundError("transaction", id)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

// CreateTransaction stores a user-entered transaction. It runs under the
// tenant lock so it cannot interleave with an envelope transfer.
func (r *Repository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	var created core.Transaction
	err := r.WithinTenantTx(ctx, t.UserID, func(tx *TenantTx) error {
		var err error
		created, err = tx.InsertTransaction(ctx, t)
		return err
	})
	return created, err
}

// DeleteTransaction removes a user-entered transaction. It reports false
// when the row does not exist for this tenant. Rows written by envelope
// transfers cannot be deleted.
func (r *Repository) DeleteTransaction(ctx context.Context, userID, id int64) (bool, error) {
	deleted := false
	err := r.WithinTenantTx(ctx, userID, func(tx *TenantTx) error {
		t, err := getTransaction(ctx, tx.tx, r.dialect, userID, id)
		if core.IsNotFoundError(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if t.Synthetic() {
			return core.NewConflictError("transaction %d belongs to an envelope transfer and cannot be deleted", id)
		}
		if _, err := tx.tx.ExecContext(ctx, r.q(`DELETE FROM transactions
			WHERE id = ? AND user_id = ? AND envelope_id IS NULL`), id, userID); err != nil {
			return fmt.Errorf("delete transaction %d: %w", id, err)
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// Stats sums income and expense across all time.
func (r *Repository) Stats(ctx context.Context, userID int64) (core.Stats, error) {
	return stats(ctx, r.db, r.dialect, userID)
}

// GlobalBalance is income minus expense for the tenant.
func (r *Repository) GlobalBalance(ctx context.Context, userID int64) (core.Money, error) {
	s, err := r.Stats(ctx, userID)
	if err != nil {
		return core.Money{}, err
	}
	return s.Balance, nil
}

func stats(ctx context.Context, q querier, d dialect, userID int64) (core.Stats, error) {
	var income, expense int64
	if err := q.QueryRowContext(ctx, d.rebind(balanceQuery), userID).Scan(&income, &expense); err != nil {
		return core.Stats{}, fmt.Errorf("sum transactions: %w", err)
	}
	return core.NewStats(core.Cents(income), core.Cents(expense)), nil
}

// EnvelopeFlows sums the synthetic deposits and withdrawals per envelope.
func (r *Repository) EnvelopeFlows(ctx context.Context, userID int64) (map[int64]core.EnvelopeFlow, error) {
	return envelopeFlows(ctx, r.db, r.dialect, userID)
}

func envelopeFlows(ctx context.Context, q querier, d dialect, userID int64) (map[int64]core.EnvelopeFlow, error) {
	rows, err := q.QueryContext(ctx, d.rebind(`SELECT envelope_id,
		CAST(COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount_cents ELSE 0 END), 0) AS BIGINT),
		CAST(COALESCE(SUM(CASE WHEN kind = 'income' THEN amount_cents ELSE 0 END), 0) AS BIGINT)
		FROM transactions WHERE user_id = ? AND envelope_id IS NOT NULL
		GROUP BY envelope_id`), userID)
	if err != nil {
		return nil, fmt.Errorf("query envelope flows: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]core.EnvelopeFlow)
	for rows.Next() {
		var id, deposits, withdrawals int64
		if err := rows.Scan(&id, &deposits, &withdrawals); err != nil {
			return nil, fmt.Errorf("scan envelope flow: %w", err)
		}
		out[id] = core.EnvelopeFlow{EnvelopeID: id, Deposits: core.Cents(deposits), Withdrawals: core.Cents(withdrawals)}
	}
	return out, rows.Err()
}

// ResetLedger deletes all transactions and envelopes. Users, sessions,
// categories and budgets are kept.
func (r *Repository) ResetLedger(ctx context.Context) (transactions, envelopes int64, err error) {
	err = r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM transactions")
		if err != nil {
			return fmt.Errorf("delete transactions: %w", err)
		}
		transactions, _ = res.RowsAffected()

		res, err = tx.ExecContext(ctx, "DELETE FROM envelopes")
		if err != nil {
			return fmt.Errorf("delete envelopes: %w", err)
		}
		envelopes, _ = res.RowsAffected()
		return nil
	})
	return transactions, envelopes, err
}
