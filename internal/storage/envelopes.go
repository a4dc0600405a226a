package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"finanzas/internal/core"
)

const envelopeColumns = "id, user_id, name, balance_cents, icon, created_at"

func scanEnvelope(row rowScanner) (core.Envelope, error) {
	var (
		e         core.Envelope
		balance   int64
		createdAt int64
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.Name, &balance, &e.Icon, &createdAt); err != nil {
		return core.Envelope{}, err
	}
	e.Balance = core.Cents(balance)
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	return e, nil
}

// ListEnvelopes returns the tenant's envelopes ordered by name.
func (r *Repository) ListEnvelopes(ctx context.Context, userID int64) ([]core.Envelope, error) {
	return listEnvelopes(ctx, r.db, r.dialect, userID)
}

func listEnvelopes(ctx context.Context, q querier, d dialect, userID int64) ([]core.Envelope, error) {
	rows, err := q.QueryContext(ctx, d.rebind(`SELECT `+envelopeColumns+` FROM envelopes
		WHERE user_id = ? ORDER BY name, id`), userID)
	if err != nil {
		return nil, fmt.Errorf("query envelopes: %w", err)
	}
	defer rows.Close()

	out := make([]core.Envelope, 0)
	for rows.Next() {
		e, err := scanEnvelope(rows)
		if err != nil {
			return nil, fmt.Errorf("scan envelope: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate envelopes: %w", err)
	}
	return out, nil
}

func (r *Repository) GetEnvelope(ctx context.Context, userID, id int64) (core.Envelope, error) {
	row := r.db.QueryRowContext(ctx, r.q(`SELECT `+envelopeColumns+` FROM envelopes
		WHERE id = ? AND user_id = ?`), id, userID)
	e, err := scanEnvelope(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Envelope{}, core.NewNotFoundError("envelope", id)
	}
	if err != nil {
		return core.Envelope{}, fmt.Errorf("get envelope %d: %w", id, err)
	}
	return e, nil
}

// CreateEnvelope inserts an empty envelope. A duplicate name for the same
// tenant yields ConflictError.
func (r *Repository) CreateEnvelope(ctx context.Context, e core.Envelope) (core.Envelope, error) {
	e.Balance = core.Money{}
	e.CreatedAt = time.Unix(unixNow(), 0).UTC()
	err := r.db.QueryRowContext(ctx, r.q(`INSERT INTO envelopes (user_id, name, balance_cents, icon, created_at)
		VALUES (?, ?, 0, ?, ?) RETURNING id`), e.UserID, e.Name, e.Icon, e.CreatedAt.Unix()).Scan(&e.ID)
	if r.dialect.isUniqueViolation(err) {
		return core.Envelope{}, core.NewConflictError("an envelope named %q already exists", e.Name)
	}
	if err != nil {
		return core.Envelope{}, fmt.Errorf("insert envelope: %w", err)
	}
	return e, nil
}

// DeleteEnvelope removes an empty envelope. NotFoundError if it is absent
// or foreign, ConflictError if it still holds money.
func (r *Repository) DeleteEnvelope(ctx context.Context, userID, id int64) error {
	return r.WithinTenantTx(ctx, userID, func(tx *TenantTx) error {
		return tx.DeleteEmptyEnvelope(ctx, id)
	})
}

// ListTenants returns the ids of users that own at least one envelope or
// transaction.
func (r *Repository) ListTenants(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM envelopes
		UNION SELECT user_id FROM transactions ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("query tenants: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
