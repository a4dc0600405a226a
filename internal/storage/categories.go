package storage

import (
	"context"
	"database/sql"
	"fmt"

	"finanzas/internal/core"
)

func (r *Repository) ListCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`SELECT id, user_id, name, kind FROM categories
		WHERE user_id = ? ORDER BY name`), userID)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	out := make([]core.Category, 0)
	for rows.Next() {
		var (
			c    core.Category
			kind string
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &kind); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Kind = core.Kind(kind)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	created, err := insertCategory(ctx, r.db, r.dialect, c)
	if r.dialect.isUniqueViolation(err) {
		return core.Category{}, core.NewConflictError("a category named %q already exists", c.Name)
	}
	return created, err
}

func insertCategory(ctx context.Context, q querier, d dialect, c core.Category) (core.Category, error) {
	err := q.QueryRowContext(ctx, d.rebind(`INSERT INTO categories (user_id, name, kind)
		VALUES (?, ?, ?) RETURNING id`), c.UserID, c.Name, string(c.Kind)).Scan(&c.ID)
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

// DeleteCategory is a no-op for ids the tenant does not own.
func (r *Repository) DeleteCategory(ctx context.Context, userID, id int64) error {
	if _, err := r.db.ExecContext(ctx, r.q(`DELETE FROM categories WHERE id = ? AND user_id = ?`), id, userID); err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	return nil
}

func (r *Repository) ListBudgets(ctx context.Context, userID int64) ([]core.CategoryBudget, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`SELECT user_id, category, limit_cents FROM category_budgets
		WHERE user_id = ? ORDER BY category`), userID)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	out := make([]core.CategoryBudget, 0)
	for rows.Next() {
		var (
			b     core.CategoryBudget
			limit int64
		)
		if err := rows.Scan(&b.UserID, &b.Category, &limit); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		b.Limit = core.Cents(limit)
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpsertBudgets writes all budgets in one transaction, replacing existing
// limits for the same category.
func (r *Repository) UpsertBudgets(ctx context.Context, userID int64, budgets []core.CategoryBudget) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, r.q(`INSERT INTO category_budgets (user_id, category, limit_cents)
			VALUES (?, ?, ?)
			ON CONFLICT (user_id, category) DO UPDATE SET limit_cents = excluded.limit_cents`))
		if err != nil {
			return fmt.Errorf("prepare budget upsert: %w", err)
		}
		defer stmt.Close()

		for _, b := range budgets {
			if _, err := stmt.ExecContext(ctx, userID, b.Category, b.Limit.Cents); err != nil {
				return fmt.Errorf("upsert budget %q: %w", b.Category, err)
			}
		}
		return nil
	})
}
