package services

import (
	"context"
	"strings"

	"finanzas/internal/core"
	"finanzas/internal/storage"
)

// CategoryService stores the tenant's category list and per-category
// budget limits. Neither affects ledger arithmetic.
type CategoryService struct {
	repo *storage.Repository
}

func NewCategoryService(repo *storage.Repository) *CategoryService {
	return &CategoryService{repo: repo}
}

func (s *CategoryService) ListCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	return s.repo.ListCategories(ctx, userID)
}

func (s *CategoryService) CreateCategory(ctx context.Context, userID int64, name string, kind core.Kind) (core.Category, error) {
	c := core.Category{UserID: userID, Name: name, Kind: kind}
	if err := c.Normalize(); err != nil {
		return core.Category{}, err
	}
	return s.repo.CreateCategory(ctx, c)
}

// DeleteCategory is a no-op when the category does not belong to userID.
func (s *CategoryService) DeleteCategory(ctx context.Context, userID, id int64) error {
	return s.repo.DeleteCategory(ctx, userID, id)
}

func (s *CategoryService) ListBudgets(ctx context.Context, userID int64) ([]core.CategoryBudget, error) {
	return s.repo.ListBudgets(ctx, userID)
}

// SetBudgets upserts the given limits in one transaction. Entries without
// a category are skipped; any negative limit rejects the whole batch.
func (s *CategoryService) SetBudgets(ctx context.Context, userID int64, budgets []core.CategoryBudget) error {
	valid := make([]core.CategoryBudget, 0, len(budgets))
	for _, b := range budgets {
		b.Category = strings.TrimSpace(b.Category)
		if b.Category == "" {
			continue
		}
		b.UserID = userID
		if err := b.Validate(); err != nil {
			return err
		}
		valid = append(valid, b)
	}
	if len(valid) == 0 {
		return nil
	}
	return s.repo.UpsertBudgets(ctx, userID, valid)
}
