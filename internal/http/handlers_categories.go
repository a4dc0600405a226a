package http

import (
	"net/http"

	"finanzas/internal/auth"
	"finanzas/internal/core"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.deps.Categories.ListCategories(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cats)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	kind, err := core.ParseKind(req.Kind)
	if err != nil {
		respondError(w, r, core.NewValidationError("kind", err))
		return
	}
	c, err := s.deps.Categories.CreateCategory(r.Context(), auth.UserID(r.Context()), req.Name, kind)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, c.ID)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.deps.Categories.DeleteCategory(r.Context(), auth.UserID(r.Context()), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, successBody{Success: true})
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.deps.Categories.ListBudgets(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, budgets)
}

func (s *Server) handleSetBudgets(w http.ResponseWriter, r *http.Request) {
	var req []budgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	budgets := make([]core.CategoryBudget, 0, len(req))
	for _, b := range req {
		budgets = append(budgets, core.CategoryBudget{Category: b.Category, Limit: b.Limit})
	}
	if err := s.deps.Categories.SetBudgets(r.Context(), auth.UserID(r.Context()), budgets); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, successBody{Success: true})
}
