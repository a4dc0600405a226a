package http

import (
	"context"
	"net/http"

	"finanzas/internal/auth"
	"finanzas/internal/core"
	"finanzas/internal/services"
)

func (s *Server) handleListEnvelopes(w http.ResponseWriter, r *http.Request) {
	envs, err := s.deps.Envelopes.ListEnvelopes(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, envs)
}

func (s *Server) handleCreateEnvelope(w http.ResponseWriter, r *http.Request) {
	var req envelopeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	env, err := s.deps.Envelopes.CreateEnvelope(r.Context(), auth.UserID(r.Context()), req.Name, req.Icon)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondSuccess(w, env.ID)
}

func (s *Server) handleDeleteEnvelope(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.deps.Envelopes.DeleteEnvelope(r.Context(), auth.UserID(r.Context()), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, successBody{Success: true})
}

type transferFunc func(ctx context.Context, userID, envelopeID int64, amount core.Money) (services.TransferResult, error)

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleTransfer(w, r, s.deps.Transfers.Deposit)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleTransfer(w, r, s.deps.Transfers.Withdraw)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request, move transferFunc) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req amountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	amount, err := req.money()
	if err != nil {
		respondError(w, r, err)
		return
	}
	res, err := move(r.Context(), auth.UserID(r.Context()), id, amount)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, transferBody{Success: true, Envelope: res.Envelope})
}
