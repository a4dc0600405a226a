package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"finanzas/internal/core"
	"finanzas/internal/log"
)

const msgInternal = "internal server error"

// errorBody is the payload of every failed request.
type errorBody struct {
	Error string `json:"error"`
}

type successBody struct {
	Success bool  `json:"success"`
	ID      int64 `json:"id,omitempty"`
}

type transferBody struct {
	Success  bool          `json:"success"`
	Envelope core.Envelope `json:"envelope"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondSuccess(w http.ResponseWriter, id int64) {
	respondJSON(w, http.StatusOK, successBody{Success: true, ID: id})
}

// statusFor maps a domain error to its HTTP status and client message.
// Unknown errors hide their details behind a generic message.
func statusFor(err error) (int, string) {
	var (
		validation   *core.ValidationError
		notFound     *core.NotFoundError
		conflict     *core.ConflictError
		insufficient *core.InsufficientFundsError
		unauthorized *core.UnauthorizedError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Error()
	case errors.As(err, &insufficient):
		return http.StatusBadRequest, insufficient.Error()
	case errors.As(err, &conflict):
		return http.StatusBadRequest, conflict.Error()
	case errors.As(err, &notFound):
		return http.StatusNotFound, notFound.Error()
	case errors.As(err, &unauthorized):
		return http.StatusUnauthorized, unauthorized.Error()
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// respondError writes {"error": msg} with the status matching err. Server
// errors are logged with their full chain.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger := log.FromContext(r.Context())
		logger.Fields(r.Context(), log.StatusLevel(status), "Request failed",
			log.NewFields().
				WithComponent(log.ComponentHTTP).
				WithError(err, log.ErrorTypeInternal))
	}
	respondJSON(w, status, errorBody{Error: msg})
}

func respondStatus(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorBody{Error: msg})
}
