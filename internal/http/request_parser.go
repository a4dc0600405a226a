package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"finanzas/internal/core"
)

const maxBodyBytes = 64 << 10

var errEmptyBody = errors.New("request body is required")

// decodeJSON reads a single JSON value from the body into dst. Malformed
// payloads, including bad amounts and dates, become ValidationErrors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return core.NewValidationError("", errEmptyBody)
		case errors.As(err, &tooLarge):
			return &core.ValidationError{Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), Err: err}
		case errors.Is(err, core.ErrInvalidAmount):
			return core.NewValidationError("amount", core.ErrInvalidAmount)
		case errors.Is(err, core.ErrInvalidDate):
			return core.NewValidationError("date", core.ErrInvalidDate)
		default:
			return &core.ValidationError{Message: "invalid JSON body", Err: err}
		}
	}
	return nil
}

// pathID parses the {id} route parameter.
func pathID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &core.ValidationError{Field: "id", Message: fmt.Sprintf("invalid id %q", raw)}
	}
	return id, nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type envelopeRequest struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// amountRequest keeps Amount a pointer so a missing field is told apart
// from an explicit zero.
type amountRequest struct {
	Amount *core.Money `json:"amount"`
}

func (a amountRequest) money() (core.Money, error) {
	if a.Amount == nil {
		return core.Money{}, &core.ValidationError{Field: "amount", Message: "amount is required", Err: core.ErrInvalidAmount}
	}
	return *a.Amount, nil
}

type transactionRequest struct {
	Date        core.Date  `json:"date"`
	Kind        string     `json:"kind"`
	Category    string     `json:"category"`
	Amount      core.Money `json:"amount"`
	Description string     `json:"description"`
}

// transaction converts the payload. Missing fields are left zero for
// Transaction.Validate to reject.
func (t transactionRequest) transaction() (core.Transaction, error) {
	kind, err := core.ParseKind(t.Kind)
	if err != nil {
		return core.Transaction{}, core.NewValidationError("kind", err)
	}
	return core.Transaction{
		Date:        t.Date,
		Kind:        kind,
		Category:    t.Category,
		Amount:      t.Amount,
		Description: t.Description,
	}, nil
}

type categoryRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type budgetRequest struct {
	Category string     `json:"category"`
	Limit    core.Money `json:"limit"`
}
