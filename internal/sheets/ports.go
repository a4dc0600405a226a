// Package sheets defines the outbound port for mirroring the ledger to a
// spreadsheet.
package sheets

import (
	"context"

	"finanzas/internal/core"
)

// LedgerMirror keeps a copy of ledger rows outside the database. Both
// operations are idempotent so redelivered events do no harm.
type LedgerMirror interface {
	// AppendTransaction adds t unless a row with its id already exists.
	AppendTransaction(ctx context.Context, t core.Transaction) (rowRef string, err error)
	// RemoveTransaction clears the row of transaction id owned by userID.
	// Missing rows are not an error.
	RemoveTransaction(ctx context.Context, userID, id int64) error
}
