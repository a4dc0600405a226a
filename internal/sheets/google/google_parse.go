package google

import (
	"fmt"
	"strconv"
	"strings"

	"finanzas/internal/core"
)

// Sheet layout: one ledger row per line, columns A through H.
const lastColumn = "H"

var header = []any{"ID", "User", "Date", "Kind", "Category", "Amount", "Description", "Envelope"}

// transactionRow renders t in the sheet column order.
func transactionRow(t core.Transaction) []any {
	envelope := ""
	if t.EnvelopeID != nil {
		envelope = strconv.FormatInt(*t.EnvelopeID, 10)
	}
	return []any{
		t.ID,
		t.UserID,
		t.Date.String(),
		string(t.Kind),
		t.Category,
		t.Amount.Decimal().InexactFloat64(),
		t.Description,
		envelope,
	}
}

// findRow returns the 1-based row holding transaction id of userID, or -1.
// Rows with a non-numeric id, such as the header, are skipped.
func findRow(values [][]any, userID, id int64) int {
	for i, row := range values {
		if len(row) < 2 {
			continue
		}
		rowID, ok := parseCell(row[0])
		if !ok || rowID != id {
			continue
		}
		if owner, ok := parseCell(row[1]); ok && owner == userID {
			return i + 1
		}
	}
	return -1
}

// parseCell reads an integer cell. The API returns formatted strings, or
// float64 values when the sheet is read unformatted.
func parseCell(v any) (int64, bool) {
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}
