package core

// Stats aggregates a tenant's ledger across all time.
type Stats struct {
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
	Balance Money `json:"balance"`
}

// NewStats derives the balance from the income and expense totals.
func NewStats(income, expense Money) Stats {
	return Stats{Income: income, Expense: expense, Balance: income.Sub(expense)}
}

// EnvelopeFlow is the net synthetic movement recorded against one envelope.
type EnvelopeFlow struct {
	EnvelopeID  int64
	Deposits    Money
	Withdrawals Money
}

// Net is what the envelope balance should be according to the ledger.
func (f EnvelopeFlow) Net() Money {
	return f.Deposits.Sub(f.Withdrawals)
}
