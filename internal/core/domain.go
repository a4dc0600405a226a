package core

import (
	"bytes"
	"strings"
	"time"
)

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

const (
	// Categories of the synthetic rows written by envelope transfers.
	CategorySavingsDeposit    = "Savings-Deposit"
	CategorySavingsWithdrawal = "Savings-Withdrawal"

	DefaultEnvelopeIcon  = "💰"
	MaxDescriptionLength = 200
	MaxNameLength        = 100

	dateLayout = "2006-01-02"
)

type (
	Kind string

	Date struct {
		time.Time
	}

	Transaction struct {
		ID          int64  `json:"id"`
		UserID      int64  `json:"user_id"`
		Date        Date   `json:"date"`
		Kind        Kind   `json:"kind"`
		Category    string `json:"category"`
		Amount      Money  `json:"amount"`
		Description string `json:"description"`
		// EnvelopeID is set only on rows created by an envelope transfer.
		EnvelopeID *int64 `json:"envelope_id,omitempty"`
	}

	Envelope struct {
		ID        int64     `json:"id"`
		UserID    int64     `json:"user_id"`
		Name      string    `json:"name"`
		Balance   Money     `json:"balance"`
		Icon      string    `json:"icon"`
		CreatedAt time.Time `json:"created_at"`
	}

	Category struct {
		ID     int64  `json:"id"`
		UserID int64  `json:"user_id"`
		Name   string `json:"name"`
		Kind   Kind   `json:"kind"`
	}

	CategoryBudget struct {
		UserID   int64  `json:"user_id"`
		Category string `json:"category"`
		Limit    Money  `json:"limit"`
	}

	User struct {
		ID           int64  `json:"id"`
		Username     string `json:"username"`
		PasswordHash string `json:"-"`
	}

	Session struct {
		Token     string
		UserID    int64
		Username  string
		ExpiresAt time.Time
	}
)

// DefaultCategories are created for every new user.
var DefaultCategories = []Category{
	{Name: "Food", Kind: KindExpense},
	{Name: "Transport", Kind: KindExpense},
	{Name: "Salary", Kind: KindIncome},
	{Name: "Other", Kind: KindExpense},
}

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindIncome, KindExpense:
		return k, nil
	default:
		return "", ErrInvalidKind
	}
}

func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current UTC calendar day.
func Today() Date {
	y, m, d := time.Now().UTC().Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a date in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`""`)) {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(bytes.Trim(data, `"`)))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ReservedCategory reports whether name, ignoring case, is one of the
// categories only envelope transfers may write.
func ReservedCategory(name string) bool {
	name = strings.TrimSpace(name)
	return strings.EqualFold(name, CategorySavingsDeposit) || strings.EqualFold(name, CategorySavingsWithdrawal)
}

// Synthetic reports whether the row was written by an envelope transfer.
func (t Transaction) Synthetic() bool {
	return t.EnvelopeID != nil
}

// Validate checks a user-entered transaction and normalizes its text fields.
func (t *Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return NewValidationError("date", err)
	}
	if !t.Kind.Valid() {
		return NewValidationError("kind", ErrInvalidKind)
	}
	t.Category = strings.TrimSpace(t.Category)
	if t.Category == "" {
		return NewValidationError("category", ErrEmptyCategory)
	}
	if ReservedCategory(t.Category) {
		return NewValidationError("category", ErrReservedCategory)
	}
	if err := t.Amount.Validate(); err != nil {
		return NewValidationError("amount", err)
	}
	t.Description = strings.TrimSpace(t.Description)
	if len([]rune(t.Description)) > MaxDescriptionLength {
		return NewValidationError("description", ErrDescriptionLimit)
	}
	return nil
}

// EnvelopeState is Empty (balance zero) or Funded.
type EnvelopeState string

const (
	EnvelopeEmpty  EnvelopeState = "empty"
	EnvelopeFunded EnvelopeState = "funded"
)

func (e Envelope) State() EnvelopeState {
	if e.Balance.IsPositive() {
		return EnvelopeFunded
	}
	return EnvelopeEmpty
}

// Deletable reports whether the envelope may be removed.
func (e Envelope) Deletable() bool {
	return e.State() == EnvelopeEmpty
}

// Normalize trims the name, applies the default icon and validates.
func (e *Envelope) Normalize() error {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return NewValidationError("name", ErrEmptyName)
	}
	if len([]rune(e.Name)) > MaxNameLength {
		return &ValidationError{Field: "name", Message: "name too long"}
	}
	e.Icon = strings.TrimSpace(e.Icon)
	if e.Icon == "" {
		e.Icon = DefaultEnvelopeIcon
	}
	return nil
}

func (c *Category) Normalize() error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return NewValidationError("name", ErrEmptyName)
	}
	if !c.Kind.Valid() {
		return NewValidationError("kind", ErrInvalidKind)
	}
	return nil
}

func (b CategoryBudget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return NewValidationError("category", ErrEmptyCategory)
	}
	if b.Limit.Cents < 0 {
		return &ValidationError{Field: "limit", Message: "limit cannot be negative", Err: ErrInvalidAmount}
	}
	return nil
}

func DepositDescription(envelope string) string {
	return "Deposit to envelope: " + envelope
}

func WithdrawalDescription(envelope string) string {
	return "Withdrawal from envelope: " + envelope
}
