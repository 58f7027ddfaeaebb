package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

const (
	Daily   Interval = "DAILY"
	Weekly  Interval = "WEEKLY"
	Monthly Interval = "MONTHLY"
	Yearly  Interval = "YEARLY"
)

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
)

const (
	AccountCurrent AccountType = "CURRENT"
	AccountSavings AccountType = "SAVINGS"
)

type (
	TransactionType   string
	Interval          string
	TransactionStatus string
	AccountType       string

	// User is provisioned on first authenticated request, keyed by the
	// opaque identifier the identity provider hands us.
	User struct {
		ID         uuid.UUID
		ExternalID string
		Email      string
		Name       string
		CreatedAt  time.Time
	}

	Account struct {
		ID        uuid.UUID
		UserID    uuid.UUID
		Name      string
		Type      AccountType
		Balance   decimal.Decimal
		IsDefault bool
		CreatedAt time.Time
	}

	Transaction struct {
		ID          uuid.UUID
		UserID      uuid.UUID
		AccountID   uuid.UUID
		Type        TransactionType
		Amount      decimal.Decimal
		Description string
		Date        time.Time
		Category    string
		ReceiptURL  string
		IsRecurring bool
		// RecurringInterval is set iff IsRecurring.
		RecurringInterval Interval
		// NextRecurringDate is derived from Date and RecurringInterval.
		NextRecurringDate *time.Time
		// LastProcessed records the last successful recurrence firing.
		LastProcessed *time.Time
		Status        TransactionStatus
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}

	// Budget is the single monthly spending ceiling a user can set.
	Budget struct {
		ID            uuid.UUID
		UserID        uuid.UUID
		Amount        decimal.Decimal
		LastAlertSent *time.Time
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidInterval  = errors.New("invalid recurring interval")
	ErrEmptyName        = errors.New("empty name")
	ErrEmptyCategory    = errors.New("empty category")
	ErrMissingAccount   = errors.New("missing account")
	ErrMissingDate      = errors.New("missing date")
	ErrMissingInterval  = errors.New("recurring transaction requires an interval")
	ErrEmptyDescription = errors.New("empty description")

	ErrMissingUser        = errors.New("missing owning user")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrUnexpectedInterval = errors.New("interval set on non-recurring transaction")

	// ErrNotDue marks a recurrence firing that found its transaction no
	// longer due. Callers treat it as a successful no-op, not a failure.
	ErrNotDue = errors.New("transaction not due")

	// ErrInsightsDisabled is returned when no model API key is configured.
	ErrInsightsDisabled = errors.New("insights not configured")

	// ErrNotAReceipt is returned when a scanned image yields no receipt
	// fields.
	ErrNotAReceipt = errors.New("image is not a receipt")
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (iv Interval) Valid() bool {
	switch iv {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (a Account) Validate() error {
	if a.UserID == uuid.Nil {
		return ErrMissingUser
	}
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	return ValidateAmount(a.Balance.Abs())
}

func (t Transaction) Validate() error {
	if t.UserID == uuid.Nil {
		return ErrMissingUser
	}
	if t.AccountID == uuid.Nil {
		return ErrMissingAccount
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := ValidateAmount(t.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if t.Date.IsZero() {
		return ErrMissingDate
	}
	if t.IsRecurring {
		if t.RecurringInterval == "" {
			return ErrMissingInterval
		}
		if !t.RecurringInterval.Valid() {
			return ErrInvalidInterval
		}
	} else if t.RecurringInterval != "" {
		return ErrUnexpectedInterval
	}
	return nil
}

func (b Budget) Validate() error {
	if b.UserID == uuid.Nil {
		return ErrMissingUser
	}
	if err := ValidateAmount(b.Amount); err != nil {
		return err
	}
	if b.Amount.IsZero() {
		return ErrInvalidAmount
	}
	return nil
}

// SignedAmount is the transaction's contribution to its account balance:
// positive for income, negative for expense.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.Type == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}
