package account

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/ledger/internal/money"
)

// Type classifies an account product.
type Type string

const (
	TypeSavings      Type = "savings"
	TypeChecking     Type = "checking"
	TypeFixedDeposit Type = "fixed-deposit"
)

const (
	// DefaultCurrency is used when neither the caller nor configuration supplies one.
	DefaultCurrency = "INR"
	numberLength    = 12
)

// DefaultWithdrawalLimit is the per-debit ceiling applied to new accounts (50,000.00).
var DefaultWithdrawalLimit = money.FromMinor(5_000_000)

// Account is a balance-holding record. Balance is only changed by the ledger engine
// through an exclusive section of the Store.
type Account struct {
	ID                   string
	AccountNumber        string
	OwnerID              string
	Type                 Type
	Balance              money.Money
	Currency             string
	DailyWithdrawalLimit money.Money
	IsActive             bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// FormattedBalance renders the balance with its currency, e.g. "INR 150.00".
func (a Account) FormattedBalance() string {
	return a.Balance.Format(a.Currency)
}

// ParseType validates an account type, defaulting to savings when empty.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TypeSavings, nil
	case TypeSavings, TypeChecking, TypeFixedDeposit:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown account type %q", ErrInvalidAccount, s)
	}
}

// NewAccountNumber derives a 12 character upper-case account number from a random uuid.
func NewAccountNumber() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:numberLength])
}

// Ordered returns the two identifiers in the global lock order. Every code path that
// holds two account sections at once acquires them in this order.
func Ordered(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// checkImmutable rejects mutations that touch identity fields or break non-negativity.
func checkImmutable(before, after Account) error {
	switch {
	case after.ID != before.ID,
		after.AccountNumber != before.AccountNumber,
		after.OwnerID != before.OwnerID,
		after.Currency != before.Currency,
		!after.CreatedAt.Equal(before.CreatedAt):
		return ErrImmutableField
	case after.Balance < 0:
		return ErrNegativeBalance
	case after.DailyWithdrawalLimit < 0:
		return fmt.Errorf("%w: negative withdrawal limit", ErrInvalidAccount)
	}
	return nil
}
