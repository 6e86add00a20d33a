package ledger

import (
	"errors"
	"fmt"

	"github.com/congo-pay/ledger/internal/account"
)

var (
	// ErrInvalidAmount occurs when an amount is not positive or cannot be applied.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNotFound occurs when an account id or account number does not resolve.
	ErrNotFound = account.ErrNotFound

	// ErrInactive occurs when a mutating operation targets a deactivated account.
	ErrInactive = errors.New("account is inactive")

	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested debit. It is only decided on the locked account.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrLimitExceeded occurs when a debit is above the account's withdrawal limit.
	ErrLimitExceeded = errors.New("amount exceeds withdrawal limit")

	// ErrSameAccount occurs when a transfer names the same account on both sides.
	ErrSameAccount = account.ErrSameAccount

	// ErrCurrencyMismatch occurs when a transfer crosses currencies.
	ErrCurrencyMismatch = errors.New("accounts hold different currencies")

	// ErrStoreUnavailable covers lock wait timeouts and persistence failures.
	ErrStoreUnavailable = account.ErrUnavailable

	// ErrInvalidDescription occurs when a description is longer than MaxDescriptionLength.
	ErrInvalidDescription = errors.New("invalid description")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrInvalidAmount, "invalid_amount"},
	{ErrInvalidDescription, "invalid_description"},
	{ErrNotFound, "not_found"},
	{ErrInactive, "inactive"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrLimitExceeded, "limit_exceeded"},
	{ErrSameAccount, "same_account"},
	{ErrCurrencyMismatch, "currency_mismatch"},
	{ErrStoreUnavailable, "store_unavailable"},
}

// Kind names the outcome of an operation: "ok" for nil, one of the error kinds
// above, or "internal" for anything else.
func Kind(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}

// outcome passes named outcomes through and reports everything else as the store
// being unavailable, keeping the cause in the chain.
func outcome(err error) error {
	if err == nil || Kind(err) != "internal" {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
