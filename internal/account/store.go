package account

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when an id or account number does not resolve.
	ErrNotFound = errors.New("account not found")
	// ErrSameAccount is returned when a paired section is requested for a single account.
	ErrSameAccount = errors.New("source and destination account are the same")
	// ErrUnavailable covers lock wait timeouts, cancellation while waiting and backend failures.
	ErrUnavailable = errors.New("account store unavailable")
	// ErrDuplicate is returned by Create when the id is already taken.
	ErrDuplicate = errors.New("account already exists")
	// ErrDuplicateNumber is returned by Create when the account number is already taken.
	ErrDuplicateNumber = errors.New("account number already assigned")
	// ErrInvalidAccount is returned for malformed account records.
	ErrInvalidAccount = errors.New("invalid account")
	// ErrImmutableField is returned when a mutation edits identity or currency fields.
	ErrImmutableField = errors.New("immutable account field changed")
	// ErrNegativeBalance is returned when a mutation leaves a negative balance.
	ErrNegativeBalance = errors.New("balance cannot be negative")
)

// DefaultLockTimeout bounds how long a caller waits for an account section.
const DefaultLockTimeout = 5 * time.Second

// Mutation edits the locked view of an account. Returning an error aborts the
// section without persisting anything.
type Mutation func(view *Account) error

// Finalizer runs inside the section after the mutation is applied and before it
// becomes visible to readers outside the section. Returning an error discards the
// mutation, so no reader ever observes it.
type Finalizer func(ctx context.Context, committed Account) error

// PairMutation edits two locked views, passed in the caller's argument order.
type PairMutation func(a, b *Account) error

// PairFinalizer is the two-account form of Finalizer.
type PairFinalizer func(ctx context.Context, a, b Account) error

// Store holds accounts and provides per-account exclusive sections.
type Store interface {
	Get(ctx context.Context, id string) (Account, error)
	GetByNumber(ctx context.Context, number string) (Account, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Account, error)
	Create(ctx context.Context, acc Account) error
	WithLock(ctx context.Context, id string, mutate Mutation, finalize Finalizer) (Account, error)
	WithLockPair(ctx context.Context, idA, idB string, mutate PairMutation, finalize PairFinalizer) (Account, Account, error)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func validateNew(acc Account) error {
	if acc.ID == "" || acc.AccountNumber == "" {
		return fmt.Errorf("%w: id and account number are required", ErrInvalidAccount)
	}
	if acc.Balance != 0 {
		return fmt.Errorf("%w: accounts open with a zero balance", ErrInvalidAccount)
	}
	if acc.Currency == "" {
		return fmt.Errorf("%w: currency is required", ErrInvalidAccount)
	}
	if acc.DailyWithdrawalLimit < 0 {
		return fmt.Errorf("%w: negative withdrawal limit", ErrInvalidAccount)
	}
	return nil
}
