package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/ledger/internal/money"
)

const maxNumberAttempts = 5

// Service provisions accounts. It is the only place account numbers are generated;
// the ledger engine never creates accounts.
type Service struct {
	store           Store
	currency        string
	withdrawalLimit money.Money
	newNumber       func() string
}

// Defaults configures the values applied to newly opened accounts.
type Defaults struct {
	Currency        string
	WithdrawalLimit money.Money
}

// NewService builds an account provisioning service.
func NewService(store Store, defaults Defaults) *Service {
	if defaults.Currency == "" {
		defaults.Currency = DefaultCurrency
	}
	if defaults.WithdrawalLimit <= 0 {
		defaults.WithdrawalLimit = DefaultWithdrawalLimit
	}
	return &Service{
		store:           store,
		currency:        strings.ToUpper(defaults.Currency),
		withdrawalLimit: defaults.WithdrawalLimit,
		newNumber:       NewAccountNumber,
	}
}

// OpenInput captures data required to open an account.
type OpenInput struct {
	OwnerID  string
	Type     string
	Currency string
}

// Open creates an active account with a zero balance and a fresh account number.
func (s *Service) Open(ctx context.Context, input OpenInput) (Account, error) {
	if strings.TrimSpace(input.OwnerID) == "" {
		return Account{}, fmt.Errorf("%w: owner is required", ErrInvalidAccount)
	}
	accType, err := ParseType(input.Type)
	if err != nil {
		return Account{}, err
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = s.currency
	}
	if len(currency) != 3 {
		return Account{}, fmt.Errorf("%w: currency must be a 3 letter ISO code", ErrInvalidAccount)
	}

	now := time.Now().UTC()
	acc := Account{
		ID:                   uuid.New().String(),
		OwnerID:              input.OwnerID,
		Type:                 accType,
		Currency:             currency,
		DailyWithdrawalLimit: s.withdrawalLimit,
		IsActive:             true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		acc.AccountNumber = s.newNumber()
		err = s.store.Create(ctx, acc)
		if !errors.Is(err, ErrDuplicateNumber) {
			break
		}
	}
	if err != nil {
		return Account{}, err
	}
	return acc, nil
}

// Get returns an account snapshot.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	return s.store.Get(ctx, id)
}

// GetOwned returns the account only when it belongs to ownerID. Accounts owned by
// someone else are reported as not found so their existence is not leaked.
func (s *Service) GetOwned(ctx context.Context, id, ownerID string) (Account, error) {
	acc, err := s.store.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if acc.OwnerID != ownerID {
		return Account{}, ErrNotFound
	}
	return acc, nil
}

// ListByOwner returns the owner's active accounts.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]Account, error) {
	return s.store.ListByOwner(ctx, ownerID)
}

// Deactivate soft-deletes an account. It takes the account's section so it cannot
// interleave with an in-flight balance mutation.
func (s *Service) Deactivate(ctx context.Context, id string) (Account, error) {
	return s.store.WithLock(ctx, id, func(view *Account) error {
		view.IsActive = false
		return nil
	}, nil)
}
