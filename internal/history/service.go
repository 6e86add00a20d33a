package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/congo-pay/ledger/internal/account"
	"github.com/congo-pay/ledger/internal/txlog"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

var (
	// ErrNotFound is returned when the account does not resolve.
	ErrNotFound = account.ErrNotFound
	// ErrInvalidFilter is returned for an unknown transaction type filter.
	ErrInvalidFilter = errors.New("invalid transaction type filter")
)

// Query selects one page of an account's history. Zero Page and PageSize take the defaults.
type Query struct {
	AccountID string
	Page      int
	PageSize  int
	Type      string
}

// Page is one page of records, newest first. TotalCount and PageCount are read
// from the same snapshot as Records.
type Page struct {
	Records    []txlog.Record
	TotalCount int
	Page       int
	PageSize   int
	PageCount  int
}

// Service reads committed records. It never takes an account's mutation section.
type Service struct {
	accounts account.Store
	log      txlog.Log
}

// NewService builds a history query service.
func NewService(accounts account.Store, log txlog.Log) *Service {
	return &Service{accounts: accounts, log: log}
}

// History returns one page of records touching the account.
func (s *Service) History(ctx context.Context, q Query) (Page, error) {
	typ, err := txlog.ParseType(q.Type)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %q", ErrInvalidFilter, q.Type)
	}
	if _, err := s.accounts.Get(ctx, q.AccountID); err != nil {
		return Page{}, err
	}
	return s.page(ctx, []string{q.AccountID}, typ, q.Page, q.PageSize)
}

// ForOwner returns one page of records across all of the owner's active accounts.
// A record moving money between two of the owner's accounts appears once.
func (s *Service) ForOwner(ctx context.Context, ownerID string, page, pageSize int) (Page, error) {
	owned, err := s.accounts.ListByOwner(ctx, ownerID)
	if err != nil {
		return Page{}, err
	}
	ids := make([]string, 0, len(owned))
	for _, acc := range owned {
		ids = append(ids, acc.ID)
	}
	return s.page(ctx, ids, "", page, pageSize)
}

func (s *Service) page(ctx context.Context, ids []string, typ txlog.Type, page, pageSize int) (Page, error) {
	page, pageSize = Clamp(page, pageSize)
	filter := txlog.Filter{Type: typ, Page: page, PageSize: pageSize}

	records, total, err := s.log.PageByAccounts(ctx, ids, filter)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %w", account.ErrUnavailable, err)
	}
	return Page{
		Records:    records,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		PageCount:  (total + pageSize - 1) / pageSize,
	}, nil
}

// Clamp applies defaults to unset or negative values and caps pageSize at MaxPageSize.
func Clamp(page, pageSize int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	switch {
	case pageSize < 1:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return page, pageSize
}
