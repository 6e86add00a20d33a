package txlog

import "context"

// Filter narrows a history read. Page is 1-based.
type Filter struct {
	Type     Type
	Page     int
	PageSize int
}

func (f Filter) offset() int {
	if f.Page < 1 || f.PageSize < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// Log is an append-only store of transaction records. It exposes no update or delete.
type Log interface {
	// Append stores a record, assigning ID, Seq, CreatedAt and, when empty, Reference.
	Append(ctx context.Context, rec Record) (Record, error)
	// FindByAccount lists records touching accountID, newest first.
	FindByAccount(ctx context.Context, accountID string, filter Filter) ([]Record, error)
	// CountByAccount counts records touching accountID that match the filter.
	CountByAccount(ctx context.Context, accountID string, filter Filter) (int, error)
	// FindByAccounts lists records touching any of the accounts, newest first.
	FindByAccounts(ctx context.Context, accountIDs []string, filter Filter) ([]Record, error)
	// CountByAccounts counts records touching any of the accounts.
	CountByAccounts(ctx context.Context, accountIDs []string, filter Filter) (int, error)
	// PageByAccounts returns one page and the total match count read from the same
	// snapshot, so the two agree even while records are being appended.
	PageByAccounts(ctx context.Context, accountIDs []string, filter Filter) ([]Record, int, error)
}
