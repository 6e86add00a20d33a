package txlog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryLog struct {
	mu        sync.RWMutex
	records   []Record
	byAccount map[string][]int
	refs      map[string]struct{}
	lastAt    map[string]time.Time
	now       func() time.Time
}

// NewMemoryLog creates an in-memory append-only log.
func NewMemoryLog() Log {
	return newMemoryLog(func() time.Time { return time.Now().UTC() })
}

func newMemoryLog(now func() time.Time) *memoryLog {
	return &memoryLog{
		byAccount: make(map[string][]int),
		refs:      make(map[string]struct{}),
		lastAt:    make(map[string]time.Time),
		now:       now,
	}
}

func (l *memoryLog) Append(_ context.Context, rec Record) (Record, error) {
	if rec.Status == "" {
		rec.Status = StatusCompleted
	}
	if err := validate(rec); err != nil {
		return Record{}, err
	}
	if rec.Reference == "" {
		rec.Reference = NewReference()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.refs[rec.Reference]; exists {
		return Record{}, ErrDuplicateReference
	}

	// CreatedAt never goes backwards for an account, even if the wall clock does.
	createdAt := l.now()
	for _, id := range []string{rec.FromAccount, rec.ToAccount} {
		if last, ok := l.lastAt[id]; ok && id != "" && createdAt.Before(last) {
			createdAt = last
		}
	}

	rec.ID = uuid.NewString()
	rec.Seq = int64(len(l.records) + 1)
	rec.CreatedAt = createdAt

	idx := len(l.records)
	l.records = append(l.records, rec)
	l.refs[rec.Reference] = struct{}{}
	for _, id := range []string{rec.FromAccount, rec.ToAccount} {
		if id == "" {
			continue
		}
		l.byAccount[id] = append(l.byAccount[id], idx)
		l.lastAt[id] = createdAt
	}
	return rec, nil
}

func (l *memoryLog) FindByAccount(ctx context.Context, accountID string, filter Filter) ([]Record, error) {
	return l.FindByAccounts(ctx, []string{accountID}, filter)
}

func (l *memoryLog) CountByAccount(ctx context.Context, accountID string, filter Filter) (int, error) {
	return l.CountByAccounts(ctx, []string{accountID}, filter)
}

func (l *memoryLog) FindByAccounts(_ context.Context, accountIDs []string, filter Filter) ([]Record, error) {
	l.mu.RLock()
	matched := l.match(accountIDs, filter.Type)
	l.mu.RUnlock()
	return paginate(matched, filter), nil
}

func (l *memoryLog) CountByAccounts(_ context.Context, accountIDs []string, filter Filter) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.match(accountIDs, filter.Type)), nil
}

func (l *memoryLog) PageByAccounts(_ context.Context, accountIDs []string, filter Filter) ([]Record, int, error) {
	l.mu.RLock()
	matched := l.match(accountIDs, filter.Type)
	l.mu.RUnlock()
	return paginate(matched, filter), len(matched), nil
}

// paginate sorts newest first, ties by Seq, and cuts the filter's page.
func paginate(matched []Record, filter Filter) []Record {
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].Seq > matched[j].Seq
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	start := filter.offset()
	if start >= len(matched) {
		return []Record{}
	}
	end := len(matched)
	if filter.PageSize > 0 && start+filter.PageSize < end {
		end = start + filter.PageSize
	}
	return matched[start:end]
}

// match copies the records touching any account, each record at most once.
// The caller holds l.mu.
func (l *memoryLog) match(accountIDs []string, typ Type) []Record {
	seen := make(map[int]struct{})
	out := make([]Record, 0)
	for _, id := range accountIDs {
		for _, idx := range l.byAccount[id] {
			if _, dup := seen[idx]; dup {
				continue
			}
			seen[idx] = struct{}{}
			rec := l.records[idx]
			if typ != "" && rec.Type != typ {
				continue
			}
			out = append(out, rec)
		}
	}
	return out
}
