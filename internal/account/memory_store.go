package account

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// memoryStore keeps accounts in maps guarded by a short-lived RWMutex. Each account
// also owns a one-slot semaphore that forms its exclusive mutation section, so readers
// never wait on an in-flight operation.
type memoryStore struct {
	mu          sync.RWMutex
	accounts    map[string]Account
	byNumber    map[string]string
	sections    map[string]chan struct{}
	lockTimeout time.Duration
}

// NewMemoryStore creates a concurrency-safe in-memory account store. A non-positive
// lockTimeout falls back to DefaultLockTimeout.
func NewMemoryStore(lockTimeout time.Duration) Store {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &memoryStore{
		accounts:    make(map[string]Account),
		byNumber:    make(map[string]string),
		sections:    make(map[string]chan struct{}),
		lockTimeout: lockTimeout,
	}
}

func (s *memoryStore) Create(_ context.Context, acc Account) error {
	if err := validateNew(acc); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[acc.ID]; exists {
		return ErrDuplicate
	}
	if _, exists := s.byNumber[acc.AccountNumber]; exists {
		return ErrDuplicateNumber
	}
	s.accounts[acc.ID] = acc
	s.byNumber[acc.AccountNumber] = acc.ID
	s.sections[acc.ID] = make(chan struct{}, 1)
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return acc, nil
}

func (s *memoryStore) GetByNumber(_ context.Context, number string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byNumber[number]
	if !ok {
		return Account{}, ErrNotFound
	}
	return s.accounts[id], nil
}

func (s *memoryStore) ListByOwner(_ context.Context, ownerID string) ([]Account, error) {
	s.mu.RLock()
	out := make([]Account, 0)
	for _, acc := range s.accounts {
		if acc.OwnerID == ownerID && acc.IsActive {
			out = append(out, acc)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].AccountNumber < out[j].AccountNumber
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *memoryStore) WithLock(ctx context.Context, id string, mutate Mutation, finalize Finalizer) (Account, error) {
	release, err := s.acquire(ctx, id)
	if err != nil {
		return Account{}, err
	}
	defer release()

	original, err := s.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}

	view := original
	if err := mutate(&view); err != nil {
		return Account{}, err
	}
	if err := checkImmutable(original, view); err != nil {
		return Account{}, err
	}
	view.UpdatedAt = time.Now().UTC()

	// Readers keep seeing original until finalize succeeds.
	if finalize != nil {
		if err := finalize(ctx, view); err != nil {
			return Account{}, err
		}
	}
	s.put(view)
	return view, nil
}

func (s *memoryStore) WithLockPair(ctx context.Context, idA, idB string, mutate PairMutation, finalize PairFinalizer) (Account, Account, error) {
	if idA == idB {
		return Account{}, Account{}, ErrSameAccount
	}

	first, second := Ordered(idA, idB)
	releaseFirst, err := s.acquire(ctx, first)
	if err != nil {
		return Account{}, Account{}, err
	}
	releaseSecond, err := s.acquire(ctx, second)
	if err != nil {
		releaseFirst()
		return Account{}, Account{}, err
	}
	defer func() {
		releaseSecond()
		releaseFirst()
	}()

	s.mu.RLock()
	origA, origB := s.accounts[idA], s.accounts[idB]
	s.mu.RUnlock()

	viewA, viewB := origA, origB
	if err := mutate(&viewA, &viewB); err != nil {
		return Account{}, Account{}, err
	}
	if err := checkImmutable(origA, viewA); err != nil {
		return Account{}, Account{}, err
	}
	if err := checkImmutable(origB, viewB); err != nil {
		return Account{}, Account{}, err
	}
	now := time.Now().UTC()
	viewA.UpdatedAt, viewB.UpdatedAt = now, now

	if finalize != nil {
		if err := finalize(ctx, viewA, viewB); err != nil {
			return Account{}, Account{}, err
		}
	}
	s.put(viewA, viewB)
	return viewA, viewB, nil
}

// acquire takes the account's section, waiting at most lockTimeout.
func (s *memoryStore) acquire(ctx context.Context, id string) (func(), error) {
	s.mu.RLock()
	section, ok := s.sections[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}

	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()

	select {
	case section <- struct{}{}:
		return func() { <-section }, nil
	case <-ctx.Done():
		return nil, unavailable(ctx.Err())
	case <-timer.C:
		return nil, unavailable(fmt.Errorf("lock wait for account %s exceeded %s", id, s.lockTimeout))
	}
}

// put writes all views under a single critical region so readers observe them together.
func (s *memoryStore) put(views ...Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range views {
		s.accounts[v.ID] = v
	}
}
