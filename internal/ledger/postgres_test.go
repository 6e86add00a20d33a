package ledger

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/ledger/internal/account"
	"github.com/congo-pay/ledger/internal/infra"
	"github.com/congo-pay/ledger/internal/txlog"
)

// newPostgresFixture runs the engine against a real database when TEST_DATABASE_URL is set.
func newPostgresFixture(t *testing.T) *fixture {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := infra.NewPostgresPool(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := infra.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return newFixtureWith(t, account.NewPostgresStore(pool, 2*time.Second), txlog.NewPostgresLog(pool))
}

func TestPostgresTransferAndHistory(t *testing.T) {
	f := newPostgresFixture(t)
	owner := "pg-" + uuid.NewString()
	a := f.open(t, owner)
	b := f.open(t, owner)
	f.fund(t, a, major(t, 20_000))

	res, err := f.engine.Transfer(context.Background(), TransferInput{
		FromAccountID:   a.ID,
		ToAccountNumber: b.AccountNumber,
		Amount:          major(t, 5_000),
		Actor:           owner,
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if res.From.Balance != major(t, 15_000) || res.To.Balance != major(t, 5_000) {
		t.Fatalf("unexpected balances %s / %s", res.From.Balance, res.To.Balance)
	}
	if f.balance(t, a.ID) != major(t, 15_000) {
		t.Fatalf("balance not persisted")
	}

	recs := f.records(t, a.ID)
	if len(recs) != 2 || recs[0].Reference != res.Record.Reference {
		t.Fatalf("expected transfer first then deposit, got %+v", recs)
	}
	if recs[0].Seq <= recs[1].Seq {
		t.Fatalf("expected newest first by seq")
	}
}

func TestPostgresConcurrentWithdrawals(t *testing.T) {
	f := newPostgresFixture(t)
	acc := f.open(t, "pg-"+uuid.NewString())
	f.fund(t, acc, major(t, 500))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Withdraw(context.Background(), WithdrawInput{AccountID: acc.ID, Amount: major(t, 50)})
			if err != nil && !errors.Is(err, ErrInsufficientFunds) {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 {
		t.Fatalf("expected 10 withdrawals to succeed, got %d", succeeded)
	}
	if got := f.balance(t, acc.ID); got != 0 {
		t.Fatalf("expected balance 0, got %s", got)
	}
}

func TestPostgresFailedAppendRollsBack(t *testing.T) {
	f := newPostgresFixture(t)
	acc := f.open(t, "pg-"+uuid.NewString())
	f.fund(t, acc, major(t, 10))

	broken := NewEngine(f.store, failingLog{Log: f.log}, nil, nil, nil)
	if _, err := broken.Withdraw(context.Background(), WithdrawInput{AccountID: acc.ID, Amount: major(t, 1)}); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
	if got := f.balance(t, acc.ID); got != major(t, 10) {
		t.Fatalf("balance not rolled back: %s", got)
	}
}
