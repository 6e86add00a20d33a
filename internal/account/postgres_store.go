package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/ledger/internal/infra"
	"github.com/congo-pay/ledger/internal/money"
)

const (
	pgUniqueViolation   = "23505"
	pgLockNotAvailable  = "55P03"
	accountColumns      = `id, account_number, owner_id, type, balance, currency, daily_withdrawal_limit, is_active, created_at, updated_at`
	accountNumberUnique = "accounts_account_number_key"
)

// PostgresStore persists accounts in PostgreSQL. Exclusive sections are row locks
// (SELECT ... FOR UPDATE) held for the lifetime of a transaction.
type PostgresStore struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPostgresStore constructs a Postgres-backed account store.
func NewPostgresStore(db *pgxpool.Pool, lockTimeout time.Duration) *PostgresStore {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &PostgresStore{db: db, lockTimeout: lockTimeout}
}

// Create inserts a new account row.
func (s *PostgresStore) Create(ctx context.Context, acc Account) error {
	if err := validateNew(acc); err != nil {
		return err
	}
	id, err := uuid.Parse(acc.ID)
	if err != nil {
		return fmt.Errorf("%w: id must be a uuid", ErrInvalidAccount)
	}
	_, err = s.db.Exec(ctx, `INSERT INTO accounts (`+accountColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id, acc.AccountNumber, acc.OwnerID, string(acc.Type), acc.Balance.Minor(), acc.Currency,
		acc.DailyWithdrawalLimit.Minor(), acc.IsActive, acc.CreatedAt.UTC(), acc.UpdatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			if pgErr.ConstraintName == accountNumberUnique {
				return ErrDuplicateNumber
			}
			return ErrDuplicate
		}
		return unavailable(err)
	}
	return nil
}

// Get fetches an account snapshot by id without taking its row lock.
func (s *PostgresStore) Get(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrNotFound
	}
	return scanAccount(s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID))
}

// GetByNumber fetches an account snapshot by account number.
func (s *PostgresStore) GetByNumber(ctx context.Context, number string) (Account, error) {
	return scanAccount(s.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE account_number = $1`, number))
}

// ListByOwner returns the owner's active accounts, oldest first.
func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID string) ([]Account, error) {
	rows, err := s.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts
        WHERE owner_id = $1 AND is_active ORDER BY created_at, account_number`, ownerID)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	out := make([]Account, 0)
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

// WithLock runs mutate and finalize inside one transaction holding the account's row lock.
// finalize receives a context carrying the transaction (see infra.WithTx).
func (s *PostgresStore) WithLock(ctx context.Context, id string, mutate Mutation, finalize Finalizer) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrNotFound
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return Account{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	original, err := lockAccount(ctx, tx, accountID)
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
	if err := updateAccount(ctx, tx, view); err != nil {
		return Account{}, err
	}

	if finalize != nil {
		if err := finalize(infra.WithTx(ctx, tx), view); err != nil {
			return Account{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Account{}, mapPgError(err)
	}
	return view, nil
}

// WithLockPair locks both rows in Ordered order inside one transaction.
func (s *PostgresStore) WithLockPair(ctx context.Context, idA, idB string, mutate PairMutation, finalize PairFinalizer) (Account, Account, error) {
	if idA == idB {
		return Account{}, Account{}, ErrSameAccount
	}
	uuidA, err := uuid.Parse(idA)
	if err != nil {
		return Account{}, Account{}, ErrNotFound
	}
	uuidB, err := uuid.Parse(idB)
	if err != nil {
		return Account{}, Account{}, ErrNotFound
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return Account{}, Account{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	locked := make(map[string]Account, 2)
	first, second := Ordered(idA, idB)
	for _, id := range []string{first, second} {
		target := uuidA
		if id == idB {
			target = uuidB
		}
		acc, err := lockAccount(ctx, tx, target)
		if err != nil {
			return Account{}, Account{}, err
		}
		locked[id] = acc
	}

	origA, origB := locked[idA], locked[idB]
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
	if err := updateAccount(ctx, tx, viewA); err != nil {
		return Account{}, Account{}, err
	}
	if err := updateAccount(ctx, tx, viewB); err != nil {
		return Account{}, Account{}, err
	}

	if finalize != nil {
		if err := finalize(infra.WithTx(ctx, tx), viewA, viewB); err != nil {
			return Account{}, Account{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Account{}, Account{}, mapPgError(err)
	}
	return viewA, viewB, nil
}

func (s *PostgresStore) begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, unavailable(err)
	}
	timeout := fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())
	if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, timeout); err != nil {
		_ = tx.Rollback(ctx)
		return nil, unavailable(err)
	}
	return tx, nil
}

func lockAccount(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Account, error) {
	row := tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
	return scanAccount(row)
}

func updateAccount(ctx context.Context, tx pgx.Tx, acc Account) error {
	id, err := uuid.Parse(acc.ID)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := tx.Exec(ctx, `UPDATE accounts
        SET balance = $1, type = $2, daily_withdrawal_limit = $3, is_active = $4, updated_at = $5
        WHERE id = $6`,
		acc.Balance.Minor(), string(acc.Type), acc.DailyWithdrawalLimit.Minor(), acc.IsActive, acc.UpdatedAt, id)
	if err != nil {
		return mapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		acc       Account
		id        uuid.UUID
		accType   string
		balance   int64
		limit     int64
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(&id, &acc.AccountNumber, &acc.OwnerID, &accType, &balance, &acc.Currency,
		&limit, &acc.IsActive, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, mapPgError(err)
	}
	acc.ID = id.String()
	acc.Type = Type(accType)
	acc.Balance = money.FromMinor(balance)
	acc.DailyWithdrawalLimit = money.FromMinor(limit)
	acc.CreatedAt = createdAt.UTC()
	acc.UpdatedAt = updatedAt.UTC()
	return acc, nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
		return unavailable(fmt.Errorf("lock wait exceeded: %w", err))
	}
	return unavailable(err)
}
