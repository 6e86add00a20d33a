package txlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/ledger/internal/infra"
	"github.com/congo-pay/ledger/internal/money"
)

// ErrNoSection is returned when Append is called outside an account store transaction.
var ErrNoSection = errors.New("append requires an open account section")

const recordColumns = `id, seq, reference, type, amount, from_account, to_account, initiated_by,
        description, balance_after, status, meta_ip, meta_user_agent, created_at`

// PostgresLog stores records in the transactions table. Appends join the transaction
// opened by account.PostgresStore so a record commits together with its balance change.
type PostgresLog struct {
	db *pgxpool.Pool
}

// NewPostgresLog constructs a Postgres-backed transaction log.
func NewPostgresLog(db *pgxpool.Pool) *PostgresLog {
	return &PostgresLog{db: db}
}

// Append inserts the record inside the ambient account transaction.
func (l *PostgresLog) Append(ctx context.Context, rec Record) (Record, error) {
	tx, ok := infra.TxFromContext(ctx)
	if !ok {
		return Record{}, ErrNoSection
	}
	if rec.Status == "" {
		rec.Status = StatusCompleted
	}
	if err := validate(rec); err != nil {
		return Record{}, err
	}
	if rec.Reference == "" {
		rec.Reference = NewReference()
	}

	involved := make([]string, 0, 2)
	for _, id := range []string{rec.FromAccount, rec.ToAccount} {
		if id != "" {
			involved = append(involved, id)
		}
	}

	id := uuid.New()
	now := time.Now().UTC()
	err := tx.QueryRow(ctx, `INSERT INTO transactions
        (id, reference, type, amount, from_account, to_account, initiated_by, description,
         balance_after, status, meta_ip, meta_user_agent, created_at)
        VALUES ($1, $2, $3, $4, $5::uuid, $6::uuid, $7, $8, $9, $10, $11, $12,
            GREATEST($13::timestamptz, COALESCE(
                (SELECT max(created_at) FROM transactions
                 WHERE from_account = ANY($14::uuid[]) OR to_account = ANY($14::uuid[])),
                $13::timestamptz)))
        RETURNING seq, created_at`,
		id, rec.Reference, string(rec.Type), rec.Amount.Minor(), nullable(rec.FromAccount), nullable(rec.ToAccount),
		rec.InitiatedBy, rec.Description, rec.BalanceAfter.Minor(), string(rec.Status),
		rec.Metadata.IP, rec.Metadata.UserAgent, now, involved,
	).Scan(&rec.Seq, &rec.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Record{}, ErrDuplicateReference
		}
		return Record{}, fmt.Errorf("append transaction: %w", err)
	}
	rec.ID = id.String()
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

// FindByAccount lists committed records touching accountID, newest first.
func (l *PostgresLog) FindByAccount(ctx context.Context, accountID string, filter Filter) ([]Record, error) {
	return l.FindByAccounts(ctx, []string{accountID}, filter)
}

// CountByAccount counts committed records touching accountID.
func (l *PostgresLog) CountByAccount(ctx context.Context, accountID string, filter Filter) (int, error) {
	return l.CountByAccounts(ctx, []string{accountID}, filter)
}

// FindByAccounts lists committed records touching any of accountIDs, newest first.
// Inside a section it also sees the section's own uncommitted appends.
func (l *PostgresLog) FindByAccounts(ctx context.Context, accountIDs []string, filter Filter) ([]Record, error) {
	ids := validUUIDs(accountIDs)
	if len(ids) == 0 {
		return []Record{}, nil
	}
	var limit any
	if filter.PageSize > 0 {
		limit = filter.PageSize
	}
	rows, err := infra.QuerierFromContext(ctx, l.db).Query(ctx, `SELECT `+recordColumns+` FROM transactions
        WHERE (from_account = ANY($1::uuid[]) OR to_account = ANY($1::uuid[]))
          AND ($2 = '' OR type = $2)
        ORDER BY created_at DESC, seq DESC
        LIMIT $3 OFFSET $4`, ids, string(filter.Type), limit, filter.offset())
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// CountByAccounts counts committed records touching any of accountIDs.
func (l *PostgresLog) CountByAccounts(ctx context.Context, accountIDs []string, filter Filter) (int, error) {
	ids := validUUIDs(accountIDs)
	if len(ids) == 0 {
		return 0, nil
	}
	var total int
	err := infra.QuerierFromContext(ctx, l.db).QueryRow(ctx, `SELECT count(*) FROM transactions
        WHERE (from_account = ANY($1::uuid[]) OR to_account = ANY($1::uuid[]))
          AND ($2 = '' OR type = $2)`, ids, string(filter.Type)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return total, nil
}

// PageByAccounts counts and lists within one read-only repeatable-read
// transaction, or within the ambient transaction when there is one.
func (l *PostgresLog) PageByAccounts(ctx context.Context, accountIDs []string, filter Filter) ([]Record, int, error) {
	if _, ok := infra.TxFromContext(ctx); ok {
		return l.page(ctx, accountIDs, filter)
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, 0, fmt.Errorf("begin history snapshot: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	records, total, err := l.page(infra.WithTx(ctx, tx), accountIDs, filter)
	if err != nil {
		return nil, 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("commit history snapshot: %w", err)
	}
	return records, total, nil
}

func (l *PostgresLog) page(ctx context.Context, accountIDs []string, filter Filter) ([]Record, int, error) {
	total, err := l.CountByAccounts(ctx, accountIDs, filter)
	if err != nil {
		return nil, 0, err
	}
	records, err := l.FindByAccounts(ctx, accountIDs, filter)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec       Record
		id        pgtype.UUID
		from, to  pgtype.UUID
		recType   string
		status    string
		amount    int64
		balance   int64
		createdAt time.Time
	)
	err := row.Scan(&id, &rec.Seq, &rec.Reference, &recType, &amount, &from, &to, &rec.InitiatedBy,
		&rec.Description, &balance, &status, &rec.Metadata.IP, &rec.Metadata.UserAgent, &createdAt)
	if err != nil {
		return Record{}, fmt.Errorf("scan transaction: %w", err)
	}
	rec.ID = uuidString(id)
	rec.FromAccount = uuidString(from)
	rec.ToAccount = uuidString(to)
	rec.Type = Type(recType)
	rec.Status = Status(status)
	rec.Amount = money.FromMinor(amount)
	rec.BalanceAfter = money.FromMinor(balance)
	rec.CreatedAt = createdAt.UTC()
	return rec, nil
}

func uuidString(v pgtype.UUID) string {
	if !v.Valid {
		return ""
	}
	return uuid.UUID(v.Bytes).String()
}

func nullable(id string) any {
	if id == "" {
		return nil
	}
	return id
}

func validUUIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			out = append(out, id)
		}
	}
	return out
}
