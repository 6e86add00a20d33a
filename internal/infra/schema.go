package infra

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id                     UUID PRIMARY KEY,
    account_number         TEXT NOT NULL,
    owner_id               TEXT NOT NULL,
    type                   TEXT NOT NULL CHECK (type IN ('savings', 'checking', 'fixed-deposit')),
    balance                BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    currency               CHAR(3) NOT NULL,
    daily_withdrawal_limit BIGINT NOT NULL CHECK (daily_withdrawal_limit >= 0),
    is_active              BOOLEAN NOT NULL DEFAULT TRUE,
    created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT accounts_account_number_key UNIQUE (account_number)
);
CREATE INDEX IF NOT EXISTS accounts_owner_idx ON accounts (owner_id, created_at);

CREATE TABLE IF NOT EXISTS transactions (
    id              UUID PRIMARY KEY,
    seq             BIGSERIAL NOT NULL UNIQUE,
    reference       TEXT NOT NULL,
    type            TEXT NOT NULL CHECK (type IN ('deposit', 'withdrawal', 'transfer')),
    amount          BIGINT NOT NULL CHECK (amount > 0),
    from_account    UUID REFERENCES accounts (id),
    to_account      UUID REFERENCES accounts (id),
    initiated_by    TEXT NOT NULL DEFAULT '',
    description     TEXT NOT NULL DEFAULT '',
    balance_after   BIGINT NOT NULL CHECK (balance_after >= 0),
    status          TEXT NOT NULL CHECK (status IN ('completed', 'failed', 'reversed')),
    meta_ip         TEXT NOT NULL DEFAULT '',
    meta_user_agent TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT transactions_reference_key UNIQUE (reference),
    CHECK (from_account IS NOT NULL OR to_account IS NOT NULL)
);
CREATE INDEX IF NOT EXISTS transactions_from_idx ON transactions (from_account, created_at DESC, seq DESC);
CREATE INDEX IF NOT EXISTS transactions_to_idx ON transactions (to_account, created_at DESC, seq DESC);
`

// Migrate creates the ledger tables if they do not exist. It is idempotent.
func Migrate(ctx context.Context, db Querier) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
