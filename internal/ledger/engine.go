package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/congo-pay/ledger/internal/account"
	"github.com/congo-pay/ledger/internal/logging"
	"github.com/congo-pay/ledger/internal/metrics"
	"github.com/congo-pay/ledger/internal/money"
	"github.com/congo-pay/ledger/internal/notification"
	"github.com/congo-pay/ledger/internal/txlog"
)

const (
	// MaxDescriptionLength bounds a record description, in characters.
	MaxDescriptionLength = 200

	defaultDepositDescription    = "Deposit"
	defaultWithdrawalDescription = "Withdrawal"
	defaultTransferDescription   = "Fund Transfer"

	notifyTimeout = 3 * time.Second
)

// Engine applies deposits, withdrawals and transfers. Each operation validates
// before taking any lock, re-validates on the locked views, mutates and appends
// exactly one record inside the same exclusive section.
type Engine struct {
	accounts account.Store
	log      txlog.Log
	notifier notification.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewEngine wires an engine. notifier, m and logger may be nil.
func NewEngine(accounts account.Store, log txlog.Log, notifier notification.Notifier, m *metrics.Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{accounts: accounts, log: log, notifier: notifier, metrics: m, logger: logger}
}

// DepositInput captures the data needed to credit an account.
type DepositInput struct {
	AccountID   string
	Amount      money.Money
	Description string
	Actor       string
	Metadata    txlog.Metadata
}

// WithdrawInput captures the data needed to debit an account.
type WithdrawInput struct {
	AccountID   string
	Amount      money.Money
	Description string
	Actor       string
	Metadata    txlog.Metadata
}

// TransferInput captures the data needed to move funds between two accounts.
// Ownership of the source account is checked by the caller.
type TransferInput struct {
	FromAccountID   string
	ToAccountNumber string
	Amount          money.Money
	Description     string
	Actor           string
	Metadata        txlog.Metadata
}

// Result is the committed state of a single-account operation.
type Result struct {
	Account account.Account
	Record  txlog.Record
}

// TransferResult is the committed state of both sides of a transfer.
type TransferResult struct {
	From   account.Account
	To     account.Account
	Record txlog.Record
}

// Deposit credits an active account.
func (e *Engine) Deposit(ctx context.Context, in DepositInput) (Result, error) {
	started := time.Now()
	res, err := e.deposit(ctx, in)
	e.observe(txlog.TypeDeposit, started, err)
	if err != nil {
		return Result{}, err
	}
	e.committed(ctx, res.Record, res.Account)
	return res, nil
}

func (e *Engine) deposit(ctx context.Context, in DepositInput) (Result, error) {
	if !in.Amount.IsPositive() {
		return Result{}, ErrInvalidAmount
	}
	desc, err := description(in.Description, defaultDepositDescription)
	if err != nil {
		return Result{}, err
	}
	acc, err := e.activeAccount(ctx, in.AccountID)
	if err != nil {
		return Result{}, err
	}

	var rec txlog.Record
	updated, err := e.accounts.WithLock(ctx, acc.ID, func(view *account.Account) error {
		if !view.IsActive {
			return ErrInactive
		}
		next, err := view.Balance.Add(in.Amount)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidAmount, err)
		}
		view.Balance = next
		return nil
	}, func(ctx context.Context, committed account.Account) error {
		stored, err := e.log.Append(ctx, txlog.Record{
			Type:         txlog.TypeDeposit,
			Amount:       in.Amount,
			ToAccount:    committed.ID,
			InitiatedBy:  in.Actor,
			Description:  desc,
			BalanceAfter: committed.Balance,
			Metadata:     in.Metadata,
		})
		rec = stored
		return err
	})
	if err != nil {
		return Result{}, e.fail(txlog.TypeDeposit, acc.ID, err)
	}
	return Result{Account: updated, Record: rec}, nil
}

// Withdraw debits an active account. The balance check happens on the locked view.
func (e *Engine) Withdraw(ctx context.Context, in WithdrawInput) (Result, error) {
	started := time.Now()
	res, err := e.withdraw(ctx, in)
	e.observe(txlog.TypeWithdrawal, started, err)
	if err != nil {
		return Result{}, err
	}
	e.committed(ctx, res.Record, res.Account)
	return res, nil
}

func (e *Engine) withdraw(ctx context.Context, in WithdrawInput) (Result, error) {
	if !in.Amount.IsPositive() {
		return Result{}, ErrInvalidAmount
	}
	desc, err := description(in.Description, defaultWithdrawalDescription)
	if err != nil {
		return Result{}, err
	}
	acc, err := e.activeAccount(ctx, in.AccountID)
	if err != nil {
		return Result{}, err
	}
	if overLimit(acc, in.Amount) {
		return Result{}, ErrLimitExceeded
	}

	var rec txlog.Record
	updated, err := e.accounts.WithLock(ctx, acc.ID, func(view *account.Account) error {
		return debit(view, in.Amount)
	}, func(ctx context.Context, committed account.Account) error {
		stored, err := e.log.Append(ctx, txlog.Record{
			Type:         txlog.TypeWithdrawal,
			Amount:       in.Amount,
			FromAccount:  committed.ID,
			InitiatedBy:  in.Actor,
			Description:  desc,
			BalanceAfter: committed.Balance,
			Metadata:     in.Metadata,
		})
		rec = stored
		return err
	})
	if err != nil {
		return Result{}, e.fail(txlog.TypeWithdrawal, acc.ID, err)
	}
	return Result{Account: updated, Record: rec}, nil
}

// Transfer moves funds from an account to the account holding ToAccountNumber and
// writes a single record referencing both.
func (e *Engine) Transfer(ctx context.Context, in TransferInput) (TransferResult, error) {
	started := time.Now()
	res, err := e.transfer(ctx, in)
	e.observe(txlog.TypeTransfer, started, err)
	if err != nil {
		return TransferResult{}, err
	}
	e.committed(ctx, res.Record, res.From, res.To)
	return res, nil
}

func (e *Engine) transfer(ctx context.Context, in TransferInput) (TransferResult, error) {
	if !in.Amount.IsPositive() {
		return TransferResult{}, ErrInvalidAmount
	}
	desc, err := description(in.Description, defaultTransferDescription)
	if err != nil {
		return TransferResult{}, err
	}
	from, err := e.activeAccount(ctx, in.FromAccountID)
	if err != nil {
		return TransferResult{}, err
	}
	to, err := e.accounts.GetByNumber(ctx, strings.TrimSpace(in.ToAccountNumber))
	if err != nil {
		return TransferResult{}, outcome(err)
	}
	if !to.IsActive {
		return TransferResult{}, ErrInactive
	}
	if from.ID == to.ID {
		return TransferResult{}, ErrSameAccount
	}
	if from.Currency != to.Currency {
		return TransferResult{}, ErrCurrencyMismatch
	}
	if overLimit(from, in.Amount) {
		return TransferResult{}, ErrLimitExceeded
	}

	var rec txlog.Record
	src, dst, err := e.accounts.WithLockPair(ctx, from.ID, to.ID, func(src, dst *account.Account) error {
		if !dst.IsActive {
			return ErrInactive
		}
		if err := debit(src, in.Amount); err != nil {
			return err
		}
		next, err := dst.Balance.Add(in.Amount)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidAmount, err)
		}
		dst.Balance = next
		return nil
	}, func(ctx context.Context, src, dst account.Account) error {
		stored, err := e.log.Append(ctx, txlog.Record{
			Type:         txlog.TypeTransfer,
			Amount:       in.Amount,
			FromAccount:  src.ID,
			ToAccount:    dst.ID,
			InitiatedBy:  in.Actor,
			Description:  desc,
			BalanceAfter: src.Balance,
			Metadata:     in.Metadata,
		})
		rec = stored
		return err
	})
	if err != nil {
		return TransferResult{}, e.fail(txlog.TypeTransfer, from.ID, err)
	}
	return TransferResult{From: src, To: dst, Record: rec}, nil
}

// debit applies a debit to a locked view. Insufficient funds takes precedence
// over the withdrawal limit.
func debit(view *account.Account, amount money.Money) error {
	if !view.IsActive {
		return ErrInactive
	}
	next, err := view.Balance.Sub(amount)
	if err != nil {
		if errors.Is(err, money.ErrNegative) {
			return ErrInsufficientFunds
		}
		return fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}
	if amount > view.DailyWithdrawalLimit {
		return ErrLimitExceeded
	}
	view.Balance = next
	return nil
}

// overLimit is the pre-lock limit check. A debit the snapshot cannot cover is left
// to the locked balance check so it reports insufficient funds.
func overLimit(acc account.Account, amount money.Money) bool {
	return amount <= acc.Balance && amount > acc.DailyWithdrawalLimit
}

func (e *Engine) activeAccount(ctx context.Context, id string) (account.Account, error) {
	acc, err := e.accounts.Get(ctx, id)
	if err != nil {
		return account.Account{}, outcome(err)
	}
	if !acc.IsActive {
		return account.Account{}, ErrInactive
	}
	return acc, nil
}

func description(raw, fallback string) (string, error) {
	desc := strings.TrimSpace(raw)
	if desc == "" {
		return fallback, nil
	}
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidDescription, MaxDescriptionLength)
	}
	return desc, nil
}

func (e *Engine) fail(op txlog.Type, accountID string, err error) error {
	err = outcome(err)
	if errors.Is(err, ErrStoreUnavailable) {
		e.logger.Error("ledger operation failed",
			slog.String("operation", string(op)),
			slog.String("account_id", accountID),
			slog.Any("error", err),
		)
	}
	return err
}

func (e *Engine) observe(op txlog.Type, started time.Time, err error) {
	e.metrics.ObserveOperation(string(op), Kind(err), time.Since(started))
}

// committed runs after the section is released. Nothing here can fail the operation,
// and a cancelled caller context does not suppress the event.
func (e *Engine) committed(ctx context.Context, rec txlog.Record, parties ...account.Account) {
	primary := parties[0]
	e.metrics.AddVolume(string(rec.Type), primary.Currency, rec.Amount)
	e.logger.Info("transaction committed",
		slog.String("reference", rec.Reference),
		slog.String("type", string(rec.Type)),
		slog.String("account_number", primary.AccountNumber),
		slog.String("amount", rec.Amount.String()),
		slog.String("balance_after", rec.BalanceAfter.String()),
	)

	if e.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	for _, msg := range messages(rec, parties) {
		if err := e.notifier.Send(ctx, msg); err != nil {
			e.logger.Warn("notification failed",
				slog.String("reference", rec.Reference),
				slog.String("destination", msg.Destination),
				slog.Any("error", err),
			)
		}
	}
}

func messages(rec txlog.Record, parties []account.Account) []notification.Message {
	base := notification.Message{
		Kind:            notification.KindTransactionCompleted,
		Reference:       rec.Reference,
		TransactionType: string(rec.Type),
		Amount:          rec.Amount,
		OccurredAt:      rec.CreatedAt,
	}
	out := make([]notification.Message, 0, len(parties))
	for i, acc := range parties {
		msg := base
		msg.Destination = acc.OwnerID
		msg.AccountNumber = acc.AccountNumber
		msg.Currency = acc.Currency
		switch {
		case rec.Type == txlog.TypeDeposit:
			msg.Body = fmt.Sprintf("%s deposited to account %s", rec.Amount.Format(acc.Currency), acc.AccountNumber)
		case rec.Type == txlog.TypeWithdrawal:
			msg.Body = fmt.Sprintf("%s withdrawn from account %s", rec.Amount.Format(acc.Currency), acc.AccountNumber)
		case i == 0:
			msg.Body = fmt.Sprintf("%s sent from account %s to %s", rec.Amount.Format(acc.Currency), acc.AccountNumber, parties[1].AccountNumber)
		default:
			msg.Body = fmt.Sprintf("You received %s on account %s from %s", rec.Amount.Format(acc.Currency), acc.AccountNumber, parties[0].AccountNumber)
		}
		out = append(out, msg)
	}
	return out
}
