package txlog

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/congo-pay/ledger/internal/money"
)

// Type is the kind of balance change a record describes.
type Type string

const (
	TypeDeposit    Type = "deposit"
	TypeWithdrawal Type = "withdrawal"
	TypeTransfer   Type = "transfer"
)

// Status of a record. The ledger only writes StatusCompleted; failed operations leave
// no record and reversals are reserved for compensating transactions.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusReversed  Status = "reversed"
)

const referencePrefix = "TXN"

var (
	// ErrDuplicateReference is returned when a reference is already stored.
	ErrDuplicateReference = errors.New("duplicate transaction reference")
	// ErrInvalidRecord is returned for records that violate the log's shape rules.
	ErrInvalidRecord = errors.New("invalid transaction record")
	// ErrInvalidType is returned for an unknown type filter.
	ErrInvalidType = errors.New("invalid transaction type")
)

// Metadata captures request context supplied by the caller layer.
type Metadata struct {
	IP        string
	UserAgent string
}

// Record is an immutable entry describing one applied balance change.
type Record struct {
	ID           string
	Seq          int64
	Reference    string
	Type         Type
	Amount       money.Money
	FromAccount  string
	ToAccount    string
	InitiatedBy  string
	Description  string
	BalanceAfter money.Money
	Status       Status
	Metadata     Metadata
	CreatedAt    time.Time
}

// Involves reports whether the record touches accountID.
func (r Record) Involves(accountID string) bool {
	return r.FromAccount == accountID || r.ToAccount == accountID
}

// SignedAmount returns the record's effect on accountID: positive for credits,
// negative for debits and zero when the account is not involved.
func (r Record) SignedAmount(accountID string) money.Money {
	switch accountID {
	case r.ToAccount:
		return r.Amount
	case r.FromAccount:
		return -r.Amount
	default:
		return 0
	}
}

// NewReference returns a globally unique, time-sortable reference such as
// TXN01J9Z3K8Q4T6V2W0XRB5C7D8EF.
func NewReference() string {
	return referencePrefix + ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// ParseType validates a type filter; the empty string means no filter.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case "", TypeDeposit, TypeWithdrawal, TypeTransfer:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

func validate(r Record) error {
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRecord)
	}
	switch r.Type {
	case TypeDeposit:
		if r.ToAccount == "" || r.FromAccount != "" {
			return fmt.Errorf("%w: deposit needs only a destination account", ErrInvalidRecord)
		}
	case TypeWithdrawal:
		if r.FromAccount == "" || r.ToAccount != "" {
			return fmt.Errorf("%w: withdrawal needs only a source account", ErrInvalidRecord)
		}
	case TypeTransfer:
		if r.FromAccount == "" || r.ToAccount == "" || r.FromAccount == r.ToAccount {
			return fmt.Errorf("%w: transfer needs two distinct accounts", ErrInvalidRecord)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidRecord, r.Type)
	}
	if r.BalanceAfter < 0 {
		return fmt.Errorf("%w: negative balance after", ErrInvalidRecord)
	}
	return nil
}
