package txlog

import (
	"time"

	"github.com/congo-pay/ledger/internal/money"
)

// View is the JSON shape of a record. Metadata stays internal.
type View struct {
	ID           string      `json:"id"`
	Reference    string      `json:"reference"`
	Type         Type        `json:"type"`
	Amount       money.Money `json:"amount"`
	FromAccount  string      `json:"from_account_id,omitempty"`
	ToAccount    string      `json:"to_account_id,omitempty"`
	InitiatedBy  string      `json:"initiated_by"`
	Description  string      `json:"description"`
	BalanceAfter money.Money `json:"balance_after"`
	Status       Status      `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
}

// View renders the record for API responses.
func (r Record) View() View {
	return View{
		ID:           r.ID,
		Reference:    r.Reference,
		Type:         r.Type,
		Amount:       r.Amount,
		FromAccount:  r.FromAccount,
		ToAccount:    r.ToAccount,
		InitiatedBy:  r.InitiatedBy,
		Description:  r.Description,
		BalanceAfter: r.BalanceAfter,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt,
	}
}
