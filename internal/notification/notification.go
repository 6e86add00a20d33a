package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/congo-pay/ledger/internal/money"
)

const (
	// KindTransactionCompleted is emitted once per committed ledger operation and party.
	KindTransactionCompleted = "transaction.completed"
)

// Message describes a notification payload.
type Message struct {
	Kind            string      `json:"kind"`
	Destination     string      `json:"destination"`
	Body            string      `json:"body"`
	Reference       string      `json:"reference,omitempty"`
	TransactionType string      `json:"transaction_type,omitempty"`
	AccountNumber   string      `json:"account_number,omitempty"`
	Amount          money.Money `json:"amount"`
	Currency        string      `json:"currency,omitempty"`
	OccurredAt      time.Time   `json:"occurred_at"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("kind", message.Kind),
		slog.String("destination", message.Destination),
		slog.String("reference", message.Reference),
		slog.String("body", message.Body),
	)
	return nil
}
