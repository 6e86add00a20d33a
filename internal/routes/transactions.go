package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/ledger/internal/history"
	"github.com/congo-pay/ledger/internal/ledger"
)

// RegisterTransactionRoutes wires transfers and history queries.
func RegisterTransactionRoutes(r fiber.Router, l *ledger.Handler, h *history.Handler) {
	r.Post("/transactions/transfer", l.Transfer)
	r.Get("/transactions", h.ForActor)
	r.Get("/transactions/:accountId", h.ForAccount)
}
