package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/ledger/internal/account"
	"github.com/congo-pay/ledger/internal/ledger"
)

// RegisterAccountRoutes wires account provisioning and single-account balance changes.
func RegisterAccountRoutes(r fiber.Router, h *account.Handler, l *ledger.Handler) {
	r.Post("/accounts", h.Open)
	r.Get("/accounts", h.List)
	r.Get("/accounts/:id", h.Get)
	r.Delete("/accounts/:id", h.Deactivate)
	r.Post("/accounts/:id/deposit", l.Deposit)
	r.Post("/accounts/:id/withdraw", l.Withdraw)
}
