package account

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/ledger/internal/middleware"
	"github.com/congo-pay/ledger/internal/money"
)

// Handler exposes account provisioning endpoints for the authenticated owner.
type Handler struct {
	service *Service
}

// NewHandler builds an account HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type openRequest struct {
	Type     string `json:"type"`
	Currency string `json:"currency"`
}

// View is the JSON shape of an account.
type View struct {
	ID                   string      `json:"id"`
	AccountNumber        string      `json:"account_number"`
	Type                 Type        `json:"type"`
	Balance              money.Money `json:"balance"`
	FormattedBalance     string      `json:"formatted_balance"`
	Currency             string      `json:"currency"`
	DailyWithdrawalLimit money.Money `json:"daily_withdrawal_limit"`
	IsActive             bool        `json:"is_active"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// NewView renders acc for API responses.
func NewView(acc Account) View {
	return View{
		ID:                   acc.ID,
		AccountNumber:        acc.AccountNumber,
		Type:                 acc.Type,
		Balance:              acc.Balance,
		FormattedBalance:     acc.FormattedBalance(),
		Currency:             acc.Currency,
		DailyWithdrawalLimit: acc.DailyWithdrawalLimit,
		IsActive:             acc.IsActive,
		CreatedAt:            acc.CreatedAt,
		UpdatedAt:            acc.UpdatedAt,
	}
}

// Open provisions an account for the authenticated owner.
func (h *Handler) Open(c *fiber.Ctx) error {
	var req openRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	acc, err := h.service.Open(c.UserContext(), OpenInput{
		OwnerID:  middleware.Actor(c),
		Type:     req.Type,
		Currency: req.Currency,
	})
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(NewView(acc))
}

// List returns the owner's active accounts.
func (h *Handler) List(c *fiber.Ctx) error {
	accounts, err := h.service.ListByOwner(c.UserContext(), middleware.Actor(c))
	if err != nil {
		return HTTPError(err)
	}
	views := make([]View, 0, len(accounts))
	for _, acc := range accounts {
		views = append(views, NewView(acc))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"accounts": views})
}

// Get returns one of the owner's accounts.
func (h *Handler) Get(c *fiber.Ctx) error {
	acc, err := h.service.GetOwned(c.UserContext(), c.Params("id"), middleware.Actor(c))
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(NewView(acc))
}

// Deactivate soft-deletes one of the owner's accounts.
func (h *Handler) Deactivate(c *fiber.Ctx) error {
	acc, err := h.service.GetOwned(c.UserContext(), c.Params("id"), middleware.Actor(c))
	if err != nil {
		return HTTPError(err)
	}
	acc, err = h.service.Deactivate(c.UserContext(), acc.ID)
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(NewView(acc))
}

// HTTPError maps account store errors to HTTP errors.
func HTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "account not found")
	case errors.Is(err, ErrInvalidAccount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, "account store unavailable, try again")
	default:
		return fiber.NewError(http.StatusInternalServerError, "internal error")
	}
}
