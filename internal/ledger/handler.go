package ledger

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/ledger/internal/account"
	"github.com/congo-pay/ledger/internal/middleware"
	"github.com/congo-pay/ledger/internal/money"
	"github.com/congo-pay/ledger/internal/txlog"
)

// Handler exposes deposit, withdrawal and transfer endpoints. Every source
// account must belong to the authenticated actor.
type Handler struct {
	engine   *Engine
	accounts *account.Service
}

// NewHandler builds a ledger HTTP handler.
func NewHandler(engine *Engine, accounts *account.Service) *Handler {
	return &Handler{engine: engine, accounts: accounts}
}

type amountRequest struct {
	Amount      money.Money `json:"amount"`
	Description string      `json:"description"`
}

type transferRequest struct {
	FromAccountID   string      `json:"from_account_id"`
	ToAccountNumber string      `json:"to_account_number"`
	Amount          money.Money `json:"amount"`
	Description     string      `json:"description"`
}

type resultResponse struct {
	Account     account.View `json:"account"`
	Transaction txlog.View   `json:"transaction"`
}

type transferResponse struct {
	From        account.View `json:"from_account"`
	Transaction txlog.View   `json:"transaction"`
}

// Deposit credits one of the actor's accounts.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	actor := middleware.Actor(c)
	acc, err := h.accounts.GetOwned(c.UserContext(), c.Params("id"), actor)
	if err != nil {
		return HTTPError(err)
	}
	res, err := h.engine.Deposit(c.UserContext(), DepositInput{
		AccountID:   acc.ID,
		Amount:      req.Amount,
		Description: req.Description,
		Actor:       actor,
		Metadata:    metadata(c),
	})
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(resultResponse{Account: account.NewView(res.Account), Transaction: res.Record.View()})
}

// Withdraw debits one of the actor's accounts.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	actor := middleware.Actor(c)
	acc, err := h.accounts.GetOwned(c.UserContext(), c.Params("id"), actor)
	if err != nil {
		return HTTPError(err)
	}
	res, err := h.engine.Withdraw(c.UserContext(), WithdrawInput{
		AccountID:   acc.ID,
		Amount:      req.Amount,
		Description: req.Description,
		Actor:       actor,
		Metadata:    metadata(c),
	})
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(resultResponse{Account: account.NewView(res.Account), Transaction: res.Record.View()})
}

// Transfer moves funds from one of the actor's accounts to any active account
// identified by its account number. Only the source side is returned.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.FromAccountID == "" || req.ToAccountNumber == "" {
		return fiber.NewError(http.StatusBadRequest, "from_account_id and to_account_number are required")
	}
	actor := middleware.Actor(c)
	from, err := h.accounts.GetOwned(c.UserContext(), req.FromAccountID, actor)
	if err != nil {
		return HTTPError(err)
	}
	res, err := h.engine.Transfer(c.UserContext(), TransferInput{
		FromAccountID:   from.ID,
		ToAccountNumber: req.ToAccountNumber,
		Amount:          req.Amount,
		Description:     req.Description,
		Actor:           actor,
		Metadata:        metadata(c),
	})
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(transferResponse{From: account.NewView(res.From), Transaction: res.Record.View()})
}

// HTTPError maps ledger outcomes to HTTP errors.
func HTTPError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidDescription),
		errors.Is(err, ErrSameAccount),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrLimitExceeded),
		errors.Is(err, ErrCurrencyMismatch):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "account not found")
	case errors.Is(err, ErrInactive):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrStoreUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, "ledger temporarily unavailable, try again")
	default:
		return fiber.NewError(http.StatusInternalServerError, "internal error")
	}
}

func metadata(c *fiber.Ctx) txlog.Metadata {
	return txlog.Metadata{IP: c.IP(), UserAgent: c.Get(fiber.HeaderUserAgent)}
}
