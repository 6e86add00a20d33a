package history

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/ledger/internal/account"
	"github.com/congo-pay/ledger/internal/middleware"
	"github.com/congo-pay/ledger/internal/txlog"
)

// Handler exposes transaction history endpoints.
type Handler struct {
	service  *Service
	accounts *account.Service
}

// NewHandler builds a history HTTP handler.
func NewHandler(service *Service, accounts *account.Service) *Handler {
	return &Handler{service: service, accounts: accounts}
}

type pageResponse struct {
	Transactions []txlog.View `json:"transactions"`
	Pagination   pagination   `json:"pagination"`
}

type pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

// ForAccount returns one page of a single account's history. ?page, ?limit and
// ?type are optional.
func (h *Handler) ForAccount(c *fiber.Ctx) error {
	acc, err := h.accounts.GetOwned(c.UserContext(), c.Params("accountId"), middleware.Actor(c))
	if err != nil {
		return HTTPError(err)
	}
	page, err := h.service.History(c.UserContext(), Query{
		AccountID: acc.ID,
		Page:      c.QueryInt("page", DefaultPage),
		PageSize:  c.QueryInt("limit", DefaultPageSize),
		Type:      c.Query("type"),
	})
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(newPageResponse(page))
}

// ForActor returns one page of history across the actor's active accounts.
func (h *Handler) ForActor(c *fiber.Ctx) error {
	page, err := h.service.ForOwner(c.UserContext(), middleware.Actor(c),
		c.QueryInt("page", DefaultPage), c.QueryInt("limit", DefaultPageSize))
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(newPageResponse(page))
}

// HTTPError maps history errors to HTTP errors.
func HTTPError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidFilter):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "account not found")
	case errors.Is(err, account.ErrUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, "history temporarily unavailable, try again")
	default:
		return fiber.NewError(http.StatusInternalServerError, "internal error")
	}
}

func newPageResponse(p Page) pageResponse {
	views := make([]txlog.View, 0, len(p.Records))
	for _, rec := range p.Records {
		views = append(views, rec.View())
	}
	return pageResponse{
		Transactions: views,
		Pagination:   pagination{Total: p.TotalCount, Page: p.Page, Limit: p.PageSize, Pages: p.PageCount},
	}
}
