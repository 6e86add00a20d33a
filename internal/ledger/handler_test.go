package ledger

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestHTTPErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrInvalidAmount, http.StatusBadRequest},
		{ErrInvalidDescription, http.StatusBadRequest},
		{ErrSameAccount, http.StatusBadRequest},
		{ErrInsufficientFunds, http.StatusBadRequest},
		{ErrLimitExceeded, http.StatusBadRequest},
		{ErrCurrencyMismatch, http.StatusBadRequest},
		{ErrNotFound, http.StatusNotFound},
		{ErrInactive, http.StatusConflict},
		{fmt.Errorf("%w: %w", ErrStoreUnavailable, errors.New("timeout")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		var fe *fiber.Error
		if !errors.As(HTTPError(tc.err), &fe) || fe.Code != tc.want {
			t.Errorf("HTTPError(%v): expected %d, got %v", tc.err, tc.want, HTTPError(tc.err))
		}
	}
}
