package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ActorKey is the fiber Locals key holding the authenticated owner id.
const ActorKey = "user_id"

// TokenVerifier resolves a bearer token to an actor id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// ActorAuth requires a valid bearer token and stores its subject under ActorKey.
func ActorAuth(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if len(authz) < len("bearer ") || !strings.EqualFold(authz[:len("bearer ")], "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		actor, err := verifier.Verify(strings.TrimSpace(authz[len("bearer "):]))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		c.Locals(ActorKey, actor)
		return c.Next()
	}
}

// Actor returns the authenticated owner id, or "" when none is set.
func Actor(c *fiber.Ctx) string {
	actor, _ := c.Locals(ActorKey).(string)
	return actor
}
