package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/ledger/internal/logging"
)

type testApp struct {
	app   *fiber.App
	calls *atomic.Int32
}

func setupTestApp(t *testing.T) testApp {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	calls := new(atomic.Int32)
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if actor := c.Get("X-Test-Actor"); actor != "" {
			c.Locals(ActorKey, actor)
		}
		return c.Next()
	})
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/resource", func(c *fiber.Ctx) error {
		n := calls.Add(1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"call": n})
	})
	app.Post("/broken", func(c *fiber.Ctx) error {
		calls.Add(1)
		return fiber.NewError(fiber.StatusServiceUnavailable, "down")
	})
	return testApp{app: app, calls: calls}
}

func post(t *testing.T, app *fiber.App, path, key, actor, body string) (int, string, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	if actor != "" {
		req.Header.Set("X-Test-Actor", actor)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(payload), resp.Header.Get("Idempotent-Replayed")
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	ta := setupTestApp(t)
	if status, _, _ := post(t, ta.app, "/resource", "", "", "{}"); status != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, status)
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	ta := setupTestApp(t)

	status, first, _ := post(t, ta.app, "/resource", "abc123", "user-1", `{"amount":"10.00"}`)
	if status != fiber.StatusCreated {
		t.Fatalf("expected status %d got %d", fiber.StatusCreated, status)
	}
	status, second, replayed := post(t, ta.app, "/resource", "abc123", "user-1", `{"amount":"10.00"}`)
	if status != fiber.StatusCreated || second != first || replayed != "true" {
		t.Fatalf("expected replay of %s, got %d %s replayed=%q", first, status, second, replayed)
	}
	if ta.calls.Load() != 1 {
		t.Fatalf("handler ran %d times", ta.calls.Load())
	}
}

func TestIdempotencyKeysAreScopedPerActor(t *testing.T) {
	ta := setupTestApp(t)
	post(t, ta.app, "/resource", "shared", "user-1", "{}")
	_, body, replayed := post(t, ta.app, "/resource", "shared", "user-2", "{}")
	if replayed != "" || !strings.Contains(body, `"call":2`) {
		t.Fatalf("another actor's key replayed: %s", body)
	}
}

func TestIdempotencyRejectsReusedKeyWithDifferentBody(t *testing.T) {
	ta := setupTestApp(t)
	post(t, ta.app, "/resource", "k1", "user-1", `{"amount":"10.00"}`)
	if status, _, _ := post(t, ta.app, "/resource", "k1", "user-1", `{"amount":"99.00"}`); status != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected %d got %d", fiber.StatusUnprocessableEntity, status)
	}
}

func TestIdempotencyReleasesKeyOnFailure(t *testing.T) {
	ta := setupTestApp(t)
	post(t, ta.app, "/broken", "k2", "user-1", "{}")
	post(t, ta.app, "/broken", "k2", "user-1", "{}")
	if ta.calls.Load() != 2 {
		t.Fatalf("failed request was cached: %d calls", ta.calls.Load())
	}
}
