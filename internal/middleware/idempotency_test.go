package middleware

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mamapay/ledgerwallet/internal/logging"
)

// setupTestApp mounts the middleware in front of a payment-style route whose
// handler mints a fresh settlement id per invocation, so a replayed response
// is distinguishable from a re-executed one.
func setupTestApp(t *testing.T) (*fiber.App, *int, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))

	submissions := 0
	app.Post("/payments", func(c *fiber.Ctx) error {
		submissions++
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":   fmt.Sprintf("settlement-%d", submissions),
			"memo": "rent",
		})
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}
	return app, &submissions, cleanup
}

func postPayment(t *testing.T, app *fiber.App, key string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/payments",
		strings.NewReader(`{"amount":"10","sender":"alice","recipient":"bob","memo":"rent"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, body
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	app, _, cleanup := setupTestApp(t)
	defer cleanup()

	status, _ := postPayment(t, app, "")
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, status)
	}
}

func TestIdempotencyReplaysWithoutResubmitting(t *testing.T) {
	app, submissions, cleanup := setupTestApp(t)
	defer cleanup()

	status, first := postPayment(t, app, "pay-abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected status %d got %d", fiber.StatusCreated, status)
	}

	status, replayed := postPayment(t, app, "pay-abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected cached status %d got %d", fiber.StatusCreated, status)
	}
	if *submissions != 1 {
		t.Fatalf("expected 1 submission, handler ran %d times", *submissions)
	}
	if string(replayed) != string(first) {
		t.Fatalf("replay diverged: %s vs %s", replayed, first)
	}

	var decoded map[string]any
	if err := json.Unmarshal(replayed, &decoded); err != nil {
		t.Fatalf("replayed payload invalid json: %v", err)
	}
	if decoded["id"] != "settlement-1" {
		t.Fatalf("expected the original settlement id, got %v", decoded["id"])
	}
}

func TestIdempotencyDistinctKeysSubmitSeparately(t *testing.T) {
	app, submissions, cleanup := setupTestApp(t)
	defer cleanup()

	postPayment(t, app, "pay-1")
	postPayment(t, app, "pay-2")
	if *submissions != 2 {
		t.Fatalf("expected 2 submissions, got %d", *submissions)
	}
}
