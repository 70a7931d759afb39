package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/paywave/paywave/internal/logging"
)

func setupIdempotencyApp(t *testing.T) (*fiber.App, *atomic.Int64, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))

	var handled atomic.Int64
	app.Post("/pay", func(c *fiber.Ctx) error {
		handled.Add(1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"transaction_id": handled.Load()})
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}
	return app, &handled, cleanup
}

func postPay(t *testing.T, app *fiber.App, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/pay", strings.NewReader("{}"))
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
	return resp.StatusCode, string(body)
}

func TestIdempotencyReplaysFirstResponse(t *testing.T) {
	app, handled, cleanup := setupIdempotencyApp(t)
	defer cleanup()

	status1, body1 := postPay(t, app, "retry-1")
	if status1 != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d", status1)
	}

	status2, body2 := postPay(t, app, "retry-1")
	if status2 != fiber.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", status2)
	}
	if body1 != body2 {
		t.Fatalf("replayed body differs: %q vs %q", body1, body2)
	}
	if handled.Load() != 1 {
		t.Fatalf("handler must run once, ran %d times", handled.Load())
	}
}

func TestIdempotencyConcurrentDuplicatesRunHandlerOnce(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))

	var handled atomic.Int64
	app.Post("/pay", func(c *fiber.Ctx) error {
		handled.Add(1)
		// Hold the request open so concurrent duplicates overlap with it.
		time.Sleep(50 * time.Millisecond)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true})
	})

	const attempts = 4
	statuses := make([]int, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(fiber.MethodPost, "/pay", strings.NewReader("{}"))
			req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			req.Header.Set(idempotencyKeyHeader, "race-key")
			resp, err := app.Test(req, 5000)
			if err != nil {
				t.Errorf("app.Test: %v", err)
				return
			}
			resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	if handled.Load() != 1 {
		t.Fatalf("handler must run once for one key, ran %d times", handled.Load())
	}
	for _, status := range statuses {
		// Either the winning 201, its replay, or a conflict for an in-flight
		// duplicate. Never a second execution.
		if status != fiber.StatusCreated && status != fiber.StatusConflict {
			t.Fatalf("unexpected status for duplicate: %v", statuses)
		}
	}
}

func TestIdempotencyDistinctKeysProcessSeparately(t *testing.T) {
	app, handled, cleanup := setupIdempotencyApp(t)
	defer cleanup()

	postPay(t, app, "key-a")
	postPay(t, app, "key-b")

	if handled.Load() != 2 {
		t.Fatalf("distinct keys must both run, ran %d times", handled.Load())
	}
}

func TestIdempotencyWithoutKeyPassesThrough(t *testing.T) {
	app, handled, cleanup := setupIdempotencyApp(t)
	defer cleanup()

	postPay(t, app, "")
	postPay(t, app, "")

	if handled.Load() != 2 {
		t.Fatalf("requests without a key are not deduplicated, ran %d times", handled.Load())
	}
}
