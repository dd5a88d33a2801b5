package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tujenge/tujenge/internal/auth"
)

func TestJWTAuthSetsPhone(t *testing.T) {
	issuer := auth.NewIssuer("secret", time.Hour)
	app := fiber.New()
	app.Get("/me", JWTAuth(issuer), func(c *fiber.Ctx) error { return c.SendString(Phone(c)) })

	resp, _ := app.Test(httptest.NewRequest(fiber.MethodGet, "/me", nil))
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	token, _, err := issuer.Issue("0712345678")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || string(body) != "0712345678" {
		t.Fatalf("unexpected response %d %s", resp.StatusCode, body)
	}
}

func TestLoginRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := fiber.New()
	app.Post("/login", LoginRateLimit(cache, 2), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	var last int
	// Three spellings of the same number share one bucket.
	for _, phone := range []string{"0712345678", "+254712345678", "712345678"} {
		req := httptest.NewRequest(fiber.MethodPost, "/login", strings.NewReader(`{"phone":"`+phone+`"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		last = resp.StatusCode
	}
	if last != fiber.StatusTooManyRequests {
		t.Fatalf("expected third attempt to be throttled, got %d", last)
	}
}
