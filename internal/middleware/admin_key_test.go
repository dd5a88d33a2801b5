package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestAdminKey(t *testing.T) {
	app := fiber.New()
	app.Get("/admin", AdminKey("s3cret"), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	cases := map[string]int{
		"":       fiber.StatusUnauthorized,
		"wrong":  fiber.StatusUnauthorized,
		"s3cret": fiber.StatusOK,
	}
	for key, want := range cases {
		req := httptest.NewRequest(fiber.MethodGet, "/admin", nil)
		if key != "" {
			req.Header.Set(adminKeyHeader, key)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if resp.StatusCode != want {
			t.Fatalf("key %q: expected %d, got %d", key, want, resp.StatusCode)
		}
	}
}

func TestAdminKeyUnconfigured(t *testing.T) {
	app := fiber.New()
	app.Get("/admin", AdminKey(""), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	req := httptest.NewRequest(fiber.MethodGet, "/admin", nil)
	req.Header.Set(adminKeyHeader, "")
	resp, _ := app.Test(req)
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}
