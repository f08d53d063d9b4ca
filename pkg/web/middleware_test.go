package web_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/derivia/orchepy/pkg/config"
	"github.com/derivia/orchepy/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func whitelistApp(cfg *config.Config) *fiber.App {
	app := fiber.New()
	app.Use(web.NewWhitelistMiddleware(cfg, slog.Default()))
	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("ok")
	})

	return app
}

func TestWhitelistMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("disabled admits everyone", func(t *testing.T) {
		t.Parallel()

		app := whitelistApp(config.New())

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("allows whitelisted forwarded IP", func(t *testing.T) {
		t.Parallel()

		cfg := config.New()
		cfg.WhitelistEnabled = true
		cfg.WhitelistIPs = config.ParseWhitelist("203.0.113.9, 198.51.100.7")

		app := whitelistApp(cfg)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("blocks unknown IP", func(t *testing.T) {
		t.Parallel()

		cfg := config.New()
		cfg.WhitelistEnabled = true
		cfg.WhitelistIPs = config.ParseWhitelist("203.0.113.9")

		app := whitelistApp(cfg)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "192.0.2.55")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("loopback always admitted", func(t *testing.T) {
		t.Parallel()

		cfg := config.New()
		cfg.WhitelistEnabled = true

		app := whitelistApp(cfg)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Real-Ip", "127.0.0.1")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
