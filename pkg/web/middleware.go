package web

import (
	"log/slog"
	"net"
	"strings"

	"github.com/derivia/orchepy/pkg/config"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

// NewWhitelistMiddleware rejects requests from addresses outside the
// configured allow-list. Loopback is always admitted, so local tooling keeps
// working with the whitelist on.
func NewWhitelistMiddleware(cfg *config.Config, logger *slog.Logger) fiber.Handler {
	logger = logger.With("module", "whitelist")

	return func(c fiber.Ctx) error {
		if !cfg.WhitelistEnabled {
			return c.Next()
		}

		ip := clientIP(c)
		if ip != nil && cfg.IPAllowed(ip) {
			return c.Next()
		}

		logger.Warn("Blocked request from unauthorized IP", "ip", c.IP(), "path", c.Path())

		problem := problems.NewStatusProblem(fiber.StatusForbidden).
			WithInstance(c.Path()).
			WithType("ip_not_allowed").
			WithDetail("Access denied")

		return c.Status(fiber.StatusForbidden).JSON(problem)
	}
}

// clientIP resolves the caller address, preferring proxy headers over the
// socket peer.
func clientIP(c fiber.Ctx) net.IP {
	if forwarded := c.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip
		}
	}

	if realIP := c.Get("X-Real-Ip"); realIP != "" {
		if ip := net.ParseIP(strings.TrimSpace(realIP)); ip != nil {
			return ip
		}
	}

	return net.ParseIP(c.IP())
}
