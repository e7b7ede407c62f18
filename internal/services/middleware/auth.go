package middleware

import (
	"strings"

	"github.com/resumeforge/backend/internal/services/auth"
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

type AuthMiddleware struct {
	providers []auth.Provider
	config    *AuthMiddlewareConfig
}

type AuthMiddlewareConfig struct {
	Enabled     bool
	HeaderNames []string
	// SkipPaths are prefixes served without a bearer token. Webhook
	// endpoints verify their own signatures and belong here.
	SkipPaths []string
}

func DefaultAuthMiddlewareConfig() *AuthMiddlewareConfig {
	return &AuthMiddlewareConfig{
		Enabled:     true,
		HeaderNames: []string{"Authorization"},
		SkipPaths: []string{
			"/health",
			"/v1/webhooks",
		},
	}
}

// NewAuthMiddleware builds the bearer-token middleware. Providers are tried
// in order; the first one that validates the token wins.
func NewAuthMiddleware(providers []auth.Provider, config *AuthMiddlewareConfig) *AuthMiddleware {
	if config == nil {
		config = DefaultAuthMiddlewareConfig()
	}
	if len(config.HeaderNames) == 0 {
		config.HeaderNames = []string{"Authorization"}
	}
	return &AuthMiddleware{
		providers: providers,
		config:    config,
	}
}

// RequireAuth rejects requests without a valid identity.
func (m *AuthMiddleware) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !m.config.Enabled || m.skip(c.Path()) {
			return c.Next()
		}

		token := m.extractToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing bearer token",
			})
		}

		for _, provider := range m.providers {
			identity, err := provider.ValidateToken(c.Context(), token)
			if err == nil && identity != nil {
				auth.SetIdentity(c, identity)
				return c.Next()
			}
		}

		fiberlog.Debugf("auth: token rejected for %s %s", c.Method(), c.Path())
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired token",
		})
	}
}

// RequireAdmin gates the back-office surface.
func (m *AuthMiddleware) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !auth.IsAdmin(c) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "This operation requires admin privileges",
			})
		}
		return c.Next()
	}
}

func (m *AuthMiddleware) extractToken(c *fiber.Ctx) string {
	for _, header := range m.config.HeaderNames {
		value := c.Get(header)
		if value == "" {
			continue
		}
		if after, found := strings.CutPrefix(value, "Bearer "); found {
			return strings.TrimSpace(after)
		}
		return strings.TrimSpace(value)
	}
	return ""
}

func (m *AuthMiddleware) skip(path string) bool {
	for _, prefix := range m.config.SkipPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
