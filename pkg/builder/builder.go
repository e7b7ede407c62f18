package builder

import (
	"time"

	"github.com/resumeforge/backend/internal/config"
	"github.com/resumeforge/backend/internal/models"
	"github.com/gofiber/fiber/v2"
)

// Builder assembles a service configuration programmatically, as an
// alternative to loading a YAML file. Used by embedders and tests.
type Builder struct {
	cfg             *config.Config
	middlewares     []fiber.Handler
	rateLimitConfig *RateLimitConfig
}

type RateLimitConfig struct {
	Max        int
	Expiration time.Duration
	KeyFunc    func(*fiber.Ctx) string
}

func New() *Builder {
	return &Builder{
		cfg: &config.Config{
			Server: models.ServerConfig{
				Port:           "8080",
				AllowedOrigins: "*",
				Environment:    "development",
				LogLevel:       "info",
			},
			Credits: models.CreditsConfig{
				FreeTierCredits: 3,
			},
		},
		middlewares: []fiber.Handler{},
	}
}

func (b *Builder) Build() *config.Config {
	return b.cfg
}

func (b *Builder) GetMiddlewares() []fiber.Handler {
	return b.middlewares
}

func (b *Builder) GetRateLimitConfig() *RateLimitConfig {
	return b.rateLimitConfig
}

func (b *Builder) WithMiddleware(middleware fiber.Handler) *Builder {
	b.middlewares = append(b.middlewares, middleware)
	return b
}

func (b *Builder) WithRateLimit(max int, expiration time.Duration, keyFunc ...func(*fiber.Ctx) string) *Builder {
	cfg := &RateLimitConfig{Max: max, Expiration: expiration}
	if len(keyFunc) > 0 {
		cfg.KeyFunc = keyFunc[0]
	}
	b.rateLimitConfig = cfg
	return b
}
