package config

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/resumeforge/backend/internal/api"
	"github.com/resumeforge/backend/internal/config"
	"github.com/resumeforge/backend/internal/services/auth"
	"github.com/resumeforge/backend/internal/services/billing"
	"github.com/resumeforge/backend/internal/services/cache"
	"github.com/resumeforge/backend/internal/services/database"
	"github.com/resumeforge/backend/internal/services/ledger"
	"github.com/resumeforge/backend/internal/services/middleware"
	"github.com/resumeforge/backend/pkg/builder"

	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

// App represents a ResumeForge credits service instance.
type App struct {
	config  *config.Config
	app     *fiber.App
	redis   *redis.Client
	db      *database.DB
	builder *builder.Builder
}

// NewApp creates a new App instance with the given configuration.
// The cfg parameter is required and must not be nil.
func NewApp(cfg *config.Config) *App {
	if cfg == nil {
		panic("config cannot be nil - use config.LoadFromFile() or the builder to create config")
	}

	return &App{config: cfg}
}

// NewAppWithBuilder creates a new App instance from a configuration builder.
func NewAppWithBuilder(b *builder.Builder) *App {
	return &App{
		config:  b.Build(),
		builder: b,
	}
}

// Run starts the service and blocks until shutdown.
func (a *App) Run() error {
	if err := a.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogLevel(a.config)

	port := a.config.Server.Port
	if port == "" {
		port = "8080"
	}
	listenAddr := ":" + port

	a.app = createFiberApp(a.config)

	// === Infrastructure Setup ===
	db, err := database.New(*a.config.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db
	defer func() {
		if err := a.db.Close(); err != nil {
			fiberlog.Errorf("Failed to close database connection: %v", err)
		}
	}()

	if err := a.db.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	a.redis = createRedisClient(a.config)
	if a.redis != nil {
		defer func() {
			if err := a.redis.Close(); err != nil {
				fiberlog.Errorf("Failed to close Redis client: %v", err)
			}
		}()
	}

	// === Middleware Setup ===
	a.setupMiddleware()

	// === Services and Routes ===
	a.setupRoutes()

	// Welcome endpoint
	a.app.Get("/", welcomeHandler())

	fmt.Printf("ResumeForge credits service starting on %s\n", listenAddr)
	fmt.Printf("   Environment: %s\n", a.config.Server.Environment)
	fmt.Printf("   Go version: %s\n", runtime.Version())

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := a.app.Listen(listenAddr); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		fiberlog.Infof("Received signal: %v. Starting graceful shutdown...", sig)
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		fiberlog.Info("Context cancelled, starting shutdown...")
	}

	fiberlog.Info("Server shutting down gracefully...")
	if err := a.app.ShutdownWithTimeout(30 * time.Second); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	fiberlog.Info("Server shutdown completed successfully")

	return nil
}

func createFiberApp(cfg *config.Config) *fiber.App {
	isProd := cfg.IsProduction()

	return fiber.New(fiber.Config{
		AppName:           "ResumeForge Credits v1.0",
		EnablePrintRoutes: !isProd,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       5 * time.Minute,
		CaseSensitive:     true,
		StrictRouting:     false,
		ServerHeader:      "ResumeForge",
	})
}

func (a *App) setupMiddleware() {
	cfg := a.config
	isProd := cfg.IsProduction()

	// Recover middleware (must be first)
	a.app.Use(recover.New(recover.Config{
		EnableStackTrace: !isProd,
	}))

	// Rate limiter (use builder config if available, otherwise defaults)
	max, expiration := 300, 1*time.Minute
	keyFunc := func(c *fiber.Ctx) string { return c.IP() }
	if a.builder != nil && a.builder.GetRateLimitConfig() != nil {
		rlCfg := a.builder.GetRateLimitConfig()
		max, expiration = rlCfg.Max, rlCfg.Expiration
		if rlCfg.KeyFunc != nil {
			keyFunc = rlCfg.KeyFunc
		}
	}
	a.app.Use(limiter.New(limiter.Config{
		Max:               max,
		Expiration:        expiration,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      keyFunc,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": fmt.Sprintf("%d requests per %v", max, expiration),
			})
		},
	}))

	// Compression
	a.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Logging
	if isProd {
		a.app.Use(logger.New(logger.Config{
			Format: "${time} ${status} ${method} ${path} ${latency} ${bytesSent}b\n",
			Output: os.Stdout,
		}))
	} else {
		a.app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path} ${error}\n",
			Output: os.Stdout,
		}))
	}

	// CORS
	a.app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, PATCH, DELETE, OPTIONS",
	}))

	// Custom middlewares from the builder
	if a.builder != nil {
		for _, m := range a.builder.GetMiddlewares() {
			a.app.Use(m)
		}
	}
}

func (a *App) setupRoutes() {
	cfg := a.config

	// Core ledger service
	ledgerService := ledger.NewService(a.db.DB, ledger.NewCostTable(cfg.Credits.Costs))
	if a.redis != nil {
		ttl := time.Duration(0)
		if cfg.Cache != nil {
			ttl = time.Duration(cfg.Cache.BalanceTTLSeconds) * time.Second
		}
		ledgerService.WithBalanceCache(cache.NewBalanceCache(a.redis, ttl))
	}

	// Auth providers: Clerk for end users, service tokens for internal
	// callers like the generation workflow.
	var providers []auth.Provider
	if cfg.Auth != nil && cfg.Auth.ClerkConfig != nil && cfg.Auth.ClerkConfig.SecretKey != "" {
		providers = append(providers, auth.NewClerkProvider(cfg.Auth.ClerkConfig.SecretKey))
	}
	if cfg.Auth != nil && cfg.Auth.ServiceTokenSecret != "" {
		providers = append(providers, auth.NewServiceTokenProvider(cfg.Auth.ServiceTokenSecret))
	}
	authMiddleware := middleware.NewAuthMiddleware(providers, &middleware.AuthMiddlewareConfig{
		Enabled:     len(providers) > 0,
		HeaderNames: []string{"Authorization"},
		SkipPaths:   []string{"/health", "/v1/webhooks"},
	})

	// Handlers
	creditsHandler := api.NewCreditsHandler(ledgerService)
	promoHandler := api.NewPromoHandler(ledgerService)
	adminHandler := api.NewAdminHandler(ledgerService)
	healthHandler := api.NewHealthHandler(a.db, a.redis)

	a.app.Get("/health", healthHandler.HealthCheck)

	v1 := a.app.Group("/v1", authMiddleware.RequireAuth())

	credits := v1.Group("/credits")
	credits.Get("/balance", creditsHandler.GetBalance)
	credits.Post("/authorize", creditsHandler.Authorize)
	credits.Post("/debit", creditsHandler.Debit)
	credits.Get("/history", creditsHandler.GetHistory)
	credits.Get("/packs", creditsHandler.ListPacks)
	credits.Post("/promo/redeem", promoHandler.Redeem)

	// Billing surface needs Stripe configured
	if cfg.Billing != nil && cfg.Billing.SecretKey != "" {
		stripeService := billing.NewStripeService(billing.StripeConfig{
			SecretKey:     cfg.Billing.SecretKey,
			WebhookSecret: cfg.Billing.WebhookSecret,
		}, ledgerService)
		stripeHandler := api.NewStripeHandler(stripeService)

		v1.Post("/checkout/sessions", stripeHandler.CreateCheckoutSession)
		v1.Post("/webhooks/stripe", stripeHandler.HandleWebhook)
	}

	// User lifecycle webhook needs Clerk configured
	if cfg.Auth != nil && cfg.Auth.ClerkConfig != nil && cfg.Auth.ClerkConfig.WebhookSecret != "" {
		clerkHandler := api.NewClerkWebhookHandler(
			cfg.Auth.ClerkConfig.WebhookSecret,
			ledgerService,
			cfg.Credits.FreeTierCredits,
		)
		v1.Post("/webhooks/clerk", clerkHandler.HandleWebhook)
	}

	// Admin back-office
	admin := v1.Group("/admin", authMiddleware.RequireAdmin())
	admin.Post("/credits/grant", adminHandler.GrantCredits)
	admin.Get("/users/:user_id/balance", adminHandler.GetUserBalance)
	admin.Get("/users/:user_id/history", adminHandler.GetUserHistory)
	admin.Get("/users/:user_id/reconcile", adminHandler.ReconcileUser)
	admin.Get("/promo-codes", adminHandler.ListPromoCodes)
	admin.Post("/promo-codes", adminHandler.CreatePromoCode)
	admin.Put("/promo-codes/:code", adminHandler.UpdatePromoCode)
	admin.Get("/packs", adminHandler.ListCreditPacks)
	admin.Post("/packs", adminHandler.CreateCreditPack)
	admin.Put("/packs/:id", adminHandler.UpdateCreditPack)
}

func createRedisClient(cfg *config.Config) *redis.Client {
	if cfg.Cache == nil || cfg.Cache.RedisURL == "" {
		fiberlog.Info("Redis not configured, balance cache disabled")
		return nil
	}

	opt, err := redis.ParseURL(cfg.Cache.RedisURL)
	if err != nil {
		fiberlog.Errorf("Invalid redis URL, balance cache disabled: %v", err)
		return nil
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		fiberlog.Warnf("Redis unreachable, balance cache disabled: %v", err)
		_ = client.Close()
		return nil
	}

	return client
}

func setupLogLevel(cfg *config.Config) {
	switch cfg.GetNormalizedLogLevel() {
	case "debug":
		fiberlog.SetLevel(fiberlog.LevelDebug)
	case "warn":
		fiberlog.SetLevel(fiberlog.LevelWarn)
	case "error":
		fiberlog.SetLevel(fiberlog.LevelError)
	default:
		fiberlog.SetLevel(fiberlog.LevelInfo)
	}
}

func welcomeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "ResumeForge Credits",
			"version": "1.0",
			"status":  "running",
		})
	}
}
