package api

import (
	"encoding/json"
	"fmt"

	"github.com/resumeforge/backend/internal/models"
	"github.com/resumeforge/backend/internal/services/ledger"
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
	svix "github.com/svix/svix-webhooks/go"
)

// ClerkWebhookHandler reacts to user lifecycle events from Clerk:
// registration creates the balance record with the free-tier seed, and
// deletion freezes it. The ledger history survives account deletion.
type ClerkWebhookHandler struct {
	webhookSecret   string
	ledgerService   *ledger.Service
	freeTierCredits float64
}

func NewClerkWebhookHandler(webhookSecret string, ledgerService *ledger.Service, freeTierCredits float64) *ClerkWebhookHandler {
	return &ClerkWebhookHandler{
		webhookSecret:   webhookSecret,
		ledgerService:   ledgerService,
		freeTierCredits: freeTierCredits,
	}
}

type ClerkWebhookEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type ClerkUserData struct {
	ID string `json:"id"`
}

func (h *ClerkWebhookHandler) HandleWebhook(c *fiber.Ctx) error {
	payload := c.Body()

	headers := make(map[string][]string)
	c.Request().Header.VisitAll(func(key, value []byte) {
		headers[string(key)] = []string{string(value)}
	})

	wh, err := svix.NewWebhook(h.webhookSecret)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to initialize webhook verifier",
		})
	}

	if err := wh.Verify(payload, headers); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid webhook signature",
		})
	}

	var event ClerkWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid JSON payload",
		})
	}

	switch event.Type {
	case "user.created":
		if err := h.handleUserCreated(c, event.Data); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": fmt.Sprintf("Failed to process user.created event: %v", err),
			})
		}
	case "user.deleted":
		if err := h.handleUserDeleted(c, event.Data); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": fmt.Sprintf("Failed to process user.deleted event: %v", err),
			})
		}
	}

	return c.JSON(fiber.Map{
		"received": true,
	})
}

func (h *ClerkWebhookHandler) handleUserCreated(c *fiber.Ctx, data json.RawMessage) error {
	var user ClerkUserData
	if err := json.Unmarshal(data, &user); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}
	if user.ID == "" {
		return fmt.Errorf("user.created event without user id")
	}

	// EnsureAccount is a no-op for existing accounts, so webhook
	// redelivery never reseeds the free tier.
	if _, err := h.ledgerService.EnsureAccount(c.Context(), user.ID, h.freeTierCredits); err != nil {
		return fmt.Errorf("failed to seed account: %w", err)
	}

	fiberlog.Infof("seeded account for new user %s with %.1f credits", user.ID, h.freeTierCredits)
	return nil
}

func (h *ClerkWebhookHandler) handleUserDeleted(c *fiber.Ctx, data json.RawMessage) error {
	var user ClerkUserData
	if err := json.Unmarshal(data, &user); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}
	if user.ID == "" {
		return fmt.Errorf("user.deleted event without user id")
	}

	err := h.ledgerService.FreezeAccount(c.Context(), user.ID)
	if err != nil && !models.IsErrorType(err, models.ErrorTypeNotFound) {
		return fmt.Errorf("failed to freeze account: %w", err)
	}
	return nil
}
