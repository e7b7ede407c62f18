package api

import (
	"strings"

	"github.com/resumeforge/backend/internal/services/auth"
	"github.com/resumeforge/backend/internal/services/billing"
	"github.com/gofiber/fiber/v2"
)

type StripeHandler struct {
	stripeService *billing.StripeService
}

func NewStripeHandler(stripeService *billing.StripeService) *StripeHandler {
	return &StripeHandler{
		stripeService: stripeService,
	}
}

// CreateCheckoutSessionRequest represents the request body for creating a checkout session
type CreateCheckoutSessionRequest struct {
	PackID        uint   `json:"pack_id"`
	SuccessURL    string `json:"success_url"`
	CancelURL     string `json:"cancel_url"`
	CustomerEmail string `json:"customer_email,omitempty"`
}

// CreateCheckoutSessionResponse represents the response for checkout session creation
type CreateCheckoutSessionResponse struct {
	SessionID   string  `json:"session_id"`
	CheckoutURL string  `json:"checkout_url"`
	Credits     float64 `json:"credits"`
}

// CreateCheckoutSession creates a Stripe checkout session for purchasing a credit pack
func (h *StripeHandler) CreateCheckoutSession(c *fiber.Ctx) error {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "authentication required",
		})
	}

	var req CreateCheckoutSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.PackID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "pack_id is required",
		})
	}
	if req.SuccessURL == "" || req.CancelURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "success_url and cancel_url are required",
		})
	}

	sess, pack, err := h.stripeService.CreateCheckoutSession(c.Context(), billing.CreateCheckoutParams{
		UserID:        userID,
		PackID:        req.PackID,
		SuccessURL:    req.SuccessURL,
		CancelURL:     req.CancelURL,
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(CreateCheckoutSessionResponse{
		SessionID:   sess.ID,
		CheckoutURL: sess.URL,
		Credits:     pack.Credits,
	})
}

// HandleWebhook processes Stripe webhook events
func (h *StripeHandler) HandleWebhook(c *fiber.Ctx) error {
	payload := c.Body()

	signature := c.Get("Stripe-Signature")
	if signature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing Stripe-Signature header",
		})
	}

	if err := h.stripeService.HandleWebhook(c.Context(), payload, signature); err != nil {
		if strings.Contains(err.Error(), "failed to verify webhook signature") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid webhook signature",
			})
		}

		// Non-2xx makes Stripe redeliver; the ledger idempotency key keeps
		// the retry safe.
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process webhook",
		})
	}

	return c.JSON(fiber.Map{
		"received": true,
	})
}
