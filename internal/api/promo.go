package api

import (
	"github.com/resumeforge/backend/internal/services/auth"
	"github.com/resumeforge/backend/internal/services/ledger"
	"github.com/gofiber/fiber/v2"
)

type PromoHandler struct {
	ledgerService *ledger.Service
}

func NewPromoHandler(ledgerService *ledger.Service) *PromoHandler {
	return &PromoHandler{
		ledgerService: ledgerService,
	}
}

// RedeemRequest represents the request body for redeeming a promo code
type RedeemRequest struct {
	Code string `json:"code"`
}

// Redeem redeems a promo code for the authenticated user
func (h *PromoHandler) Redeem(c *fiber.Ctx) error {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "authentication required",
		})
	}

	var req RedeemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	entry, err := h.ledgerService.RedeemPromoCode(c.Context(), userID, req.Code)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(entry)
}
