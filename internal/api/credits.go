package api

import (
	"strconv"

	"github.com/resumeforge/backend/internal/models"
	"github.com/resumeforge/backend/internal/services/auth"
	"github.com/resumeforge/backend/internal/services/ledger"
	"github.com/gofiber/fiber/v2"
)

type CreditsHandler struct {
	ledgerService *ledger.Service
}

func NewCreditsHandler(ledgerService *ledger.Service) *CreditsHandler {
	return &CreditsHandler{
		ledgerService: ledgerService,
	}
}

// GetBalanceResponse represents the response for balance queries
type GetBalanceResponse struct {
	UserID         string  `json:"user_id"`
	Balance        float64 `json:"balance"`
	TotalPurchased float64 `json:"total_purchased"`
	TotalUsed      float64 `json:"total_used"`
}

// GetBalance retrieves the current credit balance for the authenticated user
func (h *CreditsHandler) GetBalance(c *fiber.Ctx) error {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "authentication required",
		})
	}

	credit, err := h.ledgerService.GetBalance(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(GetBalanceResponse{
		UserID:         credit.UserID,
		Balance:        credit.Balance,
		TotalPurchased: credit.TotalPurchased,
		TotalUsed:      credit.TotalUsed,
	})
}

// AuthorizeRequest represents the request body for action pre-checks
type AuthorizeRequest struct {
	Action models.CreditAction `json:"action"`
}

// Authorize pre-checks whether the user can afford a metered action. The
// generation workflow calls this before invoking an AI provider.
func (h *CreditsHandler) Authorize(c *fiber.Ctx) error {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "authentication required",
		})
	}

	var req AuthorizeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	result, err := h.ledgerService.Authorize(c.Context(), userID, req.Action)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(result)
}

// DebitRequest represents the request body for charging a usage action
type DebitRequest struct {
	Action     models.CreditAction `json:"action"`
	DocumentID string              `json:"document_id,omitempty"`
}

// Debit charges a completed usage action. Called by the generation workflow
// after the generation verifiably succeeded; failed generations are never
// charged.
func (h *CreditsHandler) Debit(c *fiber.Ctx) error {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "authentication required",
		})
	}

	var req DebitRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	entry, err := h.ledgerService.Debit(c.Context(), models.DebitParams{
		UserID:            userID,
		Action:            req.Action,
		RelatedDocumentID: req.DocumentID,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(entry)
}

// GetHistoryResponse represents a page of ledger entries
type GetHistoryResponse struct {
	Entries []models.LedgerEntry `json:"entries"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

// GetHistory retrieves the user's ledger entries newest-first
func (h *CreditsHandler) GetHistory(c *fiber.Ctx) error {
	userID, ok := auth.GetUserID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "authentication required",
		})
	}

	limit, offset := paginationParams(c)

	entries, err := h.ledgerService.ListHistory(c.Context(), userID, limit, offset)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(GetHistoryResponse{
		Entries: entries,
		Limit:   limit,
		Offset:  offset,
	})
}

// ListPacks returns the purchasable credit pack catalog
func (h *CreditsHandler) ListPacks(c *fiber.Ctx) error {
	packs, err := h.ledgerService.ListCreditPacks(c.Context(), true)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"packs": packs,
	})
}

func paginationParams(c *fiber.Ctx) (limit, offset int) {
	limit = 20
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	offset = 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}
	return limit, offset
}
