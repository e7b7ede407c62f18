package api

import (
	"time"

	"github.com/resumeforge/backend/internal/models"
	"github.com/resumeforge/backend/internal/services/ledger"
	"github.com/gofiber/fiber/v2"
)

// AdminHandler is the back-office surface: manual grants, promo code and
// credit pack management, and per-user reporting. Every route is behind
// the admin guard.
type AdminHandler struct {
	ledgerService *ledger.Service
}

func NewAdminHandler(ledgerService *ledger.Service) *AdminHandler {
	return &AdminHandler{
		ledgerService: ledgerService,
	}
}

// GrantCreditsRequest represents the request body for a manual grant
type GrantCreditsRequest struct {
	UserID string  `json:"user_id"`
	Amount float64 `json:"amount"`
	Reason string  `json:"reason,omitempty"`
}

// GrantCredits applies a manual admin grant. Grants carry no idempotency
// key; each submission is a distinct grant.
func (h *AdminHandler) GrantCredits(c *fiber.Ctx) error {
	var req GrantCreditsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	entry, err := h.ledgerService.Credit(c.Context(), models.CreditParams{
		UserID:      req.UserID,
		Amount:      req.Amount,
		Action:      models.ActionAdminGrant,
		Description: req.Reason,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(entry)
}

// GetUserBalance returns one user's balance for reporting
func (h *AdminHandler) GetUserBalance(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	credit, err := h.ledgerService.GetBalance(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(credit)
}

// GetUserHistory returns one user's ledger entries for reporting
func (h *AdminHandler) GetUserHistory(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
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

// ReconcileUser checks the conservation law for one user: stored balance
// against the sum of ledger deltas. A mismatch means operator attention.
func (h *AdminHandler) ReconcileUser(c *fiber.Ctx) error {
	userID := c.Params("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	balance, entrySum, consistent, err := h.ledgerService.Reconcile(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"user_id":    userID,
		"balance":    balance,
		"entry_sum":  entrySum,
		"consistent": consistent,
	})
}

// PromoCodeRequest represents the admin request body for promo codes
type PromoCodeRequest struct {
	Code            string     `json:"code"`
	Credits         float64    `json:"credits"`
	DiscountPercent int        `json:"discount_percent,omitempty"`
	MaxUses         int        `json:"max_uses,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	Active          bool       `json:"active"`
}

// ListPromoCodes returns all promo codes
func (h *AdminHandler) ListPromoCodes(c *fiber.Ctx) error {
	promos, err := h.ledgerService.ListPromoCodes(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"promo_codes": promos})
}

// CreatePromoCode creates a promo code
func (h *AdminHandler) CreatePromoCode(c *fiber.Ctx) error {
	var req PromoCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	promo, err := h.ledgerService.CreatePromoCode(c.Context(), ledger.PromoCodeParams{
		Code:            req.Code,
		Credits:         req.Credits,
		DiscountPercent: req.DiscountPercent,
		MaxUses:         req.MaxUses,
		ExpiresAt:       req.ExpiresAt,
		Active:          req.Active,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(promo)
}

// UpdatePromoCode updates a promo code's editable fields
func (h *AdminHandler) UpdatePromoCode(c *fiber.Ctx) error {
	code := c.Params("code")
	var req PromoCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	req.Code = code

	promo, err := h.ledgerService.UpdatePromoCode(c.Context(), code, ledger.PromoCodeParams{
		Code:            code,
		Credits:         req.Credits,
		DiscountPercent: req.DiscountPercent,
		MaxUses:         req.MaxUses,
		ExpiresAt:       req.ExpiresAt,
		Active:          req.Active,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(promo)
}

// CreditPackRequest represents the admin request body for catalog entries
type CreditPackRequest struct {
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	Credits       float64 `json:"credits"`
	Price         float64 `json:"price"`
	Currency      string  `json:"currency,omitempty"`
	StripePriceID string  `json:"stripe_price_id,omitempty"`
	Active        bool    `json:"active"`
}

// ListCreditPacks returns the full catalog including inactive packs
func (h *AdminHandler) ListCreditPacks(c *fiber.Ctx) error {
	packs, err := h.ledgerService.ListCreditPacks(c.Context(), false)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"packs": packs})
}

// CreateCreditPack creates a catalog entry
func (h *AdminHandler) CreateCreditPack(c *fiber.Ctx) error {
	var req CreditPackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	pack, err := h.ledgerService.CreateCreditPack(c.Context(), ledger.CreditPackParams{
		Name:          req.Name,
		Description:   req.Description,
		Credits:       req.Credits,
		Price:         req.Price,
		Currency:      req.Currency,
		StripePriceID: req.StripePriceID,
		Active:        req.Active,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(pack)
}

// UpdateCreditPack updates a catalog entry
func (h *AdminHandler) UpdateCreditPack(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid pack id",
		})
	}

	var req CreditPackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	pack, err := h.ledgerService.UpdateCreditPack(c.Context(), uint(id), ledger.CreditPackParams{
		Name:          req.Name,
		Description:   req.Description,
		Credits:       req.Credits,
		Price:         req.Price,
		Currency:      req.Currency,
		StripePriceID: req.StripePriceID,
		Active:        req.Active,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(pack)
}
