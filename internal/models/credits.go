package models

import "time"

type CreditAction string

const (
	// Metered usage actions, charged per the static cost table.
	ActionCVGeneration          CreditAction = "cv_generation"
	ActionCoverLetterGeneration CreditAction = "cover_letter_generation"
	ActionATSOptimization       CreditAction = "ats_optimization"
	ActionPDFDownload           CreditAction = "pdf_download"

	// Crediting actions.
	ActionPurchase   CreditAction = "purchase"
	ActionPromoCode  CreditAction = "promo_code"
	ActionAdminGrant CreditAction = "admin_grant"
	ActionFreeTier   CreditAction = "free_tier"
)

// IsUsage reports whether the action is a metered usage action.
func (a CreditAction) IsUsage() bool {
	switch a {
	case ActionCVGeneration, ActionCoverLetterGeneration, ActionATSOptimization, ActionPDFDownload:
		return true
	}
	return false
}

// IsCrediting reports whether the action adds credits to a balance.
func (a CreditAction) IsCrediting() bool {
	switch a {
	case ActionPurchase, ActionPromoCode, ActionAdminGrant, ActionFreeTier:
		return true
	}
	return false
}

// RequiresIdempotencyKey reports whether a crediting action must carry an
// idempotency key. Purchases and promo redemptions originate from retriable
// external events (webhook redelivery, double-submit) and must be applied at
// most once; admin grants are distinct by definition, each click is a grant.
func (a CreditAction) RequiresIdempotencyKey() bool {
	return a == ActionPurchase || a == ActionPromoCode
}

// CountsAsPurchased reports whether the action contributes to TotalPurchased.
// Admin grants are excluded so TotalPurchased stays usable for revenue
// reporting.
func (a CreditAction) CountsAsPurchased() bool {
	return a == ActionPurchase || a == ActionPromoCode || a == ActionFreeTier
}

// UserCredit is the per-user balance record. Balance is kept equal to
// TotalPurchased - TotalUsed except for admin grants, which move Balance
// only. It is also always equal to the sum of the user's ledger entry
// deltas; every mutation updates both inside one transaction.
type UserCredit struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         string    `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance        float64   `gorm:"not null;default:0" json:"balance"`
	TotalPurchased float64   `gorm:"not null;default:0" json:"total_purchased"`
	TotalUsed      float64   `gorm:"not null;default:0" json:"total_used"`
	Frozen         bool      `gorm:"not null;default:false" json:"frozen"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// LedgerEntry is an immutable record of one balance change. Entries are
// append-only; nothing in the service updates or deletes them.
type LedgerEntry struct {
	ID                string       `gorm:"primaryKey" json:"id"`
	UserID            string       `gorm:"index;not null" json:"user_id"`
	Action            CreditAction `gorm:"index;not null" json:"action"`
	Delta             float64      `gorm:"not null" json:"delta"`
	BalanceAfter      float64      `gorm:"not null" json:"balance_after"`
	RelatedDocumentID string       `gorm:"index" json:"related_document_id,omitempty"`
	// IdempotencyKey is nullable so unkeyed entries don't collide on the
	// unique index (NULLs are distinct in all three supported databases).
	IdempotencyKey *string   `gorm:"uniqueIndex:idx_ledger_entries_idem" json:"idempotency_key,omitempty"`
	Description    string    `json:"description,omitempty"`
	Metadata       string    `json:"metadata,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// PromoCode grants credits on redemption. Code is stored uppercase; lookups
// normalize, so matching is case-insensitive. MaxUses of 0 means unlimited.
type PromoCode struct {
	ID              uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Code            string     `gorm:"uniqueIndex;not null" json:"code"`
	Credits         float64    `gorm:"not null;default:0" json:"credits"`
	DiscountPercent int        `gorm:"not null;default:0" json:"discount_percent"`
	MaxUses         int        `gorm:"not null;default:0" json:"max_uses"`
	UsedCount       int        `gorm:"not null;default:0" json:"used_count"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	// No column default: GORM omits zero-value fields that carry one from
	// INSERT, which would silently flip Active:false to true on create.
	Active    bool      `gorm:"not null" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CreditPack is a purchasable credit bundle. The catalog is read-only to the
// ledger; only the admin surface mutates it.
type CreditPack struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string    `gorm:"not null" json:"name"`
	Description   string    `json:"description,omitempty"`
	Credits       float64   `gorm:"not null" json:"credits"`
	Price         float64   `gorm:"not null" json:"price"`
	Currency      string    `gorm:"not null;default:'USD'" json:"currency"`
	StripePriceID string    `gorm:"uniqueIndex" json:"stripe_price_id"`
	Active        bool      `gorm:"not null" json:"active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// AuthorizationResult is the outcome of a pre-check for a metered action.
// It does not reserve anything; Debit re-validates at commit time.
type AuthorizationResult struct {
	Allowed   bool    `json:"allowed"`
	Cost      float64 `json:"cost"`
	Shortfall float64 `json:"shortfall,omitempty"`
}

type DebitParams struct {
	UserID            string
	Action            CreditAction
	RelatedDocumentID string
	Description       string
	Metadata          string
}

type CreditParams struct {
	UserID         string
	Amount         float64
	Action         CreditAction
	IdempotencyKey string
	Description    string
	Metadata       string
}
