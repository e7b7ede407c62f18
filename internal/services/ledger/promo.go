package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/resumeforge/backend/internal/models"
	"gorm.io/gorm"
)

// PromoCodeParams carries the admin-editable fields of a promo code.
type PromoCodeParams struct {
	Code            string
	Credits         float64
	DiscountPercent int
	MaxUses         int
	ExpiresAt       *time.Time
	Active          bool
}

// RedeemPromoCode validates and redeems a promo code for a user. The promo
// row is locked first, then the balance row, in one transaction: concurrent
// redemptions of the same code serialize on the promo row, so a code with
// maxUses=1 can never be redeemed twice. One redemption per user per code
// is enforced through the ledger idempotency key derived from both.
//
// A discount-only code (Credits == 0) still produces a zero-delta ledger
// entry: unlike free usage actions, which Debit refuses to record, the
// redemption itself must be recorded — the entry's idempotency key is what
// blocks a second redemption and the used count must stay auditable.
func (s *Service) RedeemPromoCode(ctx context.Context, userID, code string) (*models.LedgerEntry, error) {
	if userID == "" {
		return nil, models.NewValidationError("user id is required", nil)
	}
	code = NormalizePromoCode(code)
	if code == "" {
		return nil, models.NewValidationError("promo code is required", nil)
	}

	var entry models.LedgerEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var promo models.PromoCode
		if err := s.lockForUpdate(tx).Where("code = ?", code).First(&promo).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewPromoInvalidError(code)
			}
			return models.NewStorageError("lock promo code", err)
		}

		if !promo.Active {
			return models.NewPromoInvalidError(code)
		}
		if promo.ExpiresAt != nil && time.Now().After(*promo.ExpiresAt) {
			return models.NewPromoInvalidError(code)
		}
		if promo.MaxUses > 0 && promo.UsedCount >= promo.MaxUses {
			return models.NewPromoExhaustedError(code)
		}

		key := promoIdempotencyKey(userID, code)
		var existing models.LedgerEntry
		err := tx.Where("idempotency_key = ?", key).First(&existing).Error
		if err == nil {
			return models.NewPromoAlreadyRedeemedError(code)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewStorageError("check prior redemption", err)
		}

		if err := tx.Model(&promo).Update("used_count", promo.UsedCount+1).Error; err != nil {
			return models.NewStorageError("update promo usage", err)
		}

		applied, err := s.creditInTx(tx, models.CreditParams{
			UserID:         userID,
			Amount:         promo.Credits,
			Action:         models.ActionPromoCode,
			IdempotencyKey: key,
			Description:    "Promo code " + code,
		})
		if err != nil {
			return err
		}
		entry = *applied
		return nil
	})
	if err != nil {
		return nil, asAppError(err, "redeem promo code")
	}

	s.balanceCache.Invalidate(ctx, userID)
	return &entry, nil
}

// CreatePromoCode adds a promo code. Admin surface only.
func (s *Service) CreatePromoCode(ctx context.Context, params PromoCodeParams) (*models.PromoCode, error) {
	if err := validatePromoParams(&params); err != nil {
		return nil, err
	}

	promo := models.PromoCode{
		Code:            params.Code,
		Credits:         params.Credits,
		DiscountPercent: params.DiscountPercent,
		MaxUses:         params.MaxUses,
		ExpiresAt:       params.ExpiresAt,
		Active:          params.Active,
	}
	if err := s.db.WithContext(ctx).Create(&promo).Error; err != nil {
		return nil, models.NewStorageError("create promo code", err)
	}
	return &promo, nil
}

// UpdatePromoCode changes the editable fields of an existing code. The code
// string itself and the used count are not editable; redemptions already in
// the ledger must keep pointing at what they redeemed.
func (s *Service) UpdatePromoCode(ctx context.Context, code string, params PromoCodeParams) (*models.PromoCode, error) {
	code = NormalizePromoCode(code)
	params.Code = code
	if err := validatePromoParams(&params); err != nil {
		return nil, err
	}

	var promo models.PromoCode
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockForUpdate(tx).Where("code = ?", code).First(&promo).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("promo code", code)
			}
			return models.NewStorageError("lock promo code", err)
		}

		if err := tx.Model(&promo).Updates(map[string]any{
			"credits":          params.Credits,
			"discount_percent": params.DiscountPercent,
			"max_uses":         params.MaxUses,
			"expires_at":       params.ExpiresAt,
			"active":           params.Active,
		}).Error; err != nil {
			return models.NewStorageError("update promo code", err)
		}
		return nil
	})
	if err != nil {
		return nil, asAppError(err, "update promo code")
	}
	return &promo, nil
}

// ListPromoCodes returns all promo codes, newest first. Admin surface only.
func (s *Service) ListPromoCodes(ctx context.Context) ([]models.PromoCode, error) {
	var promos []models.PromoCode
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&promos).Error; err != nil {
		return nil, models.NewStorageError("list promo codes", err)
	}
	return promos, nil
}

// NormalizePromoCode uppercases and trims a code; matching is
// case-insensitive and codes are stored normalized.
func NormalizePromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func promoIdempotencyKey(userID, code string) string {
	return fmt.Sprintf("promo:%s:%s", userID, code)
}

func validatePromoParams(params *PromoCodeParams) error {
	params.Code = NormalizePromoCode(params.Code)
	if params.Code == "" {
		return models.NewValidationError("promo code is required", nil)
	}
	if params.Credits < 0 {
		return models.NewValidationError("promo credits must not be negative", nil)
	}
	if params.DiscountPercent < 0 || params.DiscountPercent > 100 {
		return models.NewValidationError("discount percent must be between 0 and 100", nil)
	}
	if params.MaxUses < 0 {
		return models.NewValidationError("max uses must not be negative", nil)
	}
	return nil
}
