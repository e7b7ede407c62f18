package ledger

import (
	"context"
	"errors"

	"github.com/resumeforge/backend/internal/models"
	"gorm.io/gorm"
)

// CreditPackParams carries the admin-editable fields of a catalog entry.
type CreditPackParams struct {
	Name          string
	Description   string
	Credits       float64
	Price         float64
	Currency      string
	StripePriceID string
	Active        bool
}

// ListCreditPacks returns the purchasable catalog. With activeOnly the
// result is what the storefront shows; admins see everything.
func (s *Service) ListCreditPacks(ctx context.Context, activeOnly bool) ([]models.CreditPack, error) {
	query := s.db.WithContext(ctx).Order("price ASC")
	if activeOnly {
		query = query.Where("active = ?", true)
	}

	var packs []models.CreditPack
	if err := query.Find(&packs).Error; err != nil {
		return nil, models.NewStorageError("list credit packs", err)
	}
	return packs, nil
}

// GetCreditPack looks up one catalog entry.
func (s *Service) GetCreditPack(ctx context.Context, id uint) (*models.CreditPack, error) {
	var pack models.CreditPack
	err := s.db.WithContext(ctx).First(&pack, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("credit pack", "")
	}
	if err != nil {
		return nil, models.NewStorageError("get credit pack", err)
	}
	return &pack, nil
}

// CreateCreditPack adds a catalog entry. Admin surface only.
func (s *Service) CreateCreditPack(ctx context.Context, params CreditPackParams) (*models.CreditPack, error) {
	if err := validatePackParams(&params); err != nil {
		return nil, err
	}

	pack := models.CreditPack{
		Name:          params.Name,
		Description:   params.Description,
		Credits:       params.Credits,
		Price:         params.Price,
		Currency:      params.Currency,
		StripePriceID: params.StripePriceID,
		Active:        params.Active,
	}
	if err := s.db.WithContext(ctx).Create(&pack).Error; err != nil {
		return nil, models.NewStorageError("create credit pack", err)
	}
	return &pack, nil
}

// UpdateCreditPack changes a catalog entry. Admin surface only.
func (s *Service) UpdateCreditPack(ctx context.Context, id uint, params CreditPackParams) (*models.CreditPack, error) {
	if err := validatePackParams(&params); err != nil {
		return nil, err
	}

	var pack models.CreditPack
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockForUpdate(tx).First(&pack, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("credit pack", "")
			}
			return models.NewStorageError("lock credit pack", err)
		}

		if err := tx.Model(&pack).Updates(map[string]any{
			"name":            params.Name,
			"description":     params.Description,
			"credits":         params.Credits,
			"price":           params.Price,
			"currency":        params.Currency,
			"stripe_price_id": params.StripePriceID,
			"active":          params.Active,
		}).Error; err != nil {
			return models.NewStorageError("update credit pack", err)
		}
		return nil
	})
	if err != nil {
		return nil, asAppError(err, "update credit pack")
	}
	return &pack, nil
}

func validatePackParams(params *CreditPackParams) error {
	if params.Name == "" {
		return models.NewValidationError("pack name is required", nil)
	}
	if params.Credits <= 0 {
		return models.NewValidationError("pack credits must be positive", nil)
	}
	if params.Price < 0 {
		return models.NewValidationError("pack price must not be negative", nil)
	}
	if params.Currency == "" {
		params.Currency = "USD"
	}
	return nil
}
