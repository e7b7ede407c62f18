package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/resumeforge/backend/internal/models"
	"github.com/resumeforge/backend/internal/services/cache"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service is the credit ledger. Every balance mutation goes through one of
// Debit, Credit, RedeemPromoCode or EnsureAccount, each of which locks the
// user's balance row and appends a ledger entry inside a single transaction.
// Mutations for different users never contend; reads take no locks.
type Service struct {
	db           *gorm.DB
	costs        *CostTable
	balanceCache *cache.BalanceCache
}

func NewService(db *gorm.DB, costs *CostTable) *Service {
	if costs == nil {
		costs = DefaultCostTable()
	}
	return &Service{db: db, costs: costs}
}

// WithBalanceCache enables the read-side balance snapshot cache.
func (s *Service) WithBalanceCache(c *cache.BalanceCache) *Service {
	s.balanceCache = c
	return s
}

// Costs exposes the static cost table for the checkout and admin surfaces.
func (s *Service) Costs() *CostTable {
	return s.costs
}

// EnsureAccount creates the balance record for a new user, seeded with the
// free-tier grant when seedCredits > 0. The seed is recorded as a free_tier
// ledger entry and counts toward TotalPurchased. Calling it again for an
// existing user returns the record unchanged, so registration webhook
// redelivery is harmless.
func (s *Service) EnsureAccount(ctx context.Context, userID string, seedCredits float64) (*models.UserCredit, error) {
	if userID == "" {
		return nil, models.NewValidationError("user id is required", nil)
	}
	if seedCredits < 0 {
		return nil, models.NewValidationError("seed credits must not be negative", nil)
	}

	var credit models.UserCredit
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ?", userID).First(&credit).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewStorageError("ensure account", err)
		}

		credit = models.UserCredit{
			UserID:         userID,
			Balance:        seedCredits,
			TotalPurchased: seedCredits,
			TotalUsed:      0,
		}
		if err := tx.Create(&credit).Error; err != nil {
			return models.NewStorageError("create account", err)
		}

		if seedCredits > 0 {
			entry := models.LedgerEntry{
				ID:           uuid.New().String(),
				UserID:       userID,
				Action:       models.ActionFreeTier,
				Delta:        seedCredits,
				BalanceAfter: seedCredits,
				Description:  "Free tier welcome credits",
			}
			if err := tx.Create(&entry).Error; err != nil {
				return models.NewStorageError("record free tier grant", err)
			}
		}
		return nil
	})
	if err != nil {
		// A concurrent EnsureAccount may have won the unique index on
		// user_id; the existing record is the correct answer then.
		if existing, lookupErr := s.loadCredit(ctx, userID); lookupErr == nil {
			return existing, nil
		}
		return nil, asAppError(err, "ensure account")
	}

	s.balanceCache.Invalidate(ctx, userID)
	return &credit, nil
}

// GetBalance returns the current balance snapshot for a user. The snapshot
// may be stale by the time the caller acts on it; Debit re-validates.
func (s *Service) GetBalance(ctx context.Context, userID string) (*models.UserCredit, error) {
	if userID == "" {
		return nil, models.NewValidationError("user id is required", nil)
	}
	return s.balanceCache.Get(ctx, userID, func(ctx context.Context) (*models.UserCredit, error) {
		return s.loadCredit(ctx, userID)
	})
}

// Authorize checks whether the user can afford an action without deducting
// anything. Callers pre-check before doing expensive work; a passing result
// is not a reservation.
func (s *Service) Authorize(ctx context.Context, userID string, action models.CreditAction) (*models.AuthorizationResult, error) {
	cost, ok := s.costs.Cost(action)
	if !ok {
		return nil, models.NewValidationError("unknown usage action: "+string(action), nil)
	}

	credit, err := s.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &models.AuthorizationResult{Cost: cost}
	if credit.Balance >= cost {
		result.Allowed = true
	} else {
		result.Shortfall = cost - credit.Balance
	}
	return result, nil
}

// Debit charges a usage action: it locks the balance row, re-checks
// sufficiency at commit time, updates Balance and TotalUsed and appends the
// usage entry, all in one transaction. A stale Authorize result never
// overdraws the balance.
//
// Debit is deliberately not idempotent; every call is a fresh usage event.
// A caller whose Debit timed out must check ListHistory for the expected
// entry before retrying.
func (s *Service) Debit(ctx context.Context, params models.DebitParams) (*models.LedgerEntry, error) {
	if params.UserID == "" {
		return nil, models.NewValidationError("user id is required", nil)
	}
	if !params.Action.IsUsage() {
		return nil, models.NewValidationError("not a usage action: "+string(params.Action), nil)
	}
	cost, ok := s.costs.Cost(params.Action)
	if !ok {
		return nil, models.NewValidationError("unknown usage action: "+string(params.Action), nil)
	}
	if cost == 0 {
		// Free actions don't change the balance and therefore have no
		// place in the ledger.
		return nil, models.NewValidationError("action "+string(params.Action)+" is free and is not recorded", nil)
	}

	var entry models.LedgerEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var credit models.UserCredit
		if err := s.lockForUpdate(tx).Where("user_id = ?", params.UserID).First(&credit).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("account", params.UserID)
			}
			return models.NewStorageError("lock balance", err)
		}

		if credit.Frozen {
			return models.NewValidationError("account is frozen", nil)
		}
		if credit.Balance < cost {
			return models.NewInsufficientCreditsError(credit.Balance, cost)
		}

		newBalance := credit.Balance - cost
		if err := tx.Model(&credit).Updates(map[string]any{
			"balance":    newBalance,
			"total_used": credit.TotalUsed + cost,
		}).Error; err != nil {
			return models.NewStorageError("update balance", err)
		}

		entry = models.LedgerEntry{
			ID:                uuid.New().String(),
			UserID:            params.UserID,
			Action:            params.Action,
			Delta:             -cost,
			BalanceAfter:      newBalance,
			RelatedDocumentID: params.RelatedDocumentID,
			Description:       params.Description,
			Metadata:          params.Metadata,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return models.NewStorageError("record debit", err)
		}
		return nil
	})
	if err != nil {
		return nil, asAppError(err, "debit")
	}

	s.balanceCache.Invalidate(ctx, params.UserID)
	return &entry, nil
}

// Credit adds credits for a purchase, promo redemption, admin grant or
// free-tier seed. Purchases and promo credits must carry an idempotency
// key: a replay with the same key and parameters is a no-op returning the
// original entry, while the same key with different parameters fails with
// an idempotency conflict.
func (s *Service) Credit(ctx context.Context, params models.CreditParams) (*models.LedgerEntry, error) {
	if err := validateCreditParams(&params); err != nil {
		return nil, err
	}

	var entry models.LedgerEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applied, err := s.creditInTx(tx, params)
		if err != nil {
			return err
		}
		entry = *applied
		return nil
	})
	if err != nil {
		// A concurrent transaction with the same key may have committed
		// after our in-transaction lookup; the unique index on the key
		// rejects the duplicate and the committed entry is the answer.
		if params.IdempotencyKey != "" {
			if existing, replayErr := s.replayByKey(ctx, params); replayErr == nil {
				return existing, nil
			} else if models.IsErrorType(replayErr, models.ErrorTypeIdempotencyConflict) {
				return nil, replayErr
			}
		}
		return nil, asAppError(err, "credit")
	}

	s.balanceCache.Invalidate(ctx, params.UserID)
	return &entry, nil
}

// ListHistory returns a user's ledger entries newest-first. Pure read.
func (s *Service) ListHistory(ctx context.Context, userID string, limit, offset int) ([]models.LedgerEntry, error) {
	if userID == "" {
		return nil, models.NewValidationError("user id is required", nil)
	}

	query := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var entries []models.LedgerEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, models.NewStorageError("list history", err)
	}
	return entries, nil
}

// Reconcile verifies the conservation law for one user: the sum of ledger
// entry deltas must equal the stored balance. Exposed to the admin
// reporting surface.
func (s *Service) Reconcile(ctx context.Context, userID string) (balance, entrySum float64, consistent bool, err error) {
	credit, err := s.loadCredit(ctx, userID)
	if err != nil {
		return 0, 0, false, err
	}

	var sum float64
	row := s.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(delta), 0)").
		Row()
	if err := row.Scan(&sum); err != nil {
		return 0, 0, false, models.NewStorageError("sum ledger entries", err)
	}

	return credit.Balance, sum, floatEqual(credit.Balance, sum), nil
}

// FreezeAccount marks an account frozen. Frozen accounts reject mutations
// but keep their history; account records are never deleted.
func (s *Service) FreezeAccount(ctx context.Context, userID string) error {
	result := s.db.WithContext(ctx).
		Model(&models.UserCredit{}).
		Where("user_id = ?", userID).
		Update("frozen", true)
	if result.Error != nil {
		return models.NewStorageError("freeze account", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("account", userID)
	}

	s.balanceCache.Invalidate(ctx, userID)
	return nil
}

// creditInTx applies a crediting mutation inside an open transaction:
// idempotency-key replay check, balance row lock (created on demand, a
// purchase webhook can land before the registration webhook), balance and
// totals update, entry append. RedeemPromoCode reuses it after locking the
// promo row.
func (s *Service) creditInTx(tx *gorm.DB, params models.CreditParams) (*models.LedgerEntry, error) {
	if params.IdempotencyKey != "" {
		var existing models.LedgerEntry
		err := tx.Where("idempotency_key = ?", params.IdempotencyKey).First(&existing).Error
		if err == nil {
			return replayOrConflict(&existing, params)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewStorageError("check idempotency key", err)
		}
	}

	var credit models.UserCredit
	err := s.lockForUpdate(tx).Where("user_id = ?", params.UserID).First(&credit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		credit = models.UserCredit{UserID: params.UserID}
		if err := tx.Create(&credit).Error; err != nil {
			return nil, models.NewStorageError("create account", err)
		}
	} else if err != nil {
		return nil, models.NewStorageError("lock balance", err)
	}

	if credit.Frozen {
		return nil, models.NewValidationError("account is frozen", nil)
	}

	newBalance := credit.Balance + params.Amount
	updates := map[string]any{
		"balance": newBalance,
	}
	if params.Action.CountsAsPurchased() {
		updates["total_purchased"] = credit.TotalPurchased + params.Amount
	}
	if err := tx.Model(&credit).Updates(updates).Error; err != nil {
		return nil, models.NewStorageError("update balance", err)
	}

	entry := models.LedgerEntry{
		ID:           uuid.New().String(),
		UserID:       params.UserID,
		Action:       params.Action,
		Delta:        params.Amount,
		BalanceAfter: newBalance,
		Description:  params.Description,
		Metadata:     params.Metadata,
	}
	if params.IdempotencyKey != "" {
		key := params.IdempotencyKey
		entry.IdempotencyKey = &key
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, models.NewStorageError("record credit", err)
	}
	return &entry, nil
}

func (s *Service) loadCredit(ctx context.Context, userID string) (*models.UserCredit, error) {
	var credit models.UserCredit
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&credit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("account", userID)
	}
	if err != nil {
		return nil, models.NewStorageError("load balance", err)
	}
	return &credit, nil
}

// replayByKey resolves a credit that lost a race on the idempotency key
// unique index: if a committed entry matches the parameters it is the
// replay answer, otherwise the key was reused and that is a conflict.
func (s *Service) replayByKey(ctx context.Context, params models.CreditParams) (*models.LedgerEntry, error) {
	var existing models.LedgerEntry
	err := s.db.WithContext(ctx).Where("idempotency_key = ?", params.IdempotencyKey).First(&existing).Error
	if err != nil {
		return nil, models.NewStorageError("resolve idempotency key", err)
	}
	return replayOrConflict(&existing, params)
}

func replayOrConflict(existing *models.LedgerEntry, params models.CreditParams) (*models.LedgerEntry, error) {
	if existing.UserID == params.UserID &&
		existing.Action == params.Action &&
		floatEqual(existing.Delta, params.Amount) {
		return existing, nil
	}
	return nil, models.NewIdempotencyConflictError(params.IdempotencyKey)
}

func validateCreditParams(params *models.CreditParams) error {
	params.IdempotencyKey = strings.TrimSpace(params.IdempotencyKey)
	if params.UserID == "" {
		return models.NewValidationError("user id is required", nil)
	}
	if !params.Action.IsCrediting() {
		return models.NewValidationError("not a crediting action: "+string(params.Action), nil)
	}
	if params.Amount <= 0 {
		return models.NewValidationError("credit amount must be positive", nil)
	}
	if params.Action.RequiresIdempotencyKey() && params.IdempotencyKey == "" {
		return models.NewValidationError("idempotency key is required for "+string(params.Action), nil)
	}
	return nil
}

// lockForUpdate applies a row-level write lock. SQLite has no FOR UPDATE;
// there the immediate-transaction mode set in the DSN serializes writers,
// which gives the same per-row guarantee.
func (s *Service) lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// floatEqual compares credit amounts with a tolerance well below the
// smallest cost increment (0.5).
func floatEqual(a, b float64) bool {
	diff := a - b
	return diff < 1e-9 && diff > -1e-9
}

func asAppError(err error, operation string) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return models.NewStorageError(operation, err)
}
