package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/resumeforge/backend/internal/models"
	"github.com/resumeforge/backend/internal/services/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := database.New(models.DatabaseConfig{
		Type:     models.SQLite,
		FilePath: filepath.Join(t.TempDir(), "ledger.db"),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	return NewService(db.DB, nil)
}

func TestEnsureAccountSeedsFreeTier(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	credit, err := svc.EnsureAccount(ctx, "user_1", 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, credit.Balance)
	assert.Equal(t, 3.0, credit.TotalPurchased)
	assert.Equal(t, 0.0, credit.TotalUsed)

	history, err := svc.ListHistory(ctx, "user_1", 0, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.ActionFreeTier, history[0].Action)
	assert.Equal(t, 3.0, history[0].Delta)
	assert.Equal(t, 3.0, history[0].BalanceAfter)
}

func TestEnsureAccountIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.EnsureAccount(ctx, "user_1", 3)
	require.NoError(t, err)

	// Webhook redelivery must not seed twice.
	second, err := svc.EnsureAccount(ctx, "user_1", 3)
	require.NoError(t, err)
	assert.Equal(t, first.Balance, second.Balance)

	history, err := svc.ListHistory(ctx, "user_1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestEnsureAccountZeroSeed(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	credit, err := svc.EnsureAccount(ctx, "user_1", 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, credit.Balance)

	history, err := svc.ListHistory(ctx, "user_1", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, history, "a zero seed must not produce a ledger entry")
}

func TestGetBalanceUnknownUser(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.GetBalance(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, models.IsErrorType(err, models.ErrorTypeNotFound))
}

func TestAuthorize(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.EnsureAccount(ctx, "user_1", 3)
	require.NoError(t, err)

	t.Run("sufficient balance", func(t *testing.T) {
		result, err := svc.Authorize(ctx, "user_1", models.ActionCVGeneration)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 1.0, result.Cost)
		assert.Equal(t, 0.0, result.Shortfall)
	})

	t.Run("free action always allowed", func(t *testing.T) {
		result, err := svc.Authorize(ctx, "user_1", models.ActionPDFDownload)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 0.0, result.Cost)
	})

	t.Run("shortfall reported", func(t *testing.T) {
		_, err := svc.EnsureAccount(ctx, "user_2", 0.5)
		require.NoError(t, err)

		result, err := svc.Authorize(ctx, "user_2", models.ActionCVGeneration)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, 0.5, result.Shortfall)
	})

	t.Run("unknown action rejected", func(t *testing.T) {
		_, err := svc.Authorize(ctx, "user_1", "karaoke")
		require.Error(t, err)
		assert.True(t, models.IsErrorType(err, models.ErrorTypeValidation))
	})
}

func TestDebit(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.EnsureAccount(ctx, "user_1", 3)
	require.NoError(t, err)

	entry, err := svc.Debit(ctx, models.DebitParams{
		UserID:            "user_1",
		Action:            models.ActionCVGeneration,
		RelatedDocumentID: "doc_42",
	})
	require.NoError(t, err)
	assert.Equal(t, -1.0, entry.Delta)
	assert.Equal(t, 2.0, entry.BalanceAfter)
	assert.Equal(t, "doc_42", entry.RelatedDocumentID)

	credit, err := svc.GetBalance(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 2.0, credit.Balance)
	assert.Equal(t, 1.0, credit.TotalUsed)
	assert.Equal(t, 3.0, credit.TotalPurchased)
}

func TestDebitFractionalCost(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.EnsureAccount(ctx, "user_1", 1)
	require.NoError(t, err)

	entry, err := svc.Debit(ctx, models.DebitParams{
		UserID: "user_1",
		Action: models.ActionATSOptimization,
	})
	require.NoError(t, err)
	assert.Equal(t, -0.5, entry.Delta)
	assert.Equal(t, 0.5, entry.BalanceAfter)

	// The remaining half credit covers one more optimization but not a
	// full generation.
	result, err := svc.Authorize(ctx, "user_1", models.ActionCVGeneration)
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	_, err = svc.Debit(ctx, models.DebitParams{
		UserID: "user_1",
		Action: models.ActionATSOptimization,
	})
	require.NoError(t, err)

	credit, err := svc.GetBalance(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, credit.Balance)
}

func TestDebitInsufficientCredits(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.EnsureAccount(ctx, "user_1", 0.5)
	require.NoError(t, err)

	_, err = svc.Debit(ctx, models.DebitParams{
		UserID: "user_1",
		Action: models.ActionCVGeneration,
	})
	require.Error(t, err)
	assert.True(t, models.IsErrorType(err, models.ErrorTypeInsufficientCredits))

	// A failed debit must leave no trace.
	credit, err := svc.GetBalance(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 0.5, credit.Balance)
	assert.Equal(t, 0.0, credit.TotalUsed)

	history, err := svc.ListHistory(ctx, "user_1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestDebitUnknownAccount(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Debit(context.Background(), models.DebitParams{
		UserID: "missing",
		Action: models.ActionCVGeneration,
	})
	require.Error(t, err)
	assert.True(t, models.IsErrorType(err, models.ErrorTypeNotFound))
}

func TestDebitRejectsFreeAction(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.EnsureAccount(ctx, "user_1", 3)
	require.NoError(t, err)

	_, err = svc.Debit(ctx, models.DebitParams{
		UserID: "user_1",
		Action: models.ActionPDFDownload,
	})
	require.Error(t, err)
	assert.True(t, models.IsErrorType(err, models.ErrorTypeValidation))
}

func TestDebitRejectsCreditingAction(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Debit(context.Background(), models.DebitParams{
		UserID: "user_1",
		Action: models.ActionPurchase,
	})
	require.Error(t, err)
	assert.True(t, models.IsErrorType(err, models.ErrorTypeValidation))
}

func TestCreditPurchase(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	entry, err := svc.Credit(ctx, models.CreditParams{
		UserID:         "user_1",
		Amount:         50,
		Action:         models.ActionPurchase,
		IdempotencyKey: "evt_123",
	})
	require.NoError(t, err)
	assert.Equal(t, 50.0, entry.Delta)
	assert.Equal(t, 50.0, entry.BalanceAfter)

	// Purchases may land before the registration webhook; the account
	// record is created on demand.
	credit, err := svc.GetBalance(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 50.0, credit.Balance)
	assert.Equal(t, 50.0, credit.TotalPurchased)
}

func TestCreditIdempotentReplay(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	params := models.CreditParams{
		UserID:         "user_1",
		Amount:         50,
		Action:         models.ActionPurchase,
		IdempotencyKey: "evt_123",
	}

	first, err := svc.Credit(ctx, params)
	require.NoError(t, err)

	replay, err := svc.Credit(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, first.ID, replay.ID)

	credit, err := svc.GetBalance(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 50.0, credit.Balance, "replay must not credit twice")

	history, err := svc.ListHistory(ctx, "user_1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestCreditIdempotencyConflict(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Credit(ctx, models.CreditParams{
		UserID:         "user_1",
		Amount:         50,
		Action:         models.ActionPurchase,
		IdempotencyKey: "evt_123",
	})
	require.NoError(t, err)

	_, err = svc.Credit(ctx, models.CreditParams{
		UserID:         "user_1",
		Amount:         100,
		Action:         models.ActionPurchase,
		IdempotencyKey: "evt_123",
	})
	require.Error(t, err)
	assert.True(t, models.IsErrorType(err, models.ErrorTypeIdempotencyConflict))
}

func TestCreditAdminGrant(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.EnsureAccount(ctx, "user_1", 3)
	require.NoError(t, err)

	_, err = svc.Credit(ctx, models.CreditParams{
		UserID: "user_1",
		Amount: 10,
		Action: models.ActionAdminGrant,
	})
	require.NoError(t, err)

	credit, err := svc.GetBalance(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 13.0, credit.Balance)
	assert.Equal(t, 3.0, credit.TotalPurchased, "grants are not revenue")
}

func TestCreditValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		params models.CreditParams
	}{
		{"missing user", models.CreditParams{Amount: 10, Action: models.ActionAdminGrant}},
		{"zero amount", models.CreditParams{UserID: "u", Amount: 0, Action: models.ActionAdminGrant}},
		{"negative amount", models.CreditParams{UserID: "u", Amount: -5, Action: models.ActionAdminGrant}},
		{"usage action", models.CreditParams{UserID: "u", Amount: 5, Action: models.ActionCVGeneration}},
		{"purchase without key", models.CreditParams{UserID: "u", Amount: 5, Action: models.ActionPurchase}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Credit(ctx, tc.params)
			require.Error(t, err)
			assert.True(t, models.IsErrorType(err, models.ErrorTypeValidation))
		})
	}
}

func TestListHistoryOrderAndPagination(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.EnsureAccount(ctx, "user_1", 10)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := svc.Debit(ctx, models.DebitParams{
			UserID: "user_1",
			Action: models.ActionCVGeneration,
		})
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	all, err := svc.ListHistory(ctx, "user_1", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 6)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i-1].CreatedAt.Before(all[i].CreatedAt), "history must be newest first")
	}
	// The free tier seed was first, so it pages out last.
	assert.Equal(t, models.ActionFreeTier, all[5].Action)

	page, err := svc.ListHistory(ctx, "user_1", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, all[2].ID, page[0].ID)
	assert.Equal(t, all[3].ID, page[1].ID)
}

func TestReconcile(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.EnsureAccount(ctx, "user_1", 10)
	require.NoError(t, err)
	_, err = svc.Debit(ctx, models.DebitParams{UserID: "user_1", Action: models.ActionCVGeneration})
	require.NoError(t, err)
	_, err = svc.Credit(ctx, models.CreditParams{
		UserID:         "user_1",
		Amount:         25,
		Action:         models.ActionPurchase,
		IdempotencyKey: "evt_1",
	})
	require.NoError(t, err)

	balance, entrySum, consistent, err := svc.Reconcile(ctx, "user_1")
	require.NoError(t, err)
	assert.True(t, consistent)
	assert.Equal(t, 34.0, balance)
	assert.Equal(t, 34.0, entrySum)

	// Tampering with the balance out of band must show up.
	require.NoError(t, svc.db.Model(&models.UserCredit{}).
		Where("user_id = ?", "user_1").
		Update("balance", 99).Error)

	balance, entrySum, consistent, err = svc.Reconcile(ctx, "user_1")
	require.NoError(t, err)
	assert.False(t, consistent)
	assert.Equal(t, 99.0, balance)
	assert.Equal(t, 34.0, entrySum)
}

func TestFrozenAccountRejectsMutations(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.EnsureAccount(ctx, "user_1", 10)
	require.NoError(t, err)
	require.NoError(t, svc.FreezeAccount(ctx, "user_1"))

	_, err = svc.Debit(ctx, models.DebitParams{UserID: "user_1", Action: models.ActionCVGeneration})
	require.Error(t, err)
	assert.True(t, models.IsErrorType(err, models.ErrorTypeValidation))

	_, err = svc.Credit(ctx, models.CreditParams{
		UserID: "user_1",
		Amount: 5,
		Action: models.ActionAdminGrant,
	})
	require.Error(t, err)

	// History stays readable.
	history, err := svc.ListHistory(ctx, "user_1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestFreezeUnknownAccount(t *testing.T) {
	svc := newTestService(t)

	err := svc.FreezeAccount(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, models.IsErrorType(err, models.ErrorTypeNotFound))
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.EnsureAccount(ctx, "user_1", 10)
	require.NoError(t, err)

	const attempts = 100
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Debit(ctx, models.DebitParams{
				UserID: "user_1",
				Action: models.ActionCVGeneration,
			})
		}(i)
	}
	wg.Wait()

	var succeeded, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case models.IsErrorType(err, models.ErrorTypeInsufficientCredits):
			insufficient++
		default:
			t.Fatalf("unexpected debit error: %v", err)
		}
	}
	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 90, insufficient)

	credit, err := svc.GetBalance(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, credit.Balance)
	assert.Equal(t, 10.0, credit.TotalUsed)

	_, entrySum, consistent, err := svc.Reconcile(ctx, "user_1")
	require.NoError(t, err)
	assert.True(t, consistent)
	assert.Equal(t, 0.0, entrySum)
}

func TestConcurrentCreditsSameKey(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	params := models.CreditParams{
		UserID:         "user_1",
		Amount:         50,
		Action:         models.ActionPurchase,
		IdempotencyKey: "evt_race",
	}

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Credit(ctx, params)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err, "replays of the same event must all succeed")
	}

	credit, err := svc.GetBalance(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 50.0, credit.Balance, "the event must be applied exactly once")
}
