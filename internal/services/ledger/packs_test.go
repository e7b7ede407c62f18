package ledger

import (
	"context"
	"testing"

	"github.com/resumeforge/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreditPackCatalog(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	starter, err := svc.CreateCreditPack(ctx, CreditPackParams{
		Name:          "Starter",
		Credits:       10,
		Price:         4.99,
		StripePriceID: "price_starter",
		Active:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, "USD", starter.Currency)

	_, err = svc.CreateCreditPack(ctx, CreditPackParams{
		Name:          "Pro",
		Credits:       50,
		Price:         19.99,
		StripePriceID: "price_pro",
		Active:        true,
	})
	require.NoError(t, err)

	retired, err := svc.CreateCreditPack(ctx, CreditPackParams{
		Name:          "Legacy",
		Credits:       25,
		Price:         9.99,
		StripePriceID: "price_legacy",
		Active:        false,
	})
	require.NoError(t, err)

	storefront, err := svc.ListCreditPacks(ctx, true)
	require.NoError(t, err)
	require.Len(t, storefront, 2)
	assert.Equal(t, "Starter", storefront[0].Name, "catalog is cheapest first")
	assert.Equal(t, "Pro", storefront[1].Name)

	all, err := svc.ListCreditPacks(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	got, err := svc.GetCreditPack(ctx, retired.ID)
	require.NoError(t, err)
	assert.Equal(t, "Legacy", got.Name)
	assert.False(t, got.Active, "a pack created inactive must stay inactive")

	_, err = svc.GetCreditPack(ctx, 9999)
	require.Error(t, err)
	assert.True(t, models.IsErrorType(err, models.ErrorTypeNotFound))
}

func TestUpdateCreditPack(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	pack, err := svc.CreateCreditPack(ctx, CreditPackParams{
		Name:          "Starter",
		Credits:       10,
		Price:         4.99,
		StripePriceID: "price_starter",
		Active:        true,
	})
	require.NoError(t, err)

	updated, err := svc.UpdateCreditPack(ctx, pack.ID, CreditPackParams{
		Name:          "Starter",
		Credits:       12,
		Price:         5.99,
		StripePriceID: "price_starter",
		Active:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, 12.0, updated.Credits)
	assert.Equal(t, 5.99, updated.Price)
}

func TestCreateCreditPackValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		params CreditPackParams
	}{
		{"missing name", CreditPackParams{Credits: 10, Price: 5}},
		{"zero credits", CreditPackParams{Name: "P", Credits: 0, Price: 5}},
		{"negative price", CreditPackParams{Name: "P", Credits: 10, Price: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateCreditPack(ctx, tc.params)
			require.Error(t, err)
			assert.True(t, models.IsErrorType(err, models.ErrorTypeValidation))
		})
	}
}
