package ledger

import (
	"testing"

	"github.com/resumeforge/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestCostTableDefaults(t *testing.T) {
	table := DefaultCostTable()

	cost, ok := table.Cost(models.ActionCVGeneration)
	assert.True(t, ok)
	assert.Equal(t, 1.0, cost)

	cost, ok = table.Cost(models.ActionATSOptimization)
	assert.True(t, ok)
	assert.Equal(t, 0.5, cost)

	cost, ok = table.Cost(models.ActionPDFDownload)
	assert.True(t, ok)
	assert.Equal(t, 0.0, cost)

	_, ok = table.Cost(models.ActionPurchase)
	assert.False(t, ok)
}

func TestCostTableOverrides(t *testing.T) {
	table := NewCostTable(map[models.CreditAction]float64{
		models.ActionCVGeneration: 2.0,
		models.ActionPurchase:     7.0,  // not a usage action, ignored
		models.ActionPDFDownload:  -1.0, // negative, ignored
	})

	cost, _ := table.Cost(models.ActionCVGeneration)
	assert.Equal(t, 2.0, cost)

	cost, _ = table.Cost(models.ActionCoverLetterGeneration)
	assert.Equal(t, 1.0, cost)

	cost, _ = table.Cost(models.ActionPDFDownload)
	assert.Equal(t, 0.0, cost)

	_, ok := table.Cost(models.ActionPurchase)
	assert.False(t, ok)
}
