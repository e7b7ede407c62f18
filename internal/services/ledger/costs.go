package ledger

import (
	"github.com/resumeforge/backend/internal/models"
)

// Built-in credit costs per metered action. Overridable through the
// credits.costs config section at deploy time.
const (
	defaultCVGenerationCost          = 1.0
	defaultCoverLetterGenerationCost = 1.0
	defaultATSOptimizationCost       = 0.5
	defaultPDFDownloadCost           = 0.0
)

// CostTable maps usage actions to their fixed credit cost. It is immutable
// after construction; Authorize and Debit read it without locking.
type CostTable struct {
	costs map[models.CreditAction]float64
}

// DefaultCostTable returns the built-in cost table.
func DefaultCostTable() *CostTable {
	return NewCostTable(nil)
}

// NewCostTable builds a cost table from the defaults with per-action
// overrides applied on top. Overrides for non-usage actions are ignored.
func NewCostTable(overrides map[models.CreditAction]float64) *CostTable {
	costs := map[models.CreditAction]float64{
		models.ActionCVGeneration:          defaultCVGenerationCost,
		models.ActionCoverLetterGeneration: defaultCoverLetterGenerationCost,
		models.ActionATSOptimization:       defaultATSOptimizationCost,
		models.ActionPDFDownload:           defaultPDFDownloadCost,
	}

	for action, cost := range overrides {
		if action.IsUsage() && cost >= 0 {
			costs[action] = cost
		}
	}

	return &CostTable{costs: costs}
}

// Cost returns the credit cost for a usage action.
func (t *CostTable) Cost(action models.CreditAction) (float64, bool) {
	cost, ok := t.costs[action]
	return cost, ok
}
