package workflow

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tradeflow-hq/trade_backend/models"
)

// PurchaseDistribution summarizes one matrix distribution for the caller
// (the purchase flow hook).
type PurchaseDistribution struct {
	CreditedLevels int             `json:"credited_levels"`
	TotalCredited  decimal.Decimal `json:"total_credited"`
	ErrorCount     int             `json:"error_count"`
}

// OnPackagePurchase is the entry point the investment purchase flow calls.
// It walks the placement tree (independent of the referral tree) and
// credits each qualifying ancestor the matrix percentage of the purchase
// amount until the chain ends. The same invest-and-tier gates as the level
// cascade apply; the reference must be unique per purchase (the order id)
// so redelivery of the hook cannot double-credit.
func (e *Engine) OnPackagePurchase(userId uint, amount decimal.Decimal, tier int, reference string) (*PurchaseDistribution, error) {
	buyer, err := e.store.GetUser(userId)
	if err != nil {
		return nil, fmt.Errorf("buyer %d: %w", userId, err)
	}

	rc := &RunContext{Execution: &models.CronExecution{ID: fmt.Sprintf("purchase:%s", reference)}, total: decimal.Zero}
	incomeRef := fmt.Sprintf("purchase:%s", reference)
	matrixShare := amount.Mul(e.cfg.MatrixRate).Div(oneHundred).Round(2)

	visited := map[uint]bool{userId: true}
	result := &PurchaseDistribution{TotalCredited: decimal.Zero}

	next := buyer.PlacementId
	for depth := 1; next != nil; depth++ {
		ancestor, err := e.store.GetUser(*next)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			rc.AddError("matrix", fmt.Sprintf("%s/depth:%d", incomeRef, depth), err)
			break
		}
		if visited[ancestor.ID] {
			return result, fmt.Errorf("placement cycle detected at user %d", ancestor.ID)
		}
		visited[ancestor.ID] = true

		if e.matrixQualifies(rc, ancestor, tier, depth, incomeRef) {
			if e.creditCommission(rc, ancestor.ID, userId, models.IncomeTypeMatrix, depth, matrixShare, amount, e.cfg.MatrixRate, incomeRef) {
				result.CreditedLevels++
				result.TotalCredited = result.TotalCredited.Add(matrixShare)
			}
		}

		next = ancestor.PlacementId
	}

	result.ErrorCount = len(rc.runErrors)
	return result, nil
}

func (e *Engine) matrixQualifies(rc *RunContext, ancestor *models.User, sourceTier int, depth int, reference string) bool {
	invested, err := e.HasInvested(ancestor.ID)
	if err != nil {
		rc.AddError("matrix", fmt.Sprintf("%s/depth:%d", reference, depth), err)
		return false
	}
	if !invested {
		return false
	}
	tier, err := e.HighestActivePackageTier(ancestor.ID)
	if err != nil {
		rc.AddError("matrix", fmt.Sprintf("%s/depth:%d", reference, depth), err)
		return false
	}
	return tier >= sourceTier
}
