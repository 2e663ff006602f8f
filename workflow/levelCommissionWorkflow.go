package workflow

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tradeflow-hq/trade_backend/config"
	"github.com/tradeflow-hq/trade_backend/models"
)

// CommissionDetail is the audit payload on cascaded income rows.
type CommissionDetail struct {
	SourceUserID uint            `json:"source_user_id"`
	SourceAmount decimal.Decimal `json:"source_amount"`
	Percentage   decimal.Decimal `json:"percentage"`
	Level        int             `json:"level"`
}

// Cascade walks the sponsorship chain upward from sourceUserId, crediting
// each qualifying ancestor its level percentage of baseAmount. Per level
// the ancestor must hold an active investment, sit in a tier at least as
// high as the source transaction, and have sponsored at least as many
// direct referrals as the level depth. A failed gate skips the level but
// the walk continues; the walk ends at the root account or level 10.
//
// Returns false only on an unrecoverable condition (malformed rate table,
// detected referral cycle); per-level errors are recorded and skipped.
func (e *Engine) Cascade(rc *RunContext, sourceUserId uint, baseAmount decimal.Decimal, sourceTier int, reference string) bool {
	if len(e.cfg.LevelRates) != config.MaxCascadeLevels {
		rc.AddError("level_roi", reference, fmt.Errorf("level rate table has %d entries, want %d", len(e.cfg.LevelRates), config.MaxCascadeLevels))
		return false
	}

	source, err := e.store.GetUser(sourceUserId)
	if err != nil {
		rc.AddError("level_roi", reference, fmt.Errorf("source user %d: %w", sourceUserId, err))
		return false
	}

	// Sponsorship assignment is enforced acyclic at signup, but a corrupted
	// chain must surface as a configuration error, not an endless walk.
	visited := map[uint]bool{sourceUserId: true}

	next := source.ReferrerId
	for level := 1; next != nil && level <= config.MaxCascadeLevels; level++ {
		ancestor, err := e.store.GetUser(*next)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			rc.AddError("level_roi", fmt.Sprintf("%s/level:%d", reference, level), err)
			break
		}
		if visited[ancestor.ID] {
			rc.AddError("level_roi", reference, fmt.Errorf("referral cycle detected at user %d", ancestor.ID))
			return false
		}
		visited[ancestor.ID] = true

		if e.levelQualifies(rc, ancestor, sourceTier, level, reference) {
			commission := baseAmount.Mul(e.cfg.LevelRate(level)).Div(oneHundred).Round(2)
			if e.creditCommission(rc, ancestor.ID, sourceUserId, models.IncomeTypeLevelRoi, level, commission, baseAmount, e.cfg.LevelRate(level), reference) {
				rc.AddAmount(commission)
			}
		}

		next = ancestor.ReferrerId
	}
	return true
}

// levelQualifies applies the eligibility gates for one cascade hop. It is
// re-evaluated per hop against live state, never cached across the run.
func (e *Engine) levelQualifies(rc *RunContext, ancestor *models.User, sourceTier int, level int, reference string) bool {
	invested, err := e.HasInvested(ancestor.ID)
	if err != nil {
		rc.AddError("level_roi", fmt.Sprintf("%s/level:%d", reference, level), err)
		return false
	}
	if !invested {
		return false
	}

	tier, err := e.HighestActivePackageTier(ancestor.ID)
	if err != nil {
		rc.AddError("level_roi", fmt.Sprintf("%s/level:%d", reference, level), err)
		return false
	}
	if tier < sourceTier {
		return false
	}

	// A user earns from level N only after sponsoring at least N people.
	referrals, err := e.store.DirectReferralCount(ancestor.ID)
	if err != nil {
		rc.AddError("level_roi", fmt.Sprintf("%s/level:%d", reference, level), err)
		return false
	}
	return referrals >= int64(level)
}

// creditCommission writes the income row and the wallet credit atomically,
// reporting whether a fresh credit happened. The income insert leads: its
// unique key makes replays no-ops, and a capping refusal rolls the row back
// so nothing partial remains.
func (e *Engine) creditCommission(rc *RunContext, userId uint, sourceUserId uint, incomeType models.IncomeType, level int, amount decimal.Decimal, sourceAmount decimal.Decimal, percentage decimal.Decimal, reference string) bool {
	detail := CommissionDetail{
		SourceUserID: sourceUserId,
		SourceAmount: sourceAmount,
		Percentage:   percentage,
		Level:        level,
	}
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		rc.AddError(string(incomeType), fmt.Sprintf("%s/level:%d", reference, level), err)
		return false
	}
	details := string(detailJSON)

	var fresh bool
	err = e.store.Transaction(func(tx Store) error {
		created, err := tx.CreateIncome(&models.Income{
			UserID:     userId,
			UserIDFrom: sourceUserId,
			Type:       incomeType,
			Level:      level,
			Reference:  reference,
			Amount:     amount,
			Status:     models.IncomeStatusCredited,
			Extra:      &details,
		})
		if err != nil {
			return err
		}
		if !created {
			return nil
		}
		credited, err := tx.CreditWallet(userId, amount)
		if err != nil {
			return err
		}
		if !credited {
			return errCappingExhausted
		}
		fresh = true
		return nil
	})
	if errors.Is(err, errCappingExhausted) {
		// Level skipped entirely; the remaining capping limit cannot cover
		// the full commission and partial credits are not allowed.
		return false
	}
	if err != nil {
		config.LogError(e.logger, "levelCommissionWorkflow.go", "creditCommission", reference, userId, err)
		rc.AddError(string(incomeType), fmt.Sprintf("%s/level:%d", reference, level), err)
		return false
	}
	return fresh
}
