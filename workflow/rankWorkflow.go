package workflow

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tradeflow-hq/trade_backend/models"
)

// EvaluateRanks re-scans all users against the static rank table, highest
// threshold first, and updates rank, trade booster and daily limit view in
// one statement when the qualification changed. It runs after the ROI and
// commission passes have settled so it reads a stabilized snapshot of
// total_investment and referral counts.
func (e *Engine) EvaluateRanks(rc *RunContext) error {
	ranks, err := e.store.ListRanks()
	if err != nil {
		return err
	}
	if len(ranks) == 0 {
		return fmt.Errorf("rank table is empty")
	}

	userIds, err := e.store.ListUserIds()
	if err != nil {
		return err
	}
	for _, userId := range userIds {
		if rc.DeadlineExceeded() {
			break
		}
		e.evaluateUserRank(rc, userId, ranks)
	}
	return nil
}

func (e *Engine) evaluateUserRank(rc *RunContext, userId uint, ranks []models.Rank) {
	reference := fmt.Sprintf("user:%d", userId)

	user, err := e.store.GetUser(userId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return
		}
		rc.AddError("rank", reference, err)
		return
	}

	activeTeam, err := e.store.ActiveDirectReferralCount(userId)
	if err != nil {
		rc.AddError("rank", reference, err)
		return
	}

	// ranks are ordered highest priority first; the first match wins.
	var target *models.Rank
	for i := range ranks {
		r := &ranks[i]
		if user.TotalInvestment.GreaterThanOrEqual(r.MinInvestment) && activeTeam >= int64(r.MinActiveTeam) {
			target = r
			break
		}
	}

	if target == nil {
		if user.Rank == "" {
			return
		}
		if err := e.store.UpdateUserRank(userId, "", decimal.Zero, decimal.Zero); err != nil {
			rc.AddError("rank", reference, err)
			return
		}
		rc.AddProcessed(decimal.Zero)
		return
	}

	if user.Rank == target.Name {
		return
	}
	if err := e.store.UpdateUserRank(userId, target.Name, target.TradeBooster, target.DailyLimitView); err != nil {
		rc.AddError("rank", reference, err)
		return
	}
	rc.AddProcessed(decimal.Zero)
}
