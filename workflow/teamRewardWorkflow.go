package workflow

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tradeflow-hq/trade_backend/config"
	"github.com/tradeflow-hq/trade_backend/models"
	"github.com/tradeflow-hq/trade_backend/utils"
)

// TeamRewardDetail is the audit payload on team_reward income rows.
type TeamRewardDetail struct {
	TierID      uint            `json:"tier_id"`
	TeamDeposit decimal.Decimal `json:"team_deposit"`
	RewardID    uint            `json:"reward_id"`
}

// OpenTeamRewards aggregates each user's 2-level team deposit total and
// opens a pending reward for every tier threshold crossed. The unique
// (user, tier) key makes re-running the pass a no-op for already opened
// rewards; nothing is credited here, crediting happens at maturity.
func (e *Engine) OpenTeamRewards(rc *RunContext) error {
	tiers, err := e.store.ListTeamRewardTiers()
	if err != nil {
		return err
	}
	if len(tiers) == 0 {
		return fmt.Errorf("team reward tier table is empty")
	}

	userIds, err := e.store.ListUserIds()
	if err != nil {
		return err
	}
	now := e.now()
	for _, userId := range userIds {
		if rc.DeadlineExceeded() {
			break
		}
		reference := fmt.Sprintf("user:%d", userId)

		teamDeposit, err := e.store.TwoLevelTeamDeposit(userId)
		if err != nil {
			rc.AddError("team_reward", reference, err)
			continue
		}
		for i := range tiers {
			tier := &tiers[i]
			if teamDeposit.LessThan(tier.DepositThreshold) {
				continue
			}
			created, err := e.store.OpenTeamReward(&models.TeamReward{
				UserID:      userId,
				TierID:      tier.ID,
				Amount:      tier.RewardAmount,
				TeamDeposit: teamDeposit,
				MaturesAt:   utils.DateOnly(now).AddDate(0, 0, tier.HoldingDays),
				Status:      models.TeamRewardStatusPending,
			})
			if err != nil {
				rc.AddError("team_reward", reference, err)
				continue
			}
			if created {
				rc.AddProcessed(decimal.Zero)
			}
		}
	}
	return nil
}

// MatureTeamRewards sweeps pending rewards whose holding period elapsed.
// Eligibility is re-verified at maturity: a user who released their stake
// in the meantime forfeits the reward. The guarded settle plus the income
// unique key make the credit exactly-once even when the sweep replays.
func (e *Engine) MatureTeamRewards(rc *RunContext) error {
	due, err := e.store.DueTeamRewards(e.now())
	if err != nil {
		return err
	}
	for i := range due {
		if rc.DeadlineExceeded() {
			break
		}
		e.settleTeamReward(rc, &due[i])
	}
	return nil
}

func (e *Engine) settleTeamReward(rc *RunContext, reward *models.TeamReward) {
	reference := fmt.Sprintf("team_reward:%d", reward.ID)

	invested, err := e.HasInvested(reward.UserID)
	if err != nil {
		rc.AddError("team_reward", reference, err)
		return
	}
	if !invested {
		if _, err := e.store.SettleTeamReward(reward.ID, models.TeamRewardStatusCancelled, rc.Execution.ID); err != nil {
			rc.AddError("team_reward", reference, err)
		}
		return
	}

	detail := TeamRewardDetail{
		TierID:      reward.TierID,
		TeamDeposit: reward.TeamDeposit,
		RewardID:    reward.ID,
	}
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		rc.AddError("team_reward", reference, err)
		return
	}
	details := string(detailJSON)

	var fresh bool
	err = e.store.Transaction(func(tx Store) error {
		settled, err := tx.SettleTeamReward(reward.ID, models.TeamRewardStatusCredited, rc.Execution.ID)
		if err != nil {
			return err
		}
		if !settled {
			// Another run got here first.
			return nil
		}
		created, err := tx.CreateIncome(&models.Income{
			UserID:     reward.UserID,
			UserIDFrom: reward.UserID,
			Type:       models.IncomeTypeTeamReward,
			Level:      0,
			Reference:  reference,
			Amount:     reward.Amount,
			Status:     models.IncomeStatusCredited,
			Extra:      &details,
		})
		if err != nil {
			return err
		}
		if !created {
			return nil
		}
		credited, err := tx.CreditWallet(reward.UserID, reward.Amount)
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
		// Reward stays pending for a later sweep once capping allows it.
		return
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return
		}
		config.LogError(e.logger, "teamRewardWorkflow.go", "settleTeamReward", reference, reward.UserID, err)
		rc.AddError("team_reward", reference, err)
		return
	}
	if fresh {
		rc.AddProcessed(reward.Amount)
	}
}
