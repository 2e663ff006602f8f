package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TeamRewardTier maps a 2-level team deposit threshold to a fixed bonus
// that matures after a holding period.
type TeamRewardTier struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	Name             string          `gorm:"size:50;not null;uniqueIndex" json:"name"`
	DepositThreshold decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"deposit_threshold"`
	HoldingDays      int             `gorm:"not null" json:"holding_days"`
	RewardAmount     decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"reward_amount"`
	CreatedAt        time.Time       `json:"-"`
	UpdatedAt        time.Time       `json:"-"`
}

func (TeamRewardTier) TableName() string {
	return "team_reward_tiers"
}

// TeamReward is one opened reward. uniq_team_reward makes opening the same
// tier for the same user a no-op on replay.
type TeamReward struct {
	ID              uint             `gorm:"primaryKey" json:"id"`
	UserID          uint             `gorm:"not null;index:uniq_team_reward,unique" json:"user_id"`
	TierID          uint             `gorm:"not null;index:uniq_team_reward,unique" json:"tier_id"`
	Amount          decimal.Decimal  `gorm:"type:decimal(15,2);not null" json:"amount"`
	TeamDeposit     decimal.Decimal  `gorm:"type:decimal(15,2);not null" json:"team_deposit"`
	MaturesAt       time.Time        `gorm:"not null;index" json:"matures_at"`
	Status          TeamRewardStatus `gorm:"type:enum('Pending','Credited','Cancelled');default:'Pending';index" json:"status"`
	CronExecutionID *string          `gorm:"size:64" json:"cron_execution_id,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"-"`
}

func (TeamReward) TableName() string {
	return "team_rewards"
}

func ListTeamRewardTiers(tx *gorm.DB) ([]TeamRewardTier, error) {
	var tiers []TeamRewardTier
	err := tx.Order("deposit_threshold").Find(&tiers).Error
	return tiers, err
}

// OpenTeamReward inserts a pending reward, treating the duplicate-key hit
// as "already opened" (created=false, no error).
func OpenTeamReward(tx *gorm.DB, reward *TeamReward) (bool, error) {
	if err := tx.Create(reward).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func DueTeamRewards(tx *gorm.DB, now time.Time) ([]TeamReward, error) {
	var rewards []TeamReward
	err := tx.Where("status = ? AND matures_at <= ?", TeamRewardStatusPending, now).
		Order("matures_at, id").
		Find(&rewards).Error
	return rewards, err
}

// SettleTeamReward moves a pending reward to a terminal status, guarded so
// a replay cannot settle it twice.
func SettleTeamReward(tx *gorm.DB, rewardId uint, status TeamRewardStatus, cronExecutionId string) (bool, error) {
	res := tx.Model(&TeamReward{}).
		Where("id = ? AND status = ?", rewardId, TeamRewardStatusPending).
		Updates(map[string]interface{}{
			"status":            status,
			"cron_execution_id": cronExecutionId,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// TwoLevelTeamDeposit sums active principal across a user's direct
// referrals and their referrals.
func TwoLevelTeamDeposit(tx *gorm.DB, userId uint) (decimal.Decimal, error) {
	var raw *string
	err := tx.Raw(`
		SELECT SUM(i.amount)
		FROM investments i
		JOIN users l1 ON l1.id = i.user_id
		WHERE i.status = ?
		  AND (l1.referrer_id = ?
		       OR l1.referrer_id IN (SELECT id FROM users WHERE referrer_id = ?))`,
		InvestmentStatusActive, userId, userId).Scan(&raw).Error
	if err != nil || raw == nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(*raw)
}
