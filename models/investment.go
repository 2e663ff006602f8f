package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InvestmentPlan struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Name      string          `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Tier      int             `gorm:"not null;index" json:"tier"`
	DailyRate decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"daily_rate"`
	MinAmount decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"min_amount"`
	MaxAmount decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"max_amount"`
	Status    string          `gorm:"type:enum('Active','Inactive');default:'Active'" json:"status"`
	CreatedAt time.Time       `json:"-"`
	UpdatedAt time.Time       `json:"-"`
}

func (InvestmentPlan) TableName() string {
	return "investment_plans"
}

type Investment struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	UserID         uint             `gorm:"not null;index" json:"user_id"`
	PlanID         uint             `gorm:"not null;index" json:"plan_id"`
	Amount         decimal.Decimal  `gorm:"type:decimal(15,2);not null" json:"amount"`
	Status         InvestmentStatus `gorm:"type:enum('Active','Completed','Cancelled');default:'Active';index" json:"status"`
	LastProfitDate *time.Time       `json:"last_profit_date,omitempty"`
	OrderID        string           `gorm:"type:varchar(191);not null;uniqueIndex" json:"order_id"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"-"`

	Plan *InvestmentPlan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
}

func (Investment) TableName() string {
	return "investments"
}

func GetPlanById(tx *gorm.DB, id uint) (*InvestmentPlan, error) {
	var plan InvestmentPlan
	if err := tx.Where("id = ?", id).First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// DueInvestments lists active investments whose last profit date is before
// the given day (or never set). At most one advance per calendar day.
func DueInvestments(tx *gorm.DB, day time.Time) ([]Investment, error) {
	var investments []Investment
	err := tx.Preload("Plan").
		Where("status = ? AND (last_profit_date IS NULL OR last_profit_date < ?)", InvestmentStatusActive, day).
		Order("id").
		Find(&investments).Error
	return investments, err
}

// DueInvestmentsForUser is the per-user variant used by the retry pass.
func DueInvestmentsForUser(tx *gorm.DB, userId uint, day time.Time) ([]Investment, error) {
	var investments []Investment
	err := tx.Preload("Plan").
		Where("user_id = ? AND status = ? AND (last_profit_date IS NULL OR last_profit_date < ?)", userId, InvestmentStatusActive, day).
		Order("id").
		Find(&investments).Error
	return investments, err
}

// HasActiveInvestment re-derives eligibility from the source-of-record
// table; the cached users.total_investment counter can drift.
func HasActiveInvestment(tx *gorm.DB, userId uint) (bool, error) {
	var count int64
	err := tx.Model(&Investment{}).
		Where("user_id = ? AND status = ?", userId, InvestmentStatusActive).
		Count(&count).Error
	return count > 0, err
}

// HighestActiveTier returns the highest plan tier among the user's active
// investments, or -1 when there is none.
func HighestActiveTier(tx *gorm.DB, userId uint) (int, error) {
	var tier *int
	err := tx.Model(&Investment{}).
		Select("MAX(investment_plans.tier)").
		Joins("JOIN investment_plans ON investment_plans.id = investments.plan_id").
		Where("investments.user_id = ? AND investments.status = ?", userId, InvestmentStatusActive).
		Scan(&tier).Error
	if err != nil {
		return -1, err
	}
	if tier == nil {
		return -1, nil
	}
	return *tier, nil
}

// AdvanceLastProfitDate moves last_profit_date forward, guarded so a replay
// of the same day cannot advance twice.
func AdvanceLastProfitDate(tx *gorm.DB, investmentId uint, day time.Time) error {
	return tx.Model(&Investment{}).
		Where("id = ? AND (last_profit_date IS NULL OR last_profit_date < ?)", investmentId, day).
		Update("last_profit_date", day).Error
}
