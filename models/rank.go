package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Rank is one tier of the static rank table. Evaluated highest threshold
// first; a user qualifies for the first tier whose minimums are both met.
type Rank struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Name           string          `gorm:"size:50;not null;uniqueIndex" json:"name"`
	MinInvestment  decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"min_investment"`
	MinActiveTeam  int             `gorm:"not null" json:"min_active_team"`
	TradeBooster   decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"trade_booster"`
	DailyLimitView decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"daily_limit_view"`
	Priority       int             `gorm:"not null;index" json:"priority"`
	CreatedAt      time.Time       `json:"-"`
	UpdatedAt      time.Time       `json:"-"`
}

func (Rank) TableName() string {
	return "ranks"
}

// ListRanks returns the rank table ordered highest priority first.
func ListRanks(tx *gorm.DB) ([]Rank, error) {
	var ranks []Rank
	err := tx.Order("priority DESC").Find(&ranks).Error
	return ranks, err
}
