package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type User struct {
	ID                   uint            `gorm:"primaryKey" json:"id"`
	Name                 string          `gorm:"size:100;not null" json:"name"`
	ReffCode             string          `gorm:"size:20;uniqueIndex;not null" json:"reff_code"`
	ReferrerId           *uint           `gorm:"column:referrer_id;index" json:"referrer_id"`
	PlacementId          *uint           `gorm:"column:placement_id;index" json:"placement_id"`
	IsRoot               bool            `gorm:"not null;default:false" json:"is_root"`
	Wallet               decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0.00" json:"wallet"`
	WalletTopup          decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0.00" json:"wallet_topup"`
	TotalInvestment      decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0.00" json:"total_investment"`
	CappingLimit         decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0.00" json:"capping_limit"`
	Rank                 string          `gorm:"size:50;not null;default:''" json:"rank"`
	TradeBooster         decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0.00" json:"trade_booster"`
	DailyLimitView       decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0.00" json:"daily_limit_view"`
	DailyProfitActivated bool            `gorm:"not null;default:false" json:"daily_profit_activated"`
	LastActivationDate   *time.Time      `json:"last_activation_date,omitempty"`
	Status               string          `gorm:"type:enum('Active','Inactive','Suspend');default:'Active'" json:"status"`
	CreatedAt            time.Time       `json:"-"`
	UpdatedAt            time.Time       `json:"-"`
}

func (User) TableName() string {
	return "users"
}

func GetUserById(tx *gorm.DB, id uint) (*User, error) {
	var user User
	if err := tx.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetRootUser returns the distinguished root account every sponsorship
// chain terminates at.
func GetRootUser(tx *gorm.DB) (*User, error) {
	var user User
	if err := tx.Where("is_root = ?", true).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func DirectReferralCount(tx *gorm.DB, userId uint) (int64, error) {
	var count int64
	err := tx.Model(&User{}).Where("referrer_id = ?", userId).Count(&count).Error
	return count, err
}

// ActiveDirectReferralCount counts direct referrals that hold invested
// principal; used by the rank pass as the active team size.
func ActiveDirectReferralCount(tx *gorm.DB, userId uint) (int64, error) {
	var count int64
	err := tx.Model(&User{}).
		Where("referrer_id = ? AND total_investment > 0", userId).
		Count(&count).Error
	return count, err
}

// CreditWallet applies a wallet credit and the matching capping-limit
// decrement as a single conditional UPDATE. It returns false without
// touching the row when the remaining capping limit cannot cover the full
// amount: a credit is applied whole or not at all, and concurrent external
// wallet mutation cannot produce lost updates because the increment happens
// in SQL, not via read-modify-write.
func CreditWallet(tx *gorm.DB, userId uint, amount decimal.Decimal) (bool, error) {
	if amount.IsNegative() {
		return false, nil
	}
	res := tx.Model(&User{}).
		Where("id = ? AND capping_limit >= ?", userId, amount).
		Updates(map[string]interface{}{
			"wallet":        gorm.Expr("wallet + ?", amount),
			"capping_limit": gorm.Expr("capping_limit - ?", amount),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ResetDailyProfitActivated clears the per-day activation flag for all
// users at the start of a new day.
func ResetDailyProfitActivated(tx *gorm.DB) (int64, error) {
	res := tx.Model(&User{}).
		Where("daily_profit_activated = ?", true).
		Update("daily_profit_activated", false)
	return res.RowsAffected, res.Error
}

func ListUserIds(tx *gorm.DB) ([]uint, error) {
	var ids []uint
	err := tx.Model(&User{}).Where("status = ?", "Active").Order("id").Pluck("id", &ids).Error
	return ids, err
}

func UpdateUserRank(tx *gorm.DB, userId uint, rank string, booster decimal.Decimal, dailyLimitView decimal.Decimal) error {
	return tx.Model(&User{}).Where("id = ?", userId).Updates(map[string]interface{}{
		"rank":             rank,
		"trade_booster":    booster,
		"daily_limit_view": dailyLimitView,
	}).Error
}
