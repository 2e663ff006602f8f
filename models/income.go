package models

import (
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Income is an immutable ledger entry. The uniq_income index is the
// idempotency contract: for a given (user_id_from, type, level, reference)
// at most one row may exist, so repair and backfill tooling can re-run any
// pass against historical data without double-crediting.
type Income struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	UserID     uint            `gorm:"not null;index" json:"user_id"`
	UserIDFrom uint            `gorm:"column:user_id_from;not null;index:uniq_income,unique" json:"user_id_from"`
	Type       IncomeType      `gorm:"size:50;not null;index:uniq_income,unique" json:"type"`
	Level      int             `gorm:"not null;default:0;index:uniq_income,unique" json:"level"`
	Reference  string          `gorm:"size:191;not null;index:uniq_income,unique" json:"reference"`
	Amount     decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Status     IncomeStatus    `gorm:"type:enum('Pending','Credited','Cancelled');default:'Credited'" json:"status"`
	Extra      *string         `gorm:"type:text" json:"extra,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (Income) TableName() string {
	return "incomes"
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// CreateIncome inserts a ledger entry. A duplicate-key hit on uniq_income
// means the credit was already recorded; that is a no-op success, not an
// error. Returns created=false for the duplicate case.
func CreateIncome(tx *gorm.DB, income *Income) (bool, error) {
	if err := tx.Create(income).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SumIncomeAmount totals credited ledger entries of one type since a
// cutoff; the activation audit reconciles this against the profit stamped
// on processed activations.
func SumIncomeAmount(tx *gorm.DB, incomeType IncomeType, since time.Time) (decimal.Decimal, error) {
	var raw *string
	err := tx.Model(&Income{}).
		Select("SUM(amount)").
		Where("type = ? AND created_at >= ? AND status = ?", incomeType, since, IncomeStatusCredited).
		Scan(&raw).Error
	if err != nil || raw == nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(*raw)
}
