package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tradeflow-hq/trade_backend/utils"
)

// TradeActivation is the per-user, per-day opt-in record that gates the
// daily distribution. One row per (user, day), enforced by uniq_activation.
type TradeActivation struct {
	ID                uint             `gorm:"primaryKey" json:"id"`
	UserID            uint             `gorm:"not null;index:uniq_activation,unique" json:"user_id"`
	ActivationDate    time.Time        `gorm:"not null;index:uniq_activation,unique" json:"activation_date"`
	Status            ActivationStatus `gorm:"type:enum('Active','Expired','Cancelled');default:'Active'" json:"status"`
	ProfitStatus      ProfitStatus     `gorm:"type:enum('Pending','Processed','Failed','Skipped');default:'Pending';index" json:"profit_status"`
	ProfitProcessedAt *time.Time       `json:"profit_processed_at,omitempty"`
	ProfitAmount      decimal.Decimal  `gorm:"type:decimal(15,2);not null;default:0.00" json:"profit_amount"`
	ProfitDetails     *string          `gorm:"type:text" json:"profit_details,omitempty"`
	ProfitError       *string          `gorm:"type:text" json:"profit_error,omitempty"`
	CronExecutionID   *string          `gorm:"size:64;index" json:"cron_execution_id,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"-"`
}

func (TradeActivation) TableName() string {
	return "trade_activations"
}

func GetActivationFor(tx *gorm.DB, userId uint, day time.Time) (*TradeActivation, error) {
	var activation TradeActivation
	err := tx.Where("user_id = ? AND activation_date = ?", userId, utils.DateOnly(day)).
		First(&activation).Error
	if err != nil {
		return nil, err
	}
	return &activation, nil
}

// RecordActivationOutcome closes an activation with its terminal (or
// retryable) profit status. The processed-at stamp is always the day after
// the activation date at 01:00 UTC, never the wall-clock batch time.
func RecordActivationOutcome(tx *gorm.DB, activation *TradeActivation, status ProfitStatus, amount decimal.Decimal, details *string, profitError *string, cronExecutionId string) error {
	processedAt := utils.ProfitRecognitionTime(activation.ActivationDate)
	return tx.Model(&TradeActivation{}).
		Where("id = ?", activation.ID).
		Updates(map[string]interface{}{
			"profit_status":       status,
			"profit_processed_at": processedAt,
			"profit_amount":       amount,
			"profit_details":      details,
			"profit_error":        profitError,
			"cron_execution_id":   cronExecutionId,
		}).Error
}

// PendingActivationsFor lists activations for the day still awaiting an
// outcome; the processor closes those whose user holds no active investment.
func PendingActivationsFor(tx *gorm.DB, day time.Time) ([]TradeActivation, error) {
	var activations []TradeActivation
	err := tx.Where("profit_status = ? AND activation_date = ?", ProfitStatusPending, utils.DateOnly(day)).
		Order("user_id").
		Find(&activations).Error
	return activations, err
}

// FailedActivationsSince lists retryable activations for the recovery pass.
func FailedActivationsSince(tx *gorm.DB, since time.Time) ([]TradeActivation, error) {
	var activations []TradeActivation
	err := tx.Where("profit_status = ? AND activation_date >= ?", ProfitStatusFailed, utils.DateOnly(since)).
		Order("activation_date, user_id").
		Find(&activations).Error
	return activations, err
}

// ExpireStaleActivations marks still-pending activations older than the
// cutoff as expired so they can never be distributed retroactively.
func ExpireStaleActivations(tx *gorm.DB, cutoff time.Time) (int64, error) {
	res := tx.Model(&TradeActivation{}).
		Where("profit_status = ? AND status = ? AND activation_date < ?",
			ProfitStatusPending, ActivationStatusActive, utils.DateOnly(cutoff)).
		Updates(map[string]interface{}{
			"status":        ActivationStatusExpired,
			"profit_status": ProfitStatusSkipped,
		})
	return res.RowsAffected, res.Error
}
