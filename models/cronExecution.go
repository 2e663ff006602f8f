package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CronExecution is the audit record wrapping one batch run. Every pass,
// scheduled or manual, writes exactly one row; the row is the substrate any
// after-the-fact reconciliation reads.
type CronExecution struct {
	ID             string          `gorm:"primaryKey;size:64" json:"id"`
	JobName        string          `gorm:"size:100;not null;index" json:"job_name"`
	StartTime      time.Time       `gorm:"not null" json:"start_time"`
	EndTime        *time.Time      `json:"end_time,omitempty"`
	Status         CronStatus      `gorm:"type:enum('Running','Completed','PartialSuccess','Failed');default:'Running';index" json:"status"`
	ProcessedCount int             `gorm:"not null;default:0" json:"processed_count"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0.00" json:"total_amount"`
	ErrorCount     int             `gorm:"not null;default:0" json:"error_count"`
	ErrorDetails   *string         `gorm:"type:text" json:"error_details,omitempty"`
	TriggeredBy    TriggeredBy     `gorm:"type:enum('Automatic','Manual','Backup','Recovery');default:'Automatic'" json:"triggered_by"`
	CreatedAt      time.Time       `json:"-"`
	UpdatedAt      time.Time       `json:"-"`
}

func (CronExecution) TableName() string {
	return "cron_executions"
}

// RunError is one itemized failure inside a batch run.
type RunError struct {
	Scope     string    `json:"scope"`
	Reference string    `json:"reference"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

func BeginCronExecution(tx *gorm.DB, jobName string, triggeredBy TriggeredBy) (*CronExecution, error) {
	execution := &CronExecution{
		ID:          uuid.NewString(),
		JobName:     jobName,
		StartTime:   time.Now().UTC(),
		Status:      CronStatusRunning,
		TotalAmount: decimal.Zero,
		TriggeredBy: triggeredBy,
	}
	if err := tx.Create(execution).Error; err != nil {
		return nil, err
	}
	return execution, nil
}

func FinishCronExecution(tx *gorm.DB, execution *CronExecution, status CronStatus, processedCount int, totalAmount decimal.Decimal, runErrors []RunError) error {
	now := time.Now().UTC()
	var details *string
	if len(runErrors) > 0 {
		b, err := json.Marshal(runErrors)
		if err == nil {
			s := string(b)
			details = &s
		}
	}
	execution.EndTime = &now
	execution.Status = status
	execution.ProcessedCount = processedCount
	execution.TotalAmount = totalAmount
	execution.ErrorCount = len(runErrors)
	execution.ErrorDetails = details
	return tx.Model(&CronExecution{}).Where("id = ?", execution.ID).
		Updates(map[string]interface{}{
			"end_time":        now,
			"status":          status,
			"processed_count": processedCount,
			"total_amount":    totalAmount,
			"error_count":     len(runErrors),
			"error_details":   details,
		}).Error
}
