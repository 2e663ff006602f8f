package models

type InvestmentStatus string

const (
	InvestmentStatusActive    InvestmentStatus = "Active"
	InvestmentStatusCompleted InvestmentStatus = "Completed"
	InvestmentStatusCancelled InvestmentStatus = "Cancelled"
)

type ActivationStatus string

const (
	ActivationStatusActive    ActivationStatus = "Active"
	ActivationStatusExpired   ActivationStatus = "Expired"
	ActivationStatusCancelled ActivationStatus = "Cancelled"
)

// ProfitStatus is the per-activation distribution lifecycle.
// Processed and Skipped are terminal; Failed is retryable.
type ProfitStatus string

const (
	ProfitStatusPending   ProfitStatus = "Pending"
	ProfitStatusProcessed ProfitStatus = "Processed"
	ProfitStatusFailed    ProfitStatus = "Failed"
	ProfitStatusSkipped   ProfitStatus = "Skipped"
)

type IncomeType string

const (
	IncomeTypeDailyProfit   IncomeType = "daily_profit"
	IncomeTypeLevelRoi      IncomeType = "level_roi_income"
	IncomeTypeReferralBonus IncomeType = "referral_bonus"
	IncomeTypeMatrix        IncomeType = "matrix"
	IncomeTypeTeamReward    IncomeType = "team_reward"
	IncomeTypeProvision     IncomeType = "provision"
)

type IncomeStatus string

const (
	IncomeStatusPending   IncomeStatus = "Pending"
	IncomeStatusCredited  IncomeStatus = "Credited"
	IncomeStatusCancelled IncomeStatus = "Cancelled"
)

type CronStatus string

const (
	CronStatusRunning        CronStatus = "Running"
	CronStatusCompleted      CronStatus = "Completed"
	CronStatusPartialSuccess CronStatus = "PartialSuccess"
	CronStatusFailed         CronStatus = "Failed"
)

type TriggeredBy string

const (
	TriggeredByAutomatic TriggeredBy = "Automatic"
	TriggeredByManual    TriggeredBy = "Manual"
	TriggeredByBackup    TriggeredBy = "Backup"
	TriggeredByRecovery  TriggeredBy = "Recovery"
)

type TeamRewardStatus string

const (
	TeamRewardStatusPending   TeamRewardStatus = "Pending"
	TeamRewardStatusCredited  TeamRewardStatus = "Credited"
	TeamRewardStatusCancelled TeamRewardStatus = "Cancelled"
)
