package workflow

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tradeflow-hq/trade_backend/models"
)

// Store is the persistence surface the engine runs against. The production
// implementation wraps gorm; tests run the same engine against an in-memory
// fake.
type Store interface {
	Transaction(fn func(Store) error) error

	GetUser(userId uint) (*models.User, error)
	DirectReferralCount(userId uint) (int64, error)
	ActiveDirectReferralCount(userId uint) (int64, error)
	ListUserIds() ([]uint, error)
	CreditWallet(userId uint, amount decimal.Decimal) (bool, error)
	UpdateUserRank(userId uint, rank string, booster decimal.Decimal, dailyLimitView decimal.Decimal) error
	ResetDailyProfitActivated() (int64, error)

	HasActiveInvestment(userId uint) (bool, error)
	HighestActiveTier(userId uint) (int, error)
	GetPlan(planId uint) (*models.InvestmentPlan, error)
	DueInvestments(day time.Time) ([]models.Investment, error)
	DueInvestmentsForUser(userId uint, day time.Time) ([]models.Investment, error)
	AdvanceLastProfitDate(investmentId uint, day time.Time) error

	ActivationFor(userId uint, day time.Time) (*models.TradeActivation, error)
	PendingActivationsFor(day time.Time) ([]models.TradeActivation, error)
	RecordActivationOutcome(activation *models.TradeActivation, status models.ProfitStatus, amount decimal.Decimal, details *string, profitError *string, cronExecutionId string) error
	FailedActivationsSince(since time.Time) ([]models.TradeActivation, error)
	ExpireStaleActivations(cutoff time.Time) (int64, error)

	CreateIncome(income *models.Income) (bool, error)

	ListRanks() ([]models.Rank, error)

	ListTeamRewardTiers() ([]models.TeamRewardTier, error)
	TwoLevelTeamDeposit(userId uint) (decimal.Decimal, error)
	OpenTeamReward(reward *models.TeamReward) (bool, error)
	DueTeamRewards(now time.Time) ([]models.TeamReward, error)
	SettleTeamReward(rewardId uint, status models.TeamRewardStatus, cronExecutionId string) (bool, error)

	BeginCronExecution(jobName string, triggeredBy models.TriggeredBy) (*models.CronExecution, error)
	FinishCronExecution(execution *models.CronExecution, status models.CronStatus, processedCount int, totalAmount decimal.Decimal, runErrors []models.RunError) error

	// WithJobLock runs fn while holding the named server-side lock. The
	// lock is best-effort: fn runs even when it cannot be obtained, and
	// locked reports whether it was held. Used to serialize batch passes
	// against each other when Redis is unavailable.
	WithJobLock(name string, fn func() error) (locked bool, err error)
}

// GormStore is the MySQL-backed Store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Transaction(fn func(Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) GetUser(userId uint) (*models.User, error) {
	return models.GetUserById(s.db, userId)
}

func (s *GormStore) DirectReferralCount(userId uint) (int64, error) {
	return models.DirectReferralCount(s.db, userId)
}

func (s *GormStore) ActiveDirectReferralCount(userId uint) (int64, error) {
	return models.ActiveDirectReferralCount(s.db, userId)
}

func (s *GormStore) ListUserIds() ([]uint, error) {
	return models.ListUserIds(s.db)
}

func (s *GormStore) CreditWallet(userId uint, amount decimal.Decimal) (bool, error) {
	return models.CreditWallet(s.db, userId, amount)
}

func (s *GormStore) UpdateUserRank(userId uint, rank string, booster decimal.Decimal, dailyLimitView decimal.Decimal) error {
	return models.UpdateUserRank(s.db, userId, rank, booster, dailyLimitView)
}

func (s *GormStore) ResetDailyProfitActivated() (int64, error) {
	return models.ResetDailyProfitActivated(s.db)
}

func (s *GormStore) HasActiveInvestment(userId uint) (bool, error) {
	return models.HasActiveInvestment(s.db, userId)
}

func (s *GormStore) HighestActiveTier(userId uint) (int, error) {
	return models.HighestActiveTier(s.db, userId)
}

func (s *GormStore) GetPlan(planId uint) (*models.InvestmentPlan, error) {
	return models.GetPlanById(s.db, planId)
}

func (s *GormStore) DueInvestments(day time.Time) ([]models.Investment, error) {
	return models.DueInvestments(s.db, day)
}

func (s *GormStore) DueInvestmentsForUser(userId uint, day time.Time) ([]models.Investment, error) {
	return models.DueInvestmentsForUser(s.db, userId, day)
}

func (s *GormStore) AdvanceLastProfitDate(investmentId uint, day time.Time) error {
	return models.AdvanceLastProfitDate(s.db, investmentId, day)
}

func (s *GormStore) ActivationFor(userId uint, day time.Time) (*models.TradeActivation, error) {
	return models.GetActivationFor(s.db, userId, day)
}

func (s *GormStore) PendingActivationsFor(day time.Time) ([]models.TradeActivation, error) {
	return models.PendingActivationsFor(s.db, day)
}

func (s *GormStore) RecordActivationOutcome(activation *models.TradeActivation, status models.ProfitStatus, amount decimal.Decimal, details *string, profitError *string, cronExecutionId string) error {
	return models.RecordActivationOutcome(s.db, activation, status, amount, details, profitError, cronExecutionId)
}

func (s *GormStore) FailedActivationsSince(since time.Time) ([]models.TradeActivation, error) {
	return models.FailedActivationsSince(s.db, since)
}

func (s *GormStore) ExpireStaleActivations(cutoff time.Time) (int64, error) {
	return models.ExpireStaleActivations(s.db, cutoff)
}

func (s *GormStore) CreateIncome(income *models.Income) (bool, error) {
	return models.CreateIncome(s.db, income)
}

func (s *GormStore) ListRanks() ([]models.Rank, error) {
	return models.ListRanks(s.db)
}

func (s *GormStore) ListTeamRewardTiers() ([]models.TeamRewardTier, error) {
	return models.ListTeamRewardTiers(s.db)
}

func (s *GormStore) TwoLevelTeamDeposit(userId uint) (decimal.Decimal, error) {
	return models.TwoLevelTeamDeposit(s.db, userId)
}

func (s *GormStore) OpenTeamReward(reward *models.TeamReward) (bool, error) {
	return models.OpenTeamReward(s.db, reward)
}

func (s *GormStore) DueTeamRewards(now time.Time) ([]models.TeamReward, error) {
	return models.DueTeamRewards(s.db, now)
}

func (s *GormStore) SettleTeamReward(rewardId uint, status models.TeamRewardStatus, cronExecutionId string) (bool, error) {
	return models.SettleTeamReward(s.db, rewardId, status, cronExecutionId)
}

func (s *GormStore) BeginCronExecution(jobName string, triggeredBy models.TriggeredBy) (*models.CronExecution, error) {
	return models.BeginCronExecution(s.db, jobName, triggeredBy)
}

func (s *GormStore) FinishCronExecution(execution *models.CronExecution, status models.CronStatus, processedCount int, totalAmount decimal.Decimal, runErrors []models.RunError) error {
	return models.FinishCronExecution(s.db, execution, status, processedCount, totalAmount, runErrors)
}

// WithJobLock pins one connection for the whole pass: GET_LOCK and
// RELEASE_LOCK are connection-scoped, so acquiring and releasing through
// the pool would land on different connections and guard nothing.
func (s *GormStore) WithJobLock(name string, fn func() error) (bool, error) {
	var locked, ran bool
	var fnErr error
	_ = s.db.Connection(func(conn *gorm.DB) error {
		var got int
		if err := conn.Raw("SELECT GET_LOCK(?, 0)", name).Scan(&got).Error; err == nil && got == 1 {
			locked = true
			defer conn.Exec("SELECT RELEASE_LOCK(?)", name)
		}
		ran = true
		fnErr = fn()
		return nil
	})
	if !ran {
		// Could not pin a connection at all; the pass still runs, the
		// income unique keys carry correctness.
		fnErr = fn()
	}
	return locked, fnErr
}
