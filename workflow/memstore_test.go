package workflow

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tradeflow-hq/trade_backend/models"
	"github.com/tradeflow-hq/trade_backend/utils"
)

// memStore is a DB-free Store used to validate engine semantics without
// MySQL. Transaction takes a snapshot and restores it on error, mirroring
// the rollback behavior the gorm store gets for free.
type memStore struct {
	users        map[uint]models.User
	plans        map[uint]models.InvestmentPlan
	investments  map[uint]models.Investment
	activations  map[uint]models.TradeActivation
	incomes      []models.Income
	incomeKeys   map[string]bool
	ranks        []models.Rank
	tiers        []models.TeamRewardTier
	rewards      map[uint]models.TeamReward
	executions   map[string]models.CronExecution
	jobLocks     map[string]bool
	nextIncomeID uint
	nextRewardID uint
	nextExecID   int
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[uint]models.User{},
		plans:       map[uint]models.InvestmentPlan{},
		investments: map[uint]models.Investment{},
		activations: map[uint]models.TradeActivation{},
		incomeKeys:  map[string]bool{},
		rewards:     map[uint]models.TeamReward{},
		executions:  map[string]models.CronExecution{},
		jobLocks:    map[string]bool{},
	}
}

func (s *memStore) clone() *memStore {
	c := newMemStore()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.plans {
		c.plans[k] = v
	}
	for k, v := range s.investments {
		c.investments[k] = v
	}
	for k, v := range s.activations {
		c.activations[k] = v
	}
	c.incomes = append([]models.Income(nil), s.incomes...)
	for k, v := range s.incomeKeys {
		c.incomeKeys[k] = v
	}
	c.ranks = append([]models.Rank(nil), s.ranks...)
	c.tiers = append([]models.TeamRewardTier(nil), s.tiers...)
	for k, v := range s.rewards {
		c.rewards[k] = v
	}
	for k, v := range s.executions {
		c.executions[k] = v
	}
	for k, v := range s.jobLocks {
		c.jobLocks[k] = v
	}
	c.nextIncomeID = s.nextIncomeID
	c.nextRewardID = s.nextRewardID
	c.nextExecID = s.nextExecID
	return c
}

func (s *memStore) Transaction(fn func(Store) error) error {
	snap := s.clone()
	if err := fn(s); err != nil {
		*s = *snap
		return err
	}
	return nil
}

func (s *memStore) GetUser(userId uint) (*models.User, error) {
	u, ok := s.users[userId]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (s *memStore) DirectReferralCount(userId uint) (int64, error) {
	var n int64
	for _, u := range s.users {
		if u.ReferrerId != nil && *u.ReferrerId == userId {
			n++
		}
	}
	return n, nil
}

func (s *memStore) ActiveDirectReferralCount(userId uint) (int64, error) {
	var n int64
	for _, u := range s.users {
		if u.ReferrerId != nil && *u.ReferrerId == userId && u.TotalInvestment.IsPositive() {
			n++
		}
	}
	return n, nil
}

func (s *memStore) ListUserIds() ([]uint, error) {
	var ids []uint
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *memStore) CreditWallet(userId uint, amount decimal.Decimal) (bool, error) {
	u, ok := s.users[userId]
	if !ok || amount.IsNegative() {
		return false, nil
	}
	if u.CappingLimit.LessThan(amount) {
		return false, nil
	}
	u.Wallet = u.Wallet.Add(amount)
	u.CappingLimit = u.CappingLimit.Sub(amount)
	s.users[userId] = u
	return true, nil
}

func (s *memStore) UpdateUserRank(userId uint, rank string, booster decimal.Decimal, dailyLimitView decimal.Decimal) error {
	u, ok := s.users[userId]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.Rank = rank
	u.TradeBooster = booster
	u.DailyLimitView = dailyLimitView
	s.users[userId] = u
	return nil
}

func (s *memStore) ResetDailyProfitActivated() (int64, error) {
	var n int64
	for id, u := range s.users {
		if u.DailyProfitActivated {
			u.DailyProfitActivated = false
			s.users[id] = u
			n++
		}
	}
	return n, nil
}

func (s *memStore) HasActiveInvestment(userId uint) (bool, error) {
	for _, inv := range s.investments {
		if inv.UserID == userId && inv.Status == models.InvestmentStatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) HighestActiveTier(userId uint) (int, error) {
	tier := -1
	for _, inv := range s.investments {
		if inv.UserID != userId || inv.Status != models.InvestmentStatusActive {
			continue
		}
		if plan, ok := s.plans[inv.PlanID]; ok && plan.Tier > tier {
			tier = plan.Tier
		}
	}
	return tier, nil
}

func (s *memStore) GetPlan(planId uint) (*models.InvestmentPlan, error) {
	p, ok := s.plans[planId]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (s *memStore) dueFilter(inv models.Investment, day time.Time) bool {
	if inv.Status != models.InvestmentStatusActive {
		return false
	}
	return inv.LastProfitDate == nil || inv.LastProfitDate.Before(day)
}

func (s *memStore) DueInvestments(day time.Time) ([]models.Investment, error) {
	var out []models.Investment
	for _, inv := range s.investments {
		if s.dueFilter(inv, day) {
			if plan, ok := s.plans[inv.PlanID]; ok {
				cp := plan
				inv.Plan = &cp
			}
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) DueInvestmentsForUser(userId uint, day time.Time) ([]models.Investment, error) {
	all, _ := s.DueInvestments(day)
	var out []models.Investment
	for _, inv := range all {
		if inv.UserID == userId {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (s *memStore) AdvanceLastProfitDate(investmentId uint, day time.Time) error {
	inv, ok := s.investments[investmentId]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if inv.LastProfitDate == nil || inv.LastProfitDate.Before(day) {
		d := day
		inv.LastProfitDate = &d
		s.investments[investmentId] = inv
	}
	return nil
}

func (s *memStore) ActivationFor(userId uint, day time.Time) (*models.TradeActivation, error) {
	for _, a := range s.activations {
		if a.UserID == userId && utils.SameDay(a.ActivationDate, day) {
			cp := a
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *memStore) PendingActivationsFor(day time.Time) ([]models.TradeActivation, error) {
	var out []models.TradeActivation
	for _, a := range s.activations {
		if a.ProfitStatus == models.ProfitStatusPending && utils.SameDay(a.ActivationDate, day) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *memStore) RecordActivationOutcome(activation *models.TradeActivation, status models.ProfitStatus, amount decimal.Decimal, details *string, profitError *string, cronExecutionId string) error {
	a, ok := s.activations[activation.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	processedAt := utils.ProfitRecognitionTime(a.ActivationDate)
	a.ProfitStatus = status
	a.ProfitProcessedAt = &processedAt
	a.ProfitAmount = amount
	a.ProfitDetails = details
	a.ProfitError = profitError
	a.CronExecutionID = &cronExecutionId
	s.activations[activation.ID] = a
	return nil
}

func (s *memStore) FailedActivationsSince(since time.Time) ([]models.TradeActivation, error) {
	var out []models.TradeActivation
	for _, a := range s.activations {
		if a.ProfitStatus == models.ProfitStatusFailed && !a.ActivationDate.Before(utils.DateOnly(since)) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) ExpireStaleActivations(cutoff time.Time) (int64, error) {
	var n int64
	for id, a := range s.activations {
		if a.ProfitStatus == models.ProfitStatusPending && a.Status == models.ActivationStatusActive && a.ActivationDate.Before(utils.DateOnly(cutoff)) {
			a.Status = models.ActivationStatusExpired
			a.ProfitStatus = models.ProfitStatusSkipped
			s.activations[id] = a
			n++
		}
	}
	return n, nil
}

func incomeKey(income *models.Income) string {
	return fmt.Sprintf("%d|%s|%d|%s", income.UserIDFrom, income.Type, income.Level, income.Reference)
}

func (s *memStore) CreateIncome(income *models.Income) (bool, error) {
	key := incomeKey(income)
	if s.incomeKeys[key] {
		return false, nil
	}
	s.nextIncomeID++
	income.ID = s.nextIncomeID
	s.incomeKeys[key] = true
	s.incomes = append(s.incomes, *income)
	return true, nil
}

func (s *memStore) ListRanks() ([]models.Rank, error) {
	out := append([]models.Rank(nil), s.ranks...)
	sort.Slice(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}

func (s *memStore) ListTeamRewardTiers() ([]models.TeamRewardTier, error) {
	out := append([]models.TeamRewardTier(nil), s.tiers...)
	sort.Slice(out, func(i, j int) bool { return out[i].DepositThreshold.LessThan(out[j].DepositThreshold) })
	return out, nil
}

func (s *memStore) TwoLevelTeamDeposit(userId uint) (decimal.Decimal, error) {
	level1 := map[uint]bool{}
	for id, u := range s.users {
		if u.ReferrerId != nil && *u.ReferrerId == userId {
			level1[id] = true
		}
	}
	team := map[uint]bool{}
	for id, u := range s.users {
		if level1[id] {
			team[id] = true
		} else if u.ReferrerId != nil && level1[*u.ReferrerId] {
			team[id] = true
		}
	}
	total := decimal.Zero
	for _, inv := range s.investments {
		if inv.Status == models.InvestmentStatusActive && team[inv.UserID] {
			total = total.Add(inv.Amount)
		}
	}
	return total, nil
}

func (s *memStore) OpenTeamReward(reward *models.TeamReward) (bool, error) {
	for _, r := range s.rewards {
		if r.UserID == reward.UserID && r.TierID == reward.TierID {
			return false, nil
		}
	}
	s.nextRewardID++
	reward.ID = s.nextRewardID
	s.rewards[reward.ID] = *reward
	return true, nil
}

func (s *memStore) DueTeamRewards(now time.Time) ([]models.TeamReward, error) {
	var out []models.TeamReward
	for _, r := range s.rewards {
		if r.Status == models.TeamRewardStatusPending && !r.MaturesAt.After(now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) SettleTeamReward(rewardId uint, status models.TeamRewardStatus, cronExecutionId string) (bool, error) {
	r, ok := s.rewards[rewardId]
	if !ok || r.Status != models.TeamRewardStatusPending {
		return false, nil
	}
	r.Status = status
	r.CronExecutionID = &cronExecutionId
	s.rewards[rewardId] = r
	return true, nil
}

func (s *memStore) BeginCronExecution(jobName string, triggeredBy models.TriggeredBy) (*models.CronExecution, error) {
	s.nextExecID++
	execution := models.CronExecution{
		ID:          fmt.Sprintf("exec-%d", s.nextExecID),
		JobName:     jobName,
		StartTime:   time.Now().UTC(),
		Status:      models.CronStatusRunning,
		TotalAmount: decimal.Zero,
		TriggeredBy: triggeredBy,
	}
	s.executions[execution.ID] = execution
	return &execution, nil
}

func (s *memStore) FinishCronExecution(execution *models.CronExecution, status models.CronStatus, processedCount int, totalAmount decimal.Decimal, runErrors []models.RunError) error {
	e, ok := s.executions[execution.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now().UTC()
	e.EndTime = &now
	e.Status = status
	e.ProcessedCount = processedCount
	e.TotalAmount = totalAmount
	e.ErrorCount = len(runErrors)
	s.executions[execution.ID] = e
	execution.Status = status
	return nil
}

func (s *memStore) WithJobLock(name string, fn func() error) (bool, error) {
	if s.jobLocks[name] {
		return false, fn()
	}
	s.jobLocks[name] = true
	defer delete(s.jobLocks, name)
	return true, fn()
}

// incomesOf filters the ledger by recipient and type.
func (s *memStore) incomesOf(userId uint, incomeType models.IncomeType) []models.Income {
	var out []models.Income
	for _, income := range s.incomes {
		if income.UserID == userId && income.Type == incomeType {
			out = append(out, income)
		}
	}
	return out
}
