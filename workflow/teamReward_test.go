package workflow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeflow-hq/trade_backend/models"
)

func seedRewardTiers(t *testing.T, s *memStore) {
	s.tiers = []models.TeamRewardTier{
		{ID: 1, Name: "Starter", DepositThreshold: dec(t, "5000"), HoldingDays: 7, RewardAmount: dec(t, "100")},
		{ID: 2, Name: "Builder", DepositThreshold: dec(t, "25000"), HoldingDays: 14, RewardAmount: dec(t, "750")},
	}
}

// Two referral levels below user 1 holding 6000 in active deposits, which
// clears the first tier only.
func seedTeam(s *memStore) {
	seedPlan(s, 1, 1, "0.8")
	seedUser(s, 1, nil, "1000", "100000")
	seedInvestment(s, 1, 1, 1, "1000")
	seedUser(s, 2, ref(1), "4000", "100000")
	seedInvestment(s, 2, 2, 1, "4000")
	seedUser(s, 3, ref(2), "2000", "100000")
	seedInvestment(s, 3, 3, 1, "2000")
	// Level 3 relative to user 1; outside the 2-level window.
	seedUser(s, 4, ref(3), "100", "100000")
	seedInvestment(s, 4, 4, 1, "100")
}

func TestOpenTeamRewards_OpensCrossedTiersOnly(t *testing.T) {
	s := newMemStore()
	seedRewardTiers(t, s)
	seedTeam(s)
	now := time.Date(2026, 3, 10, 1, 30, 0, 0, time.UTC)

	svc := newTestService(t, s)
	svc.Engine.now = func() time.Time { return now }

	summary, err := svc.RunJob(JobTeamReward, models.TriggeredByAutomatic)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ProcessedCount)

	require.Len(t, s.rewards, 1)
	for _, r := range s.rewards {
		assert.Equal(t, uint(1), r.UserID)
		assert.Equal(t, uint(1), r.TierID)
		assert.Equal(t, models.TeamRewardStatusPending, r.Status)
		assert.True(t, r.Amount.Equal(dec(t, "100")))
		assert.True(t, r.TeamDeposit.Equal(dec(t, "6000")), "users 2 and 3 only, got %s", r.TeamDeposit)
		assert.Equal(t, time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC), r.MaturesAt, "holding period from the opening day")
	}
	assert.Empty(t, s.incomes, "opening credits nothing")
}

func TestOpenTeamRewards_ReplayOpensNothingNew(t *testing.T) {
	s := newMemStore()
	seedRewardTiers(t, s)
	seedTeam(s)

	svc := newTestService(t, s)
	_, err := svc.RunJob(JobTeamReward, models.TriggeredByAutomatic)
	require.NoError(t, err)

	summary, err := svc.RunJob(JobTeamReward, models.TriggeredByBackup)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ProcessedCount)
	assert.Len(t, s.rewards, 1)
}

func TestOpenTeamRewards_EmptyTierTableFailsRun(t *testing.T) {
	s := newMemStore()
	seedTeam(s)

	svc := newTestService(t, s)
	summary, err := svc.RunJob(JobTeamReward, models.TriggeredByAutomatic)
	require.Error(t, err)
	assert.Equal(t, models.CronStatusFailed, summary.Status)
}

func TestMatureTeamRewards_CreditsOnceAfterHolding(t *testing.T) {
	s := newMemStore()
	seedRewardTiers(t, s)
	seedTeam(s)
	opened := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	s.rewards[1] = models.TeamReward{
		ID: 1, UserID: 1, TierID: 1,
		Amount: dec(t, "100"), TeamDeposit: dec(t, "6000"),
		MaturesAt: opened.AddDate(0, 0, 7),
		Status:    models.TeamRewardStatusPending,
	}

	svc := newTestService(t, s)

	// Before maturity: nothing settles.
	svc.Engine.now = func() time.Time { return opened.AddDate(0, 0, 3) }
	summary, err := svc.RunJob(JobTeamRewardSweep, models.TriggeredByAutomatic)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ProcessedCount)
	assert.Equal(t, models.TeamRewardStatusPending, s.rewards[1].Status)

	// At maturity: credited exactly once even when the sweep replays.
	svc.Engine.now = func() time.Time { return opened.AddDate(0, 0, 7) }
	summary, err = svc.RunJob(JobTeamRewardSweep, models.TriggeredByAutomatic)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ProcessedCount)
	assert.True(t, summary.TotalAmount.Equal(dec(t, "100")))

	summary, err = svc.RunJob(JobTeamRewardSweep, models.TriggeredByBackup)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ProcessedCount)

	assert.Equal(t, models.TeamRewardStatusCredited, s.rewards[1].Status)
	assert.Len(t, s.incomesOf(1, models.IncomeTypeTeamReward), 1)
	assert.True(t, s.users[1].Wallet.Equal(dec(t, "100")))
}

// A user who released their stake before maturity forfeits the reward.
func TestMatureTeamRewards_ReverifiesEligibility(t *testing.T) {
	s := newMemStore()
	seedRewardTiers(t, s)
	seedTeam(s)
	u := s.users[1]
	u.TotalInvestment = decimal.Zero
	s.users[1] = u
	delete(s.investments, 1)

	matured := time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC)
	s.rewards[1] = models.TeamReward{
		ID: 1, UserID: 1, TierID: 1,
		Amount: dec(t, "100"), TeamDeposit: dec(t, "6000"),
		MaturesAt: matured, Status: models.TeamRewardStatusPending,
	}

	svc := newTestService(t, s)
	svc.Engine.now = func() time.Time { return matured }

	summary, err := svc.RunJob(JobTeamRewardSweep, models.TriggeredByAutomatic)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ProcessedCount)
	assert.Equal(t, models.TeamRewardStatusCancelled, s.rewards[1].Status)
	assert.True(t, s.users[1].Wallet.IsZero())
	assert.Empty(t, s.incomes)
}

// An exhausted capping limit leaves the reward pending for a later sweep.
func TestMatureTeamRewards_CappingLeavesPending(t *testing.T) {
	s := newMemStore()
	seedRewardTiers(t, s)
	seedTeam(s)
	u := s.users[1]
	u.CappingLimit = dec(t, "20")
	s.users[1] = u

	matured := time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC)
	s.rewards[1] = models.TeamReward{
		ID: 1, UserID: 1, TierID: 1,
		Amount: dec(t, "100"), TeamDeposit: dec(t, "6000"),
		MaturesAt: matured, Status: models.TeamRewardStatusPending,
	}

	svc := newTestService(t, s)
	svc.Engine.now = func() time.Time { return matured }

	summary, err := svc.RunJob(JobTeamRewardSweep, models.TriggeredByAutomatic)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ProcessedCount)
	assert.Equal(t, models.TeamRewardStatusPending, s.rewards[1].Status)
	assert.True(t, s.users[1].Wallet.IsZero())
	assert.Empty(t, s.incomes, "rolled back with the settle")
}
