package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeflow-hq/trade_backend/models"
)

func TestHasInvested(t *testing.T) {
	s := newMemStore()
	seedPlan(s, 1, 1, "0.8")

	seedUser(s, 1, nil, "1000", "0") // cached total
	seedUser(s, 2, nil, "0", "0")    // total not yet rolled up, active row exists
	seedInvestment(s, 1, 2, 1, "500")
	seedUser(s, 3, nil, "0", "0") // only a cancelled investment
	seedInvestment(s, 2, 3, 1, "500")
	inv := s.investments[2]
	inv.Status = models.InvestmentStatusCancelled
	s.investments[2] = inv

	e := newTestEngine(t, s)

	for _, tc := range []struct {
		userId uint
		want   bool
	}{
		{1, true},
		{2, true},
		{3, false},
	} {
		got, err := e.HasInvested(tc.userId)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "user %d", tc.userId)
	}

	// A vanished user is simply ineligible, not an error.
	got, err := e.HasInvested(99)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestHighestActivePackageTier(t *testing.T) {
	s := newMemStore()
	seedPlan(s, 1, 1, "0.8")
	seedPlan(s, 2, 3, "1.2")

	seedUser(s, 1, nil, "1500", "0")
	seedInvestment(s, 1, 1, 1, "500")
	seedInvestment(s, 2, 1, 2, "1000")
	inv := s.investments[2]
	inv.Status = models.InvestmentStatusCompleted
	s.investments[2] = inv

	seedUser(s, 2, nil, "0", "0")

	e := newTestEngine(t, s)

	tier, err := e.HighestActivePackageTier(1)
	require.NoError(t, err)
	assert.Equal(t, 1, tier, "completed investments do not carry tier")

	tier, err = e.HighestActivePackageTier(2)
	require.NoError(t, err)
	assert.Equal(t, -1, tier)
}
