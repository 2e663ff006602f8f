package workflow

import (
	"errors"

	"gorm.io/gorm"
)

// HasInvested answers whether a user currently holds invested principal.
// Primary check is the cached users.total_investment counter; the fallback
// scan re-derives the answer from the investments table because the counter
// can drift (a completed stake that only zeroed the counter must not leave
// the user eligible, and vice versa). Callers must not cache the result
// across a run: a stake release can flip it between cascade hops.
func (e *Engine) HasInvested(userId uint) (bool, error) {
	user, err := e.store.GetUser(userId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if user.TotalInvestment.IsPositive() {
		return true, nil
	}
	return e.store.HasActiveInvestment(userId)
}

// HighestActivePackageTier returns the highest plan tier among the user's
// active investments, -1 when there is none. Commissions never flow to an
// ancestor sitting in a lower tier than the source transaction.
func (e *Engine) HighestActivePackageTier(userId uint) (int, error) {
	return e.store.HighestActiveTier(userId)
}
