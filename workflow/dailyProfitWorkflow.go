package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tradeflow-hq/trade_backend/config"
	"github.com/tradeflow-hq/trade_backend/models"
	"github.com/tradeflow-hq/trade_backend/utils"
)

var errCappingExhausted = errors.New("capping limit exhausted")

var oneHundred = decimal.NewFromInt(100)

// ProfitDetail is the provenance payload stored on the activation and the
// income row.
type ProfitDetail struct {
	InvestmentID uint            `json:"investment_id"`
	PlanID       uint            `json:"plan_id"`
	Rate         decimal.Decimal `json:"rate"`
	Principal    decimal.Decimal `json:"principal"`
}

// ProcessDailyProfits settles the given activation day: every active
// investment not yet advanced to that day earns amount*planRate/100, the
// owner's wallet is credited, one daily_profit income is written, and the
// fresh profit cascades up the sponsorship chain. A single investment
// failing is recorded and skipped; only a bad rate table fails the run.
func (e *Engine) ProcessDailyProfits(rc *RunContext, day time.Time) error {
	if len(e.cfg.LevelRates) != config.MaxCascadeLevels {
		return fmt.Errorf("level rate table has %d entries, want %d", len(e.cfg.LevelRates), config.MaxCascadeLevels)
	}
	day = utils.DateOnly(day)

	investments, err := e.store.DueInvestments(day)
	if err != nil {
		return err
	}
	for i := range investments {
		if rc.DeadlineExceeded() {
			break
		}
		e.settleInvestment(rc, &investments[i], day)
	}

	if !rc.DeadlineExceeded() {
		e.closeUninvestedActivations(rc, day)
	}
	return nil
}

func (e *Engine) settleInvestment(rc *RunContext, inv *models.Investment, day time.Time) {
	reference := fmt.Sprintf("investment:%d", inv.ID)

	user, err := e.store.GetUser(inv.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Orphaned investment; skip, never abort the batch for it.
			config.LogError(e.logger, "dailyProfitWorkflow.go", "settleInvestment", "user missing", inv.UserID, err)
			rc.AddError("daily_profit", reference, fmt.Errorf("user %d missing", inv.UserID))
			return
		}
		rc.AddError("daily_profit", reference, err)
		return
	}

	// Eligibility is owned by the activation flow; without today's opt-in
	// the investment stays untouched for this day.
	if !user.DailyProfitActivated || user.LastActivationDate == nil || !utils.SameDay(*user.LastActivationDate, day) {
		return
	}

	activation, err := e.store.ActivationFor(user.ID, day)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return
		}
		rc.AddError("daily_profit", reference, err)
		return
	}

	e.creditDailyProfit(rc, inv, activation, day)
}

// creditDailyProfit performs the atomic unit of the ROI pass: ledger entry,
// wallet credit, last-profit-date advance and activation outcome all commit
// or roll back together. The ledger insert goes first because its unique
// key is what makes a replay of the same (investment, day) a no-op.
func (e *Engine) creditDailyProfit(rc *RunContext, inv *models.Investment, activation *models.TradeActivation, day time.Time) {
	reference := fmt.Sprintf("activation:%d/investment:%d", activation.ID, inv.ID)

	plan := inv.Plan
	if plan == nil {
		var err error
		plan, err = e.store.GetPlan(inv.PlanID)
		if err != nil {
			e.failActivation(rc, activation, reference, fmt.Errorf("plan %d: %w", inv.PlanID, err))
			return
		}
	}

	// Rate always comes from the plan, never a hardcoded constant.
	dailyProfit := inv.Amount.Mul(plan.DailyRate).Div(oneHundred).Round(2)

	detail := ProfitDetail{
		InvestmentID: inv.ID,
		PlanID:       plan.ID,
		Rate:         plan.DailyRate,
		Principal:    inv.Amount,
	}
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		e.failActivation(rc, activation, reference, err)
		return
	}
	details := string(detailJSON)

	var alreadySettled bool
	err = e.store.Transaction(func(tx Store) error {
		created, err := tx.CreateIncome(&models.Income{
			UserID:     inv.UserID,
			UserIDFrom: inv.UserID,
			Type:       models.IncomeTypeDailyProfit,
			Level:      0,
			Reference:  reference,
			Amount:     dailyProfit,
			Status:     models.IncomeStatusCredited,
			Extra:      &details,
		})
		if err != nil {
			return err
		}
		if !created {
			alreadySettled = true
			return nil
		}
		credited, err := tx.CreditWallet(inv.UserID, dailyProfit)
		if err != nil {
			return err
		}
		if !credited {
			return errCappingExhausted
		}
		if err := tx.AdvanceLastProfitDate(inv.ID, day); err != nil {
			return err
		}
		return tx.RecordActivationOutcome(activation, models.ProfitStatusProcessed,
			activation.ProfitAmount.Add(dailyProfit), &details, nil, rc.Execution.ID)
	})
	if errors.Is(err, errCappingExhausted) {
		// Skipped whole, never partially credited. Leave any amount an
		// earlier investment already contributed intact.
		if activation.ProfitAmount.IsZero() {
			msg := errCappingExhausted.Error()
			if rerr := e.store.RecordActivationOutcome(activation, models.ProfitStatusSkipped,
				decimal.Zero, nil, &msg, rc.Execution.ID); rerr != nil {
				config.LogError(e.logger, "dailyProfitWorkflow.go", "creditDailyProfit", "record skipped", activation.ID, rerr)
			}
		}
		return
	}
	if err != nil {
		e.failActivation(rc, activation, reference, err)
		return
	}
	if !alreadySettled {
		rc.AddProcessed(dailyProfit)
	}

	// Cascade runs on the already-settled path too: a crash between the
	// committed profit transaction and the cascade must not lose the day's
	// commissions, and the commission income keys make re-walking a
	// fully-delivered chain a no-op.
	e.Cascade(rc, inv.UserID, dailyProfit, plan.Tier, reference)
}

func (e *Engine) failActivation(rc *RunContext, activation *models.TradeActivation, reference string, cause error) {
	config.LogError(e.logger, "dailyProfitWorkflow.go", "failActivation", reference, activation.UserID, cause)
	rc.AddError("daily_profit", reference, cause)
	msg := cause.Error()
	if err := e.store.RecordActivationOutcome(activation, models.ProfitStatusFailed,
		activation.ProfitAmount, nil, &msg, rc.Execution.ID); err != nil {
		config.LogError(e.logger, "dailyProfitWorkflow.go", "failActivation", "record failure", activation.ID, err)
	}
}

// closeUninvestedActivations moves the day's still-pending activations to
// Skipped when their user holds no active investment, so no activation is
// left dangling in Pending after the pass.
func (e *Engine) closeUninvestedActivations(rc *RunContext, day time.Time) {
	pending, err := e.store.PendingActivationsFor(day)
	if err != nil {
		rc.AddError("daily_profit", "pending-sweep", err)
		return
	}
	for i := range pending {
		activation := &pending[i]
		invested, err := e.HasInvested(activation.UserID)
		if err != nil {
			rc.AddError("daily_profit", fmt.Sprintf("activation:%d", activation.ID), err)
			continue
		}
		if invested {
			continue
		}
		msg := "no active investment"
		if err := e.store.RecordActivationOutcome(activation, models.ProfitStatusSkipped,
			decimal.Zero, nil, &msg, rc.Execution.ID); err != nil {
			rc.AddError("daily_profit", fmt.Sprintf("activation:%d", activation.ID), err)
		}
	}
}

// RetryFailedActivations re-runs retryable activations through the same
// settlement path the daily pass uses. Replays are safe: the ledger unique
// key turns anything already credited into a no-op.
func (e *Engine) RetryFailedActivations(rc *RunContext, since time.Time) error {
	activations, err := e.store.FailedActivationsSince(since)
	if err != nil {
		return err
	}
	for i := range activations {
		if rc.DeadlineExceeded() {
			break
		}
		activation := &activations[i]
		day := utils.DateOnly(activation.ActivationDate)

		investments, err := e.store.DueInvestmentsForUser(activation.UserID, day)
		if err != nil {
			rc.AddError("profit_retry", fmt.Sprintf("activation:%d", activation.ID), err)
			continue
		}
		if len(investments) == 0 {
			msg := "no due investment at retry"
			if err := e.store.RecordActivationOutcome(activation, models.ProfitStatusSkipped,
				activation.ProfitAmount, nil, &msg, rc.Execution.ID); err != nil {
				rc.AddError("profit_retry", fmt.Sprintf("activation:%d", activation.ID), err)
			}
			continue
		}
		for j := range investments {
			// Re-fetch per investment: RecordActivationOutcome accumulates
			// into ProfitAmount, so each settle must read the amount the
			// previous one just committed.
			current, err := e.store.ActivationFor(activation.UserID, day)
			if err != nil {
				rc.AddError("profit_retry", fmt.Sprintf("activation:%d", activation.ID), err)
				break
			}
			e.creditDailyProfit(rc, &investments[j], current, day)
		}
	}
	return nil
}

// ResetActivations starts a new day: clears every user's opt-in flag and
// expires activations that were never settled and are now too old to be.
func (e *Engine) ResetActivations(rc *RunContext) error {
	resetCount, err := e.store.ResetDailyProfitActivated()
	if err != nil {
		return err
	}
	expired, err := e.store.ExpireStaleActivations(utils.DateOnly(e.now()).AddDate(0, 0, -1))
	if err != nil {
		return err
	}
	rc.processed = int(resetCount)
	e.logger.WithFields(map[string]interface{}{
		"module":  "dailyProfitWorkflow.go",
		"reset":   resetCount,
		"expired": expired,
	}).Info("activation reset pass finished")
	return nil
}
