package workflow

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tradeflow-hq/trade_backend/config"
	"github.com/tradeflow-hq/trade_backend/models"
)

// Job names. Each maps to one scheduled pass and one manual trigger.
const (
	JobDailyProfit     = "daily-profit"
	JobProfitRetry     = "profit-retry"
	JobActivationReset = "activation-reset"
	JobRank            = "rank"
	JobTeamReward      = "team-reward"
	JobTeamRewardSweep = "team-reward-sweep"
)

// retryWindowDays bounds how far back the recovery pass looks for failed
// activations.
const retryWindowDays = 3

// Engine owns the distribution passes. It is constructed once in main with
// its collaborators injected; nothing registers itself at package load.
type Engine struct {
	store  Store
	logger *logrus.Logger
	cfg    *config.CommissionConfig
	now    func() time.Time
}

func NewEngine(store Store, logger *logrus.Logger, cfg *config.CommissionConfig) *Engine {
	return &Engine{
		store:  store,
		logger: logger,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Service bundles the engine with its run wrapper; both the scheduler and
// the manual trigger endpoints go through RunJob so every invocation writes
// exactly one CronExecution.
type Service struct {
	Engine *Engine
	Runner *Runner
}

func NewService(engine *Engine, runner *Runner) *Service {
	return &Service{Engine: engine, Runner: runner}
}

func (s *Service) RunJob(jobName string, triggeredBy models.TriggeredBy) (*RunSummary, error) {
	var fn func(*RunContext) error
	switch jobName {
	case JobDailyProfit:
		fn = func(rc *RunContext) error {
			return s.Engine.ProcessDailyProfits(rc, s.Engine.now())
		}
	case JobProfitRetry:
		fn = func(rc *RunContext) error {
			since := s.Engine.now().AddDate(0, 0, -retryWindowDays)
			return s.Engine.RetryFailedActivations(rc, since)
		}
	case JobActivationReset:
		fn = s.Engine.ResetActivations
	case JobRank:
		fn = s.Engine.EvaluateRanks
	case JobTeamReward:
		fn = s.Engine.OpenTeamRewards
	case JobTeamRewardSweep:
		fn = s.Engine.MatureTeamRewards
	default:
		return nil, fmt.Errorf("unknown job %q", jobName)
	}
	return s.Runner.Run(jobName, triggeredBy, fn)
}

func KnownJobs() []string {
	return []string{
		JobDailyProfit,
		JobProfitRetry,
		JobActivationReset,
		JobRank,
		JobTeamReward,
		JobTeamRewardSweep,
	}
}
