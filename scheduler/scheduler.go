package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/tradeflow-hq/trade_backend/models"
	"github.com/tradeflow-hq/trade_backend/workflow"
)

// Scheduler owns the time-triggered batch passes. It is constructed and
// started by the process entry point with the service injected; nothing is
// registered at package load time, so startup order stays explicit.
type Scheduler struct {
	Cron    *cron.Cron
	Service *workflow.Service
	Logger  *logrus.Logger
}

func NewScheduler(service *workflow.Service, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		Cron:    cron.New(cron.WithLocation(time.UTC)),
		Service: service,
		Logger:  logger,
	}
}

// RegisterAll wires the daily passes. Ordering matters: the ROI pass
// settles the activation day late in that same day; the reset pass opens
// the next day at midnight; rank and team-reward passes run on the later
// offsets so they read totals the ROI/commission passes have stabilized.
func (s *Scheduler) RegisterAll() error {
	jobs := []struct {
		spec string
		name string
	}{
		{"30 23 * * *", workflow.JobDailyProfit},
		{"0 0 * * *", workflow.JobActivationReset},
		{"0 1 * * *", workflow.JobRank},
		{"30 1 * * *", workflow.JobTeamReward},
		{"45 1 * * *", workflow.JobTeamRewardSweep},
		{"0 6 * * *", workflow.JobProfitRetry},
	}
	for _, job := range jobs {
		name := job.name
		if _, err := s.Cron.AddFunc(job.spec, func() {
			s.runJob(name)
		}); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
	}
	return nil
}

func (s *Scheduler) runJob(name string) {
	s.Logger.WithFields(logrus.Fields{"module": "scheduler.go", "jobName": name}).Info("scheduled run starting")
	if _, err := s.Service.RunJob(name, models.TriggeredByAutomatic); err != nil {
		s.Logger.WithFields(logrus.Fields{"module": "scheduler.go", "jobName": name}).Error("scheduled run failed: " + err.Error())
	}
}

func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Logger.WithFields(logrus.Fields{"module": "scheduler.go"}).Info("scheduler started")
}

// Stop stops the scheduler and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	ctx := s.Cron.Stop()
	<-ctx.Done()
	s.Logger.WithFields(logrus.Fields{"module": "scheduler.go"}).Info("scheduler stopped")
}
