package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/tradeflow-hq/trade_backend/config"
	"github.com/tradeflow-hq/trade_backend/models"
)

const maxReportedErrors = 10

// RunContext carries the accounting of one batch run: what was processed,
// what was credited, what failed, and whether the run deadline has passed.
type RunContext struct {
	Execution *models.CronExecution
	deadline  time.Time
	processed int
	total     decimal.Decimal
	runErrors []models.RunError
	deadlined bool
}

func (rc *RunContext) AddProcessed(amount decimal.Decimal) {
	rc.processed++
	rc.total = rc.total.Add(amount)
}

// AddAmount adds to the run's credited total without counting an entity as
// processed (cascaded commissions ride along the investment they stem from).
func (rc *RunContext) AddAmount(amount decimal.Decimal) {
	rc.total = rc.total.Add(amount)
}

func (rc *RunContext) AddError(scope string, reference string, err error) {
	rc.runErrors = append(rc.runErrors, models.RunError{
		Scope:     scope,
		Reference: reference,
		Message:   err.Error(),
		At:        time.Now().UTC(),
	})
}

// DeadlineExceeded is checked between entities; once true the pass stops
// and the run is marked partial instead of leaving activations dangling.
func (rc *RunContext) DeadlineExceeded() bool {
	if rc.deadlined {
		return true
	}
	if !rc.deadline.IsZero() && time.Now().After(rc.deadline) {
		rc.deadlined = true
	}
	return rc.deadlined
}

// RunSummary is what the manual trigger endpoint surfaces.
type RunSummary struct {
	ExecutionID    string            `json:"execution_id"`
	JobName        string            `json:"job_name"`
	Status         models.CronStatus `json:"status"`
	ProcessedCount int               `json:"processed_count"`
	TotalAmount    decimal.Decimal   `json:"total_amount"`
	ErrorCount     int               `json:"error_count"`
	Errors         []models.RunError `json:"errors,omitempty"`
}

// Runner wraps every pass in a CronExecution audit record and a best-effort
// distributed lock so a manual trigger racing the scheduled run serializes
// instead of interleaving. Double-credit protection does not depend on the
// lock; the incomes uniqueness key covers the case where the lock cannot
// be obtained.
type Runner struct {
	store    Store
	logger   *logrus.Logger
	locker   *redislock.Client
	deadline time.Duration
}

func NewRunner(store Store, logger *logrus.Logger, locker *redislock.Client, deadline time.Duration) *Runner {
	return &Runner{store: store, logger: logger, locker: locker, deadline: deadline}
}

func (r *Runner) Run(jobName string, triggeredBy models.TriggeredBy, fn func(*RunContext) error) (*RunSummary, error) {
	ctx := context.Background()

	var lock *redislock.Lock
	if r.locker != nil {
		var err error
		lock, err = r.locker.Obtain(ctx, fmt.Sprintf("cron:%s", jobName), r.deadline, nil)
		if err == redislock.ErrNotObtained {
			r.logger.WithFields(logrus.Fields{
				"module":  "runner.go",
				"jobName": jobName,
			}).Warn("could not obtain run lock; proceeding, idempotency keys protect credits")
			lock = nil
		} else if err != nil {
			r.logger.WithFields(logrus.Fields{
				"module":  "runner.go",
				"jobName": jobName,
			}).Warn("error obtaining run lock; proceeding: " + err.Error())
			lock = nil
		}
	}
	defer func() {
		if lock != nil {
			_ = lock.Release(ctx)
		}
	}()

	execution, err := r.store.BeginCronExecution(jobName, triggeredBy)
	if err != nil {
		config.LogError(r.logger, "runner.go", "Run", "BeginCronExecution", jobName, err)
		return nil, err
	}

	rc := &RunContext{
		Execution: execution,
		total:     decimal.Zero,
	}
	if r.deadline > 0 {
		rc.deadline = time.Now().Add(r.deadline)
	}

	// Second guard on the database itself, for when Redis is down. Neither
	// lock is load-bearing for correctness; the income unique keys are.
	locked, runErr := r.store.WithJobLock(fmt.Sprintf("cron:%s", jobName), func() error {
		return fn(rc)
	})
	if !locked {
		r.logger.WithFields(logrus.Fields{
			"module":  "runner.go",
			"jobName": jobName,
		}).Warn("could not obtain db job lock; idempotency keys protected the run")
	}

	status := models.CronStatusCompleted
	if runErr != nil {
		// Batch-wide failure (missing or malformed configuration); nothing
		// was partially applied at an unknown rate.
		status = models.CronStatusFailed
		rc.AddError(jobName, "run", runErr)
	} else if rc.deadlined || len(rc.runErrors) > 0 {
		status = models.CronStatusPartialSuccess
	}

	if err := r.store.FinishCronExecution(execution, status, rc.processed, rc.total, rc.runErrors); err != nil {
		config.LogError(r.logger, "runner.go", "Run", "FinishCronExecution", execution.ID, err)
	}

	r.logger.WithFields(logrus.Fields{
		"module":         "runner.go",
		"jobName":        jobName,
		"executionId":    execution.ID,
		"status":         status,
		"processedCount": rc.processed,
		"totalAmount":    rc.total.String(),
		"errorCount":     len(rc.runErrors),
	}).Info("batch run finished")

	reported := rc.runErrors
	if len(reported) > maxReportedErrors {
		reported = reported[:maxReportedErrors]
	}
	summary := &RunSummary{
		ExecutionID:    execution.ID,
		JobName:        jobName,
		Status:         status,
		ProcessedCount: rc.processed,
		TotalAmount:    rc.total,
		ErrorCount:     len(rc.runErrors),
		Errors:         reported,
	}
	return summary, runErr
}
