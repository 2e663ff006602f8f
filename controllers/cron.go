package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/tradeflow-hq/trade_backend/config"
	"github.com/tradeflow-hq/trade_backend/models"
	"github.com/tradeflow-hq/trade_backend/workflow"
)

// The service is installed by main once the database is connected; until
// then the trigger endpoints answer 503 instead of panicking.
var cronService *workflow.Service

func SetCronService(service *workflow.Service) {
	cronService = service
}

func requireCronKey(c *gin.Context) bool {
	key := config.CronTriggerKey()
	if key == "" || c.GetHeader("X-Cron-Key") != key {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid cron key"})
		return false
	}
	return true
}

// TriggerCronJob is the manual re-trigger endpoint. It invokes the same
// pass function the scheduler uses; running it concurrently with the
// scheduled run is safe because credits are guarded by the income
// uniqueness key.
func TriggerCronJob(c *gin.Context) {
	if !requireCronKey(c) {
		return
	}
	if cronService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service not ready"})
		return
	}

	jobName := c.Param("job")
	summary, err := cronService.RunJob(jobName, models.TriggeredByManual)
	if err != nil && summary == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "known_jobs": workflow.KnownJobs()})
		return
	}

	if err := config.SetRedisObject(fmt.Sprintf("cron:last:%s", jobName), summary, 24*time.Hour); err != nil {
		config.LogError(config.GetLogger(), "cron.go", "TriggerCronJob", "cache summary", jobName, err)
	}

	status := http.StatusOK
	if summary.Status == models.CronStatusFailed {
		status = http.StatusInternalServerError
	}
	c.JSON(status, summary)
}

// LastCronRun returns the cached summary of the most recent manual run.
func LastCronRun(c *gin.Context) {
	if !requireCronKey(c) {
		return
	}
	jobName := c.Param("job")
	var summary workflow.RunSummary
	found, err := config.GetRedisObject(fmt.Sprintf("cron:last:%s", jobName), &summary)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cached run for job", "job": jobName})
		return
	}
	c.JSON(http.StatusOK, summary)
}

type packagePurchaseRequest struct {
	UserID    uint            `json:"user_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Tier      int             `json:"tier" binding:"min=0"`
	Reference string          `json:"reference" binding:"required,max=150"`
}

// PackagePurchaseHook is the entry point the investment purchase flow
// calls after creating an Investment row; it distributes matrix income up
// the placement tree. Redelivery is safe because the reference keys the
// income rows.
func PackagePurchaseHook(c *gin.Context) {
	if !requireCronKey(c) {
		return
	}
	if cronService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service not ready"})
		return
	}

	var req packagePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}

	result, err := cronService.Engine.OnPackagePurchase(req.UserID, req.Amount, req.Tier, req.Reference)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
