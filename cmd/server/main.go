package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tradeflow-hq/trade_backend/config"
	"github.com/tradeflow-hq/trade_backend/controllers"
	"github.com/tradeflow-hq/trade_backend/models"
	"github.com/tradeflow-hq/trade_backend/scheduler"
	"github.com/tradeflow-hq/trade_backend/workflow"
)

const defaultPort = "8080"

func main() {
	logger := config.GetLogger()

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	// Start listening first so health checks pass while the DB connects.
	router := controllers.NewRouter()
	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()
	logger.Info("listening on :" + port)

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	if os.Getenv("SKIP_MIGRATIONS") == "true" {
		logger.Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	} else {
		models.MigrateTable()
	}

	commissionCfg, err := config.LoadCommissionConfig()
	if err != nil {
		log.Fatalf("commission config: %v", err)
	}

	store := workflow.NewGormStore(config.GetDB())
	engine := workflow.NewEngine(store, logger, commissionCfg)
	runner := workflow.NewRunner(store, logger, config.GetRedisLock(), commissionCfg.RunDeadline)
	service := workflow.NewService(engine, runner)
	controllers.SetCronService(service)

	sched := scheduler.NewScheduler(service, logger)
	if err := sched.RegisterAll(); err != nil {
		log.Fatalf("scheduler: %v", err)
	}
	sched.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	sched.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown: " + err.Error())
	}
}
