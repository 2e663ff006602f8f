package models

import (
	"log"

	"github.com/tradeflow-hq/trade_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{},
		&InvestmentPlan{}, &Investment{},
		&TradeActivation{},
		&Income{},
		&CronExecution{},
		&Rank{},
		&TeamRewardTier{}, &TeamReward{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
