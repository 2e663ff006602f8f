package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tradeflow-hq/trade_backend/config"
	"github.com/tradeflow-hq/trade_backend/models"
)

// seed-plans loads the static configuration tables: investment plans, the
// rank table and the team reward tiers. Safe to re-run; rows are upserted
// by name.
func main() {
	dryRun := flag.Bool("dry-run", false, "Print what would be seeded without writing")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	models.MigrateTable()

	if _, err := config.LoadCommissionConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "commission config invalid, refusing to seed: %v\n", err)
		os.Exit(1)
	}

	plans := []models.InvestmentPlan{
		{Name: "Starter", Tier: 1, DailyRate: dec("0.50"), MinAmount: dec("100"), MaxAmount: dec("999"), Status: "Active"},
		{Name: "Growth", Tier: 2, DailyRate: dec("0.80"), MinAmount: dec("1000"), MaxAmount: dec("4999"), Status: "Active"},
		{Name: "Premium", Tier: 3, DailyRate: dec("1.00"), MinAmount: dec("5000"), MaxAmount: dec("24999"), Status: "Active"},
		{Name: "Elite", Tier: 4, DailyRate: dec("1.20"), MinAmount: dec("25000"), MaxAmount: dec("100000"), Status: "Active"},
	}
	ranks := []models.Rank{
		{Name: "Bronze", MinInvestment: dec("1000"), MinActiveTeam: 3, TradeBooster: dec("0.10"), DailyLimitView: dec("500"), Priority: 10},
		{Name: "Silver", MinInvestment: dec("5000"), MinActiveTeam: 5, TradeBooster: dec("0.20"), DailyLimitView: dec("1500"), Priority: 20},
		{Name: "Gold", MinInvestment: dec("15000"), MinActiveTeam: 10, TradeBooster: dec("0.35"), DailyLimitView: dec("5000"), Priority: 30},
		{Name: "Diamond", MinInvestment: dec("50000"), MinActiveTeam: 20, TradeBooster: dec("0.50"), DailyLimitView: dec("20000"), Priority: 40},
	}
	tiers := []models.TeamRewardTier{
		{Name: "Team 10K", DepositThreshold: dec("10000"), HoldingDays: 30, RewardAmount: dec("300")},
		{Name: "Team 50K", DepositThreshold: dec("50000"), HoldingDays: 60, RewardAmount: dec("2000")},
		{Name: "Team 200K", DepositThreshold: dec("200000"), HoldingDays: 90, RewardAmount: dec("10000")},
	}

	if *dryRun {
		fmt.Printf("would seed %d plans, %d ranks, %d team reward tiers\n", len(plans), len(ranks), len(tiers))
		return
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		onName := clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			UpdateAll: true,
		}
		if err := tx.Clauses(onName).Create(&plans).Error; err != nil {
			return err
		}
		if err := tx.Clauses(onName).Create(&ranks).Error; err != nil {
			return err
		}
		if err := tx.Clauses(onName).Create(&tiers).Error; err != nil {
			return err
		}
		return ensureRootAccount(tx)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded %d plans, %d ranks, %d team reward tiers\n", len(plans), len(ranks), len(tiers))
}

// ensureRootAccount bootstraps the distinguished account every sponsorship
// chain terminates at. Exactly one such row must exist before any user can
// be assigned a referrer.
func ensureRootAccount(tx *gorm.DB) error {
	_, err := models.GetRootUser(tx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return tx.Create(&models.User{
		Name:     "root",
		ReffCode: "ROOT",
		IsRoot:   true,
		Status:   "Active",
	}).Error
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
