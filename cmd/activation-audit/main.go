package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradeflow-hq/trade_backend/config"
	"github.com/tradeflow-hq/trade_backend/models"
	"github.com/tradeflow-hq/trade_backend/utils"
)

// activation-audit is a read-only checker. It verifies that every settled
// activation carries the contractual processed-at stamp (activation date
// plus one day, 01:00 UTC) and reports activations left in Pending older
// than the given window. It repairs nothing; the engine's unique keys and
// deterministic stamping are supposed to make repairs unnecessary.
func main() {
	days := flag.Int("days", 30, "How many days back to audit")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	// Every sponsorship walk must terminate at the distinguished root
	// account; a missing root means cascades can dangle.
	rootMissing := 0
	if _, err := models.GetRootUser(db); err != nil {
		rootMissing = 1
		fmt.Println("NO ROOT ACCOUNT (users.is_root)")
	}

	since := utils.DateOnly(time.Now().UTC()).AddDate(0, 0, -*days)

	var activations []models.TradeActivation
	if err := db.Where("activation_date >= ?", since).Order("activation_date, user_id").Find(&activations).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to list activations: %v\n", err)
		os.Exit(1)
	}

	var badStamps, stalePending int
	processedTotal := decimal.Zero
	cutoff := utils.DateOnly(time.Now().UTC()).AddDate(0, 0, -1)
	for _, a := range activations {
		if a.ProfitStatus == models.ProfitStatusProcessed {
			processedTotal = processedTotal.Add(a.ProfitAmount)
		}
		if a.ProfitProcessedAt != nil {
			want := utils.ProfitRecognitionTime(a.ActivationDate)
			if !a.ProfitProcessedAt.Equal(want) {
				badStamps++
				fmt.Printf("BAD STAMP activation=%d user=%d date=%s processed_at=%s want=%s\n",
					a.ID, a.UserID, a.ActivationDate.Format("2006-01-02"),
					a.ProfitProcessedAt.Format(time.RFC3339), want.Format(time.RFC3339))
			}
		}
		if a.ProfitStatus == models.ProfitStatusPending && a.ActivationDate.Before(cutoff) {
			stalePending++
			fmt.Printf("STALE PENDING activation=%d user=%d date=%s\n",
				a.ID, a.UserID, a.ActivationDate.Format("2006-01-02"))
		}
	}

	// Reconciliation: total profit stamped on processed activations vs the
	// daily_profit ledger over the same window. Informational only; retried
	// activations from before the window can make the ledger side larger.
	ledgerTotal, err := models.SumIncomeAmount(db, models.IncomeTypeDailyProfit, since)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sum daily_profit incomes: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("reconcile: processed_profit=%s ledger_daily_profit=%s\n", processedTotal, ledgerTotal)

	fmt.Printf("audited=%d bad_stamps=%d stale_pending=%d root_missing=%d\n", len(activations), badStamps, stalePending, rootMissing)
	if badStamps > 0 || stalePending > 0 || rootMissing > 0 {
		os.Exit(2)
	}
}
