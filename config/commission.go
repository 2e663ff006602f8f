package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const MaxCascadeLevels = 10

// CommissionConfig holds the externally configured distribution rates.
// The level table has drifted between hardcoded copies in the past, so the
// canonical values live in env and are validated before any run may credit.
type CommissionConfig struct {
	LevelRates  []decimal.Decimal `validate:"required,len=10"`
	MatrixRate  decimal.Decimal   `validate:"required"`
	RunDeadline time.Duration     `validate:"required,min=60000000000"`
}

var defaultLevelRates = []string{"25", "10", "5", "4", "3", "2", "1", "1", "1", "1"}

// LoadCommissionConfig reads LEVEL_ROI_RATES, MATRIX_RATE and
// RUN_DEADLINE_MINUTES from env, falling back to the canonical defaults.
// A malformed table is a configuration error and must fail the caller
// before it applies any rate.
func LoadCommissionConfig() (*CommissionConfig, error) {
	rateStrs := defaultLevelRates
	if raw := strings.TrimSpace(os.Getenv("LEVEL_ROI_RATES")); raw != "" {
		rateStrs = strings.Split(raw, ",")
	}
	if len(rateStrs) != MaxCascadeLevels {
		return nil, fmt.Errorf("LEVEL_ROI_RATES must contain exactly %d percentages, got %d", MaxCascadeLevels, len(rateStrs))
	}

	rates := make([]decimal.Decimal, 0, MaxCascadeLevels)
	for i, s := range rateStrs {
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("LEVEL_ROI_RATES[%d] %q: %w", i, s, err)
		}
		if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
			return nil, fmt.Errorf("LEVEL_ROI_RATES[%d] %q out of range", i, s)
		}
		rates = append(rates, d)
	}

	matrixRate := decimal.NewFromInt(10)
	if raw := strings.TrimSpace(os.Getenv("MATRIX_RATE")); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("MATRIX_RATE %q: %w", raw, err)
		}
		matrixRate = d
	}

	deadline := time.Duration(intFromEnv("RUN_DEADLINE_MINUTES", 30)) * time.Minute

	cfg := &CommissionConfig{
		LevelRates:  rates,
		MatrixRate:  matrixRate,
		RunDeadline: deadline,
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("commission config invalid: %w", err)
	}
	return cfg, nil
}

// LevelRate returns the percentage for a 1-based cascade level.
func (c *CommissionConfig) LevelRate(level int) decimal.Decimal {
	if level < 1 || level > len(c.LevelRates) {
		return decimal.Zero
	}
	return c.LevelRates[level-1]
}

// CronTriggerKey is the shared secret guarding the manual trigger endpoints.
func CronTriggerKey() string {
	return strings.TrimSpace(os.Getenv("CRON_TRIGGER_KEY"))
}
