package stability

import (
	"github.com/shopspring/decimal"

	"goldbridge/internal/config"
)

// Policy carries every magnitude constant of the adjustment heuristic as an
// exact decimal. The layered deviation/volatility/liquidity combination is a
// tuned heuristic, not a closed-form control law, so all of these are
// configuration.
type Policy struct {
	BoundApproachRatio decimal.Decimal
	ThrottleRate       decimal.Decimal
	CalmIncentiveRate  decimal.Decimal
	BaselineRate       decimal.Decimal

	HighVolatility     decimal.Decimal
	HighVolatilityRate decimal.Decimal
	LowVolatility      decimal.Decimal
	LowVolatilityRate  decimal.Decimal

	LowLiquidity      decimal.Decimal
	LowLiquidityRate  decimal.Decimal
	HighLiquidity     decimal.Decimal
	HighLiquidityRate decimal.Decimal

	GlobalThreshold   decimal.Decimal
	GlobalBase        decimal.Decimal
	GlobalRate        decimal.Decimal
	GlobalNeutralRate decimal.Decimal

	ClampRate decimal.Decimal
}

// PolicyFromConfig converts the configured float knobs into exact decimals.
func PolicyFromConfig(cfg config.StabilityConfig) Policy {
	return Policy{
		BoundApproachRatio: decimal.NewFromFloat(cfg.BoundApproachRatio),
		ThrottleRate:       decimal.NewFromFloat(cfg.ThrottleRate),
		CalmIncentiveRate:  decimal.NewFromFloat(cfg.CalmIncentiveRate),
		BaselineRate:       decimal.NewFromFloat(cfg.BaselineRate),
		HighVolatility:     decimal.NewFromFloat(cfg.HighVolatility),
		HighVolatilityRate: decimal.NewFromFloat(cfg.HighVolatilityRate),
		LowVolatility:      decimal.NewFromFloat(cfg.LowVolatility),
		LowVolatilityRate:  decimal.NewFromFloat(cfg.LowVolatilityRate),
		LowLiquidity:       decimal.NewFromFloat(cfg.LowLiquidity),
		LowLiquidityRate:   decimal.NewFromFloat(cfg.LowLiquidityRate),
		HighLiquidity:      decimal.NewFromFloat(cfg.HighLiquidity),
		HighLiquidityRate:  decimal.NewFromFloat(cfg.HighLiquidityRate),
		GlobalThreshold:    decimal.NewFromFloat(cfg.GlobalThreshold),
		GlobalBase:         decimal.NewFromFloat(cfg.GlobalBase),
		GlobalRate:         decimal.NewFromFloat(cfg.GlobalRate),
		GlobalNeutralRate:  decimal.NewFromFloat(cfg.GlobalNeutralRate),
		ClampRate:          decimal.NewFromFloat(cfg.ClampRate),
	}
}

// DefaultPolicy mirrors the shipped configuration defaults.
func DefaultPolicy() Policy {
	return Policy{
		BoundApproachRatio: decimal.NewFromFloat(0.8),
		ThrottleRate:       decimal.NewFromFloat(0.015),
		CalmIncentiveRate:  decimal.NewFromFloat(0.001),
		BaselineRate:       decimal.NewFromFloat(0.002),
		HighVolatility:     decimal.NewFromFloat(0.3),
		HighVolatilityRate: decimal.NewFromFloat(0.005),
		LowVolatility:      decimal.NewFromFloat(0.1),
		LowVolatilityRate:  decimal.NewFromFloat(0.001),
		LowLiquidity:       decimal.NewFromInt(100000),
		LowLiquidityRate:   decimal.NewFromFloat(0.01),
		HighLiquidity:      decimal.NewFromInt(1000000),
		HighLiquidityRate:  decimal.NewFromFloat(0.0005),
		GlobalThreshold:    decimal.NewFromFloat(0.15),
		GlobalBase:         decimal.NewFromFloat(0.05),
		GlobalRate:         decimal.NewFromFloat(0.02),
		GlobalNeutralRate:  decimal.NewFromFloat(0.001),
		ClampRate:          decimal.NewFromFloat(0.02),
	}
}
