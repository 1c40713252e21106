package zone

import "github.com/shopspring/decimal"

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic("zone: bad default decimal " + s)
	}
	return d
}

// DefaultZones 返回初始的全球市场分区，偏差区间统一为 5%-20%。
func DefaultZones() []Zone {
	band := TargetRange{MinDeviation: dec("0.05"), MaxDeviation: dec("0.20")}

	return []Zone{
		{
			ID:                 "global_primary",
			Name:               "Global Primary Market",
			MarketVelocity:     dec("1.0"),
			StabilityDeviation: dec("0.08"),
			ThrottleFactor:     dec("1.02"),
			TargetRange:        band,
			Indicators: EconomicIndicators{
				CurrentReferencePrice: dec("85.2"),
				TargetReferencePrice:  dec("84.0"),
				Volatility:            dec("0.15"),
				TransactionVolume:     dec("500000"),
				LiquidityDepth:        dec("2000000"),
			},
		},
		{
			ID:                 "global_secondary",
			Name:               "Global Secondary Market",
			MarketVelocity:     dec("0.85"),
			StabilityDeviation: dec("-0.12"),
			ThrottleFactor:     dec("0.95"),
			TargetRange:        band,
			Indicators: EconomicIndicators{
				CurrentReferencePrice: dec("74.0"),
				TargetReferencePrice:  dec("84.0"),
				Volatility:            dec("0.25"),
				TransactionVolume:     dec("200000"),
				LiquidityDepth:        dec("800000"),
			},
		},
		{
			ID:                 "global_volatile",
			Name:               "Global Volatile Market",
			MarketVelocity:     dec("1.8"),
			StabilityDeviation: dec("0.19"),
			ThrottleFactor:     dec("1.15"),
			TargetRange:        band,
			Indicators: EconomicIndicators{
				CurrentReferencePrice: dec("100.0"),
				TargetReferencePrice:  dec("84.0"),
				Volatility:            dec("0.45"),
				TransactionVolume:     dec("2000000"),
				LiquidityDepth:        dec("5000000"),
			},
		},
		{
			ID:                 "global_stable",
			Name:               "Global Stable Market",
			MarketVelocity:     dec("1.05"),
			StabilityDeviation: dec("0.02"),
			ThrottleFactor:     dec("0.98"),
			TargetRange:        band,
			Indicators: EconomicIndicators{
				CurrentReferencePrice: dec("85.7"),
				TargetReferencePrice:  dec("84.0"),
				Volatility:            dec("0.08"),
				TransactionVolume:     dec("450000"),
				LiquidityDepth:        dec("1500000"),
			},
		},
		{
			ID:                 "emergency_throttle",
			Name:               "Emergency Market Intervention",
			MarketVelocity:     dec("0.3"),
			StabilityDeviation: dec("-0.22"),
			ThrottleFactor:     dec("0.5"),
			TargetRange:        band,
			Indicators: EconomicIndicators{
				CurrentReferencePrice: dec("64.0"),
				TargetReferencePrice:  dec("84.0"),
				Volatility:            dec("0.8"),
				TransactionVolume:     dec("5000000"),
				LiquidityDepth:        dec("100000"),
			},
		},
	}
}
