package zone

import (
	"time"

	"github.com/shopspring/decimal"
)

// EconomicIndicators capture the market inputs that feed fee policy.
type EconomicIndicators struct {
	CurrentReferencePrice decimal.Decimal
	TargetReferencePrice  decimal.Decimal
	Volatility            decimal.Decimal // index in [0,1]
	TransactionVolume     decimal.Decimal
	LiquidityDepth        decimal.Decimal
}

// TargetRange bounds the acceptable deviation band for a zone.
type TargetRange struct {
	MinDeviation decimal.Decimal
	MaxDeviation decimal.Decimal
}

// Zone is a named market partition with its own deviation and liquidity
// state. Deviation is the signed fraction of the reference price.
type Zone struct {
	ID                 string
	Name               string
	MarketVelocity     decimal.Decimal
	StabilityDeviation decimal.Decimal
	ThrottleFactor     decimal.Decimal
	TargetRange        TargetRange
	Indicators         EconomicIndicators
	UpdatedAt          time.Time
}

// Snapshot is a persisted point-in-time view of a zone, kept for audit and
// export.
type Snapshot struct {
	Bucket             time.Time
	ZoneID             string
	StabilityDeviation decimal.Decimal
	ReferencePrice     decimal.Decimal
	TargetPrice        decimal.Decimal
	Volatility         decimal.Decimal
	LiquidityDepth     decimal.Decimal
	CreatedAt          time.Time
}
