package stability

import (
	"errors"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"goldbridge/internal/zone"
)

var one = decimal.NewFromInt(1)

// ZoneSource provides read access to market zones.
type ZoneSource interface {
	GetZone(id string) (zone.Zone, error)
}

// ReferenceQuote supplies the global reference price pair for global-mode
// adjustments. ok is false when no fresh quote is available.
type ReferenceQuote func() (current, target decimal.Decimal, ok bool)

// Calculator derives a bounded fee adjustment from zone market state.
// Positive adjustments throttle activity, negative ones incentivise it.
type Calculator struct {
	policy    Policy
	zones     ZoneSource
	globalRef ReferenceQuote
	logger    zerolog.Logger
}

// NewCalculator constructs a calculator. globalRef may be nil, in which case
// global-mode adjustments are neutral.
func NewCalculator(policy Policy, zones ZoneSource, globalRef ReferenceQuote, logger zerolog.Logger) *Calculator {
	return &Calculator{
		policy:    policy,
		zones:     zones,
		globalRef: globalRef,
		logger:    logger.With().Str("component", "stability").Logger(),
	}
}

// Adjustment computes the stability adjustment for amount. An empty zoneID
// selects global mode. An unknown zone yields exactly zero: pricing fails
// open to neutral rather than erroring, so a stale zone reference cannot
// block a transfer.
func (c *Calculator) Adjustment(zoneID string, amount decimal.Decimal) decimal.Decimal {
	if amount.Sign() <= 0 {
		return decimal.Zero
	}

	if zoneID == "" {
		return c.clamp(c.globalAdjustment(amount), amount)
	}

	z, err := c.zones.GetZone(zoneID)
	if err != nil {
		if errors.Is(err, zone.ErrZoneNotFound) {
			c.logger.Debug().Str("zone", zoneID).Msg("unknown zone, neutral adjustment")
			return decimal.Zero
		}
		c.logger.Warn().Err(err).Str("zone", zoneID).Msg("zone lookup failed, neutral adjustment")
		return decimal.Zero
	}

	total := c.deviationTerm(z, amount)
	total = total.Add(c.volatilityTerm(z.Indicators, amount))
	total = total.Add(c.liquidityTerm(z.Indicators, amount))

	return c.clamp(total, amount)
}

// deviationTerm implements the approach-bound throttling ladder.
func (c *Calculator) deviationTerm(z zone.Zone, amount decimal.Decimal) decimal.Decimal {
	dev := z.StabilityDeviation
	lo := z.TargetRange.MinDeviation
	hi := z.TargetRange.MaxDeviation

	approach := hi.Mul(c.policy.BoundApproachRatio)

	switch {
	case dev.Abs().GreaterThan(approach):
		// Near (or beyond) the deviation bound: throttle proportionally to
		// how deep into the approach band the zone sits. Sign follows the
		// deviation, so an under-priced market gets a discount.
		window := hi.Mul(one.Sub(c.policy.BoundApproachRatio))
		if window.IsZero() {
			return decimal.Zero
		}
		severity := dev.Abs().Sub(approach).Div(window)
		rate := severity.Mul(c.policy.ThrottleRate)
		if dev.Sign() < 0 {
			rate = rate.Neg()
		}
		return amount.Mul(rate)

	case dev.Abs().LessThanOrEqual(lo):
		// Too stable. A flat discount nudges the zone back into its band.
		// The lower bound is inclusive: sitting exactly on min deviation
		// still earns the incentive, so the discount band is |dev| <= min.
		return amount.Mul(c.policy.CalmIncentiveRate).Neg()

	default:
		return amount.Mul(z.ThrottleFactor.Sub(one)).Mul(c.policy.BaselineRate)
	}
}

func (c *Calculator) volatilityTerm(ind zone.EconomicIndicators, amount decimal.Decimal) decimal.Decimal {
	vol := ind.Volatility
	switch {
	case vol.GreaterThan(c.policy.HighVolatility):
		return amount.Mul(vol).Mul(c.policy.HighVolatilityRate)
	case vol.LessThan(c.policy.LowVolatility):
		return amount.Mul(c.policy.LowVolatilityRate).Neg()
	default:
		return decimal.Zero
	}
}

func (c *Calculator) liquidityTerm(ind zone.EconomicIndicators, amount decimal.Decimal) decimal.Decimal {
	depth := ind.LiquidityDepth
	switch {
	case depth.LessThan(c.policy.LowLiquidity):
		stress := c.policy.LowLiquidity.Sub(depth).Div(c.policy.LowLiquidity)
		return amount.Mul(stress).Mul(c.policy.LowLiquidityRate)
	case depth.GreaterThan(c.policy.HighLiquidity):
		return amount.Mul(c.policy.HighLiquidityRate).Neg()
	default:
		return decimal.Zero
	}
}

// globalAdjustment applies the approach-bound rule to the global reference
// deviation. No volatility or liquidity terms in global mode.
func (c *Calculator) globalAdjustment(amount decimal.Decimal) decimal.Decimal {
	if c.globalRef == nil {
		return decimal.Zero
	}
	current, target, ok := c.globalRef()
	if !ok || target.IsZero() {
		return decimal.Zero
	}

	dev := current.Sub(target).Div(target)
	if dev.Abs().GreaterThan(c.policy.GlobalThreshold) {
		rate := dev.Abs().Sub(c.policy.GlobalBase).Mul(c.policy.GlobalRate)
		if dev.Sign() < 0 {
			rate = rate.Neg()
		}
		return amount.Mul(rate)
	}
	return amount.Mul(dev).Mul(c.policy.GlobalNeutralRate)
}

func (c *Calculator) clamp(adj, amount decimal.Decimal) decimal.Decimal {
	limit := amount.Mul(c.policy.ClampRate)
	if adj.GreaterThan(limit) {
		return limit
	}
	if adj.LessThan(limit.Neg()) {
		return limit.Neg()
	}
	return adj
}
