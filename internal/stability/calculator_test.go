package stability

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"goldbridge/internal/zone"
)

func newTestCalculator(t *testing.T, zones *zone.Registry, ref ReferenceQuote) *Calculator {
	t.Helper()
	return NewCalculator(DefaultPolicy(), zones, ref, zerolog.Nop())
}

// testZone builds a zone with the 5-20% band and indicators inside the
// neutral volatility/liquidity bands, so only the deviation term fires.
func testZone(id string, deviation, throttle float64) zone.Zone {
	return zone.Zone{
		ID:                 id,
		Name:               id,
		StabilityDeviation: decimal.NewFromFloat(deviation),
		ThrottleFactor:     decimal.NewFromFloat(throttle),
		TargetRange: zone.TargetRange{
			MinDeviation: decimal.NewFromFloat(0.05),
			MaxDeviation: decimal.NewFromFloat(0.20),
		},
		Indicators: zone.EconomicIndicators{
			Volatility:     decimal.NewFromFloat(0.2),
			LiquidityDepth: decimal.NewFromInt(500000),
		},
	}
}

func mustUpsert(t *testing.T, r *zone.Registry, z zone.Zone) {
	t.Helper()
	if err := r.UpsertZone(z); err != nil {
		t.Fatalf("upsert zone: %v", err)
	}
}

func TestUnknownZoneIsExactlyNeutral(t *testing.T) {
	calc := newTestCalculator(t, zone.NewRegistry(), nil)

	adj := calc.Adjustment("nonexistent", decimal.NewFromInt(1000))
	if !adj.IsZero() {
		t.Fatalf("未知 zone 应返回精确 0, 实际 %s", adj)
	}
}

func TestThrottledZonePositiveAdjustment(t *testing.T) {
	r := zone.NewRegistry()
	mustUpsert(t, r, testZone("primary", 0.08, 1.02))
	calc := newTestCalculator(t, r, nil)

	adj := calc.Adjustment("primary", decimal.NewFromInt(1000))
	if adj.Sign() <= 0 {
		t.Fatalf("高于参考价的 zone 应收取节流费, 实际 %s", adj)
	}
}

func TestIncentivisedZoneNegativeAdjustment(t *testing.T) {
	r := zone.NewRegistry()
	mustUpsert(t, r, testZone("secondary", -0.12, 0.95))
	calc := newTestCalculator(t, r, nil)

	adj := calc.Adjustment("secondary", decimal.NewFromInt(1000))
	if adj.Sign() >= 0 {
		t.Fatalf("低于参考价的 zone 应获得折扣, 实际 %s", adj)
	}
}

func TestBeyondBoundHitsClampExactly(t *testing.T) {
	r := zone.NewRegistry()
	mustUpsert(t, r, testZone("emergency", -0.22, 0.5))
	calc := newTestCalculator(t, r, nil)

	amount := decimal.NewFromInt(1000)
	adj := calc.Adjustment("emergency", amount)

	want := amount.Mul(decimal.NewFromFloat(0.02)).Neg()
	if !adj.Equal(want) {
		t.Fatalf("超界 zone 应触达 -2%% 钳位: 期望 %s, 实际 %s", want, adj)
	}
}

func TestApproachBoundSignFollowsDeviation(t *testing.T) {
	amounts := []decimal.Decimal{
		decimal.NewFromInt(1),
		decimal.NewFromInt(1000),
		decimal.NewFromFloat(123456.78),
	}
	clampRate := decimal.NewFromFloat(0.02)

	for _, deviation := range []float64{0.17, 0.19, 0.25, -0.17, -0.19, -0.25} {
		r := zone.NewRegistry()
		mustUpsert(t, r, testZone("edge", deviation, 1.0))
		calc := newTestCalculator(t, r, nil)

		for _, amount := range amounts {
			adj := calc.Adjustment("edge", amount)
			if deviation > 0 && adj.Sign() <= 0 {
				t.Fatalf("dev=%v amount=%s: 应为正, 实际 %s", deviation, amount, adj)
			}
			if deviation < 0 && adj.Sign() >= 0 {
				t.Fatalf("dev=%v amount=%s: 应为负, 实际 %s", deviation, amount, adj)
			}
			if adj.Abs().GreaterThan(amount.Mul(clampRate)) {
				t.Fatalf("dev=%v amount=%s: 超出钳位 %s", deviation, amount, adj)
			}
		}
	}
}

func TestCalmZoneStrictlyNegative(t *testing.T) {
	// 0.05 and -0.05 sit exactly on the band's lower bound; the discount
	// band is inclusive there.
	for _, deviation := range []float64{0.0, 0.01, 0.02, 0.049, -0.03, 0.05, -0.05} {
		r := zone.NewRegistry()
		mustUpsert(t, r, testZone("calm", deviation, 1.1))
		calc := newTestCalculator(t, r, nil)

		adj := calc.Adjustment("calm", decimal.NewFromInt(1000))
		if adj.Sign() >= 0 {
			t.Fatalf("dev=%v: 过稳 zone 应获得激励折扣, 实际 %s", deviation, adj)
		}
	}
}

func TestVolatilityTermRaisesFees(t *testing.T) {
	r := zone.NewRegistry()

	z := testZone("choppy", 0.08, 1.0)
	z.Indicators.Volatility = decimal.NewFromFloat(0.45)
	mustUpsert(t, r, z)

	calm := testZone("flat", 0.08, 1.0)
	calm.Indicators.Volatility = decimal.NewFromFloat(0.05)
	mustUpsert(t, r, calm)

	calc := newTestCalculator(t, r, nil)
	amount := decimal.NewFromInt(1000)

	choppy := calc.Adjustment("choppy", amount)
	flat := calc.Adjustment("flat", amount)
	if !choppy.GreaterThan(flat) {
		t.Fatalf("高波动应比低波动费用更高: %s vs %s", choppy, flat)
	}
}

func TestLiquidityTermProtectsThinMarkets(t *testing.T) {
	r := zone.NewRegistry()

	thin := testZone("thin", 0.08, 1.0)
	thin.Indicators.LiquidityDepth = decimal.NewFromInt(50000)
	mustUpsert(t, r, thin)

	deep := testZone("deep", 0.08, 1.0)
	deep.Indicators.LiquidityDepth = decimal.NewFromInt(5000000)
	mustUpsert(t, r, deep)

	calc := newTestCalculator(t, r, nil)
	amount := decimal.NewFromInt(1000)

	if !calc.Adjustment("thin", amount).GreaterThan(calc.Adjustment("deep", amount)) {
		t.Fatal("流动性浅的 zone 应收取更高费用")
	}
}

func TestGlobalModeAboveThreshold(t *testing.T) {
	ref := func() (decimal.Decimal, decimal.Decimal, bool) {
		return decimal.NewFromFloat(100.0), decimal.NewFromFloat(84.0), true
	}
	calc := newTestCalculator(t, zone.NewRegistry(), ref)

	adj := calc.Adjustment("", decimal.NewFromInt(1000))
	if adj.Sign() <= 0 {
		t.Fatalf("全局偏差 +19%% 应产生节流费, 实际 %s", adj)
	}
	if adj.Abs().GreaterThan(decimal.NewFromInt(20)) {
		t.Fatalf("钳位失效: %s", adj)
	}
}

func TestGlobalModeWithinThreshold(t *testing.T) {
	ref := func() (decimal.Decimal, decimal.Decimal, bool) {
		return decimal.NewFromFloat(85.2), decimal.NewFromFloat(84.0), true
	}
	calc := newTestCalculator(t, zone.NewRegistry(), ref)

	amount := decimal.NewFromInt(1000)
	adj := calc.Adjustment("", amount)

	// dev ≈ 1.2/84, neutral rate 0.001
	want := decimal.NewFromFloat(1.2).Div(decimal.NewFromInt(84)).Mul(amount).Mul(decimal.NewFromFloat(0.001))
	if !adj.Equal(want) {
		t.Fatalf("期望 %s, 实际 %s", want, adj)
	}
}

func TestGlobalModeNoQuoteIsNeutral(t *testing.T) {
	ref := func() (decimal.Decimal, decimal.Decimal, bool) {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}
	calc := newTestCalculator(t, zone.NewRegistry(), ref)

	if adj := calc.Adjustment("", decimal.NewFromInt(1000)); !adj.IsZero() {
		t.Fatalf("无报价时应中性, 实际 %s", adj)
	}
}

func TestNonPositiveAmountNeutral(t *testing.T) {
	r := zone.NewRegistry()
	mustUpsert(t, r, testZone("primary", 0.08, 1.02))
	calc := newTestCalculator(t, r, nil)

	if adj := calc.Adjustment("primary", decimal.Zero); !adj.IsZero() {
		t.Fatalf("零金额应中性, 实际 %s", adj)
	}
	if adj := calc.Adjustment("primary", decimal.NewFromInt(-5)); !adj.IsZero() {
		t.Fatalf("负金额应中性, 实际 %s", adj)
	}
}
