package fees

import (
	"errors"

	"github.com/shopspring/decimal"

	"goldbridge/internal/asset"
	"goldbridge/internal/config"
)

// ErrInvalidAmount indicates a pricing request with amount <= 0.
var ErrInvalidAmount = errors.New("fees: amount must be greater than zero")

// FeeBreakdown itemises the cost of a bridge operation. Total is the sum of
// the three base fees plus the signed stability adjustment, clamped to >= 0.
type FeeBreakdown struct {
	NetworkFee          decimal.Decimal `json:"network_fee"`
	ProviderFee         decimal.Decimal `json:"provider_fee"`
	BridgeFee           decimal.Decimal `json:"bridge_fee"`
	StabilityAdjustment decimal.Decimal `json:"stability_adjustment"`
	Total               decimal.Decimal `json:"total"`
}

// AdjustmentSource yields the stability adjustment for a zone and amount.
type AdjustmentSource interface {
	Adjustment(zoneID string, amount decimal.Decimal) decimal.Decimal
}

// Schedule carries the fee rate tables as exact decimals.
type Schedule struct {
	ProviderRate       decimal.Decimal
	KindRates          map[asset.OperationKind]decimal.Decimal
	NetworkRates       map[asset.Network]decimal.Decimal
	DefaultNetworkRate decimal.Decimal
}

// ScheduleFromConfig converts the configured float schedules.
func ScheduleFromConfig(cfg config.FeesConfig) Schedule {
	s := Schedule{
		ProviderRate:       decimal.NewFromFloat(cfg.ProviderRate),
		KindRates:          make(map[asset.OperationKind]decimal.Decimal, len(cfg.KindRates)),
		NetworkRates:       make(map[asset.Network]decimal.Decimal, len(cfg.NetworkRates)),
		DefaultNetworkRate: decimal.NewFromFloat(cfg.DefaultNetworkRate),
	}
	for k, r := range cfg.KindRates {
		s.KindRates[asset.OperationKind(k)] = decimal.NewFromFloat(r)
	}
	for n, r := range cfg.NetworkRates {
		s.NetworkRates[asset.Network(n)] = decimal.NewFromFloat(r)
	}
	return s
}

// DefaultSchedule mirrors the shipped configuration defaults.
func DefaultSchedule() Schedule {
	return Schedule{
		ProviderRate: decimal.NewFromFloat(0.0029),
		KindRates: map[asset.OperationKind]decimal.Decimal{
			asset.OpFiatToCrypto:      decimal.NewFromFloat(0.005),
			asset.OpCryptoToFiat:      decimal.NewFromFloat(0.007),
			asset.OpCryptoToCrypto:    decimal.Zero,
			asset.OpContractExecution: decimal.NewFromFloat(0.004),
			asset.OpLock:              decimal.NewFromFloat(0.002),
			asset.OpMint:              decimal.NewFromFloat(0.001),
			asset.OpBurn:              decimal.NewFromFloat(0.001),
			asset.OpUnlock:            decimal.NewFromFloat(0.001),
		},
		NetworkRates: map[asset.Network]decimal.Decimal{
			asset.NetworkBitcoin:  decimal.NewFromFloat(0.005),
			asset.NetworkEthereum: decimal.NewFromFloat(0.003),
			asset.NetworkSolana:   decimal.NewFromFloat(0.002),
			asset.NetworkPolygon:  decimal.NewFromFloat(0.002),
			asset.NetworkGold:     decimal.NewFromFloat(0.001),
		},
		DefaultNetworkRate: decimal.NewFromFloat(0.002),
	}
}

// Engine combines the base fee schedules with the stability adjustment.
type Engine struct {
	schedule Schedule
	adjuster AdjustmentSource
}

// NewEngine constructs a fee engine. adjuster may be nil for a neutral
// stability term.
func NewEngine(schedule Schedule, adjuster AdjustmentSource) *Engine {
	return &Engine{schedule: schedule, adjuster: adjuster}
}

// PriceOperation prices one bridge operation. zoneID may be empty for
// global-mode stability pricing.
func (e *Engine) PriceOperation(kind asset.OperationKind, source, destination asset.Network, amount decimal.Decimal, zoneID string) (FeeBreakdown, error) {
	if amount.Sign() <= 0 {
		return FeeBreakdown{}, ErrInvalidAmount
	}

	networkRate := e.networkRate(source).Add(e.networkRate(destination))

	breakdown := FeeBreakdown{
		NetworkFee:  amount.Mul(networkRate),
		ProviderFee: amount.Mul(e.schedule.ProviderRate),
		BridgeFee:   amount.Mul(e.kindRate(kind)),
	}

	if e.adjuster != nil {
		breakdown.StabilityAdjustment = e.adjuster.Adjustment(zoneID, amount)
	}

	total := breakdown.NetworkFee.
		Add(breakdown.ProviderFee).
		Add(breakdown.BridgeFee).
		Add(breakdown.StabilityAdjustment)
	if total.Sign() < 0 {
		total = decimal.Zero
	}
	breakdown.Total = total

	return breakdown, nil
}

func (e *Engine) networkRate(n asset.Network) decimal.Decimal {
	// Fiat legs carry no network fee; the provider fee covers the rail.
	if n == asset.NetworkFiat || n == "" {
		return decimal.Zero
	}
	if rate, ok := e.schedule.NetworkRates[n]; ok {
		return rate
	}
	return e.schedule.DefaultNetworkRate
}

func (e *Engine) kindRate(k asset.OperationKind) decimal.Decimal {
	if rate, ok := e.schedule.KindRates[k]; ok {
		return rate
	}
	return decimal.Zero
}
