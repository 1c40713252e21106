package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"goldbridge/internal/asset"
)

// ErrSlippageExceeded indicates an execution price outside the configured
// tolerance.
var ErrSlippageExceeded = errors.New("exchange: slippage tolerance exceeded")

// ErrUnsupportedPair indicates a pair with no configured rate.
var ErrUnsupportedPair = errors.New("exchange: unsupported pair")

// ExchangeOptions parameterise the internal exchange.
type ExchangeOptions struct {
	NativeUSDRate     decimal.Decimal
	LiquidityPool     decimal.Decimal
	Volatility        decimal.Decimal
	SlippageTolerance decimal.Decimal
}

// Exchange is the in-process market maker for the native asset. Rates are
// keyed by pair, slippage grows with trade size relative to pool depth,
// scaled by the configured volatility.
type Exchange struct {
	mu     sync.RWMutex
	opts   ExchangeOptions
	rates  map[string]decimal.Decimal
	logger zerolog.Logger
}

// NewExchange constructs the internal exchange with the GLD/USD rate seeded
// from options.
func NewExchange(opts ExchangeOptions, logger zerolog.Logger) *Exchange {
	e := &Exchange{
		opts:   opts,
		rates:  make(map[string]decimal.Decimal),
		logger: logger.With().Str("component", "internal_exchange").Logger(),
	}
	if opts.NativeUSDRate.Sign() > 0 {
		e.rates[pairKey(TradingPair{Base: "GLD", Quote: "USD"})] = opts.NativeUSDRate
		e.rates[pairKey(TradingPair{Base: "USD", Quote: "GLD"})] = decimal.NewFromInt(1).Div(opts.NativeUSDRate)
	}
	return e
}

func pairKey(p TradingPair) string {
	return strings.ToUpper(p.Base) + "/" + strings.ToUpper(p.Quote)
}

func (e *Exchange) ID() ID       { return InternalExchange }
func (e *Exchange) Class() Class { return ClassExchange }

// Authenticate is a no-op for the in-process exchange.
func (e *Exchange) Authenticate(ctx context.Context, creds Credentials) (AuthToken, error) {
	return AuthToken{Provider: InternalExchange, Token: "internal"}, nil
}

// SetRate installs or replaces a pair rate. The price-feed ingestion path
// refreshes GLD/USD here.
func (e *Exchange) SetRate(pair TradingPair, rate decimal.Decimal) error {
	if rate.Sign() <= 0 {
		return errors.New("exchange: rate must be greater than zero")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rates[pairKey(pair)] = rate
	return nil
}

// GetSupportedPairs lists pairs with a configured rate.
func (e *Exchange) GetSupportedPairs(ctx context.Context) ([]TradingPair, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	pairs := make([]TradingPair, 0, len(e.rates))
	for key := range e.rates {
		parts := strings.SplitN(key, "/", 2)
		pairs = append(pairs, TradingPair{Base: parts[0], Quote: parts[1]})
	}
	return pairs, nil
}

// GetQuote prices a prospective swap. Slippage is price impact (trade size
// over pool depth) scaled by volatility.
func (e *Exchange) GetQuote(ctx context.Context, pair TradingPair, amountIn decimal.Decimal) (Quote, error) {
	if amountIn.Sign() <= 0 {
		return Quote{}, errors.New("exchange: amount must be greater than zero")
	}

	e.mu.RLock()
	rate, ok := e.rates[pairKey(pair)]
	pool := e.opts.LiquidityPool
	vol := e.opts.Volatility
	e.mu.RUnlock()

	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrUnsupportedPair, pairKey(pair))
	}

	slippage := decimal.Zero
	if pool.Sign() > 0 {
		slippage = amountIn.Div(pool).Mul(vol)
	}

	effective := rate.Mul(decimal.NewFromInt(1).Sub(slippage))
	return Quote{
		Pair:      pair,
		Rate:      rate,
		AmountIn:  amountIn,
		AmountOut: amountIn.Mul(effective),
		Slippage:  slippage,
		ExpiresAt: time.Now().UTC().Add(30 * time.Second),
	}, nil
}

// ExecuteSwap executes at the quoted effective rate, rejecting trades whose
// slippage exceeds the tolerance or whose output falls under MinOut.
func (e *Exchange) ExecuteSwap(ctx context.Context, token AuthToken, req SwapRequest) (SwapResult, error) {
	quote, err := e.GetQuote(ctx, req.Pair, req.AmountIn)
	if err != nil {
		return SwapResult{}, err
	}

	e.mu.RLock()
	tolerance := e.opts.SlippageTolerance
	e.mu.RUnlock()

	if tolerance.Sign() > 0 && quote.Slippage.GreaterThan(tolerance) {
		return SwapResult{}, fmt.Errorf("%w: %s > %s", ErrSlippageExceeded, quote.Slippage, tolerance)
	}
	if req.MinOut.Sign() > 0 && quote.AmountOut.LessThan(req.MinOut) {
		return SwapResult{}, fmt.Errorf("%w: output %s below minimum %s", ErrSlippageExceeded, quote.AmountOut, req.MinOut)
	}

	result := SwapResult{
		SwapID:     "SWAP_" + uuid.NewString(),
		AmountIn:   quote.AmountIn,
		AmountOut:  quote.AmountOut,
		Rate:       quote.Rate,
		ExecutedAt: time.Now().UTC(),
	}

	e.logger.Info().
		Str("swap_id", result.SwapID).
		Str("pair", pairKey(req.Pair)).
		Str("amount_in", result.AmountIn.String()).
		Str("amount_out", result.AmountOut.String()).
		Msg("swap executed")

	return result, nil
}

// GetLiquidityInfo reports the configured pool depth.
func (e *Exchange) GetLiquidityInfo(ctx context.Context, pair TradingPair) (LiquidityInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, ok := e.rates[pairKey(pair)]; !ok {
		return LiquidityInfo{}, fmt.Errorf("%w: %s", ErrUnsupportedPair, pairKey(pair))
	}
	return LiquidityInfo{
		Pair:      pair,
		Depth:     e.opts.LiquidityPool,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// EstimateGas returns flat per-network execution cost estimates.
func (e *Exchange) EstimateGas(ctx context.Context, network asset.Network) (GasEstimate, error) {
	switch network {
	case asset.NetworkEthereum:
		return GasEstimate{Network: network, GasUnits: 90000, Cost: decimal.NewFromFloat(2.5)}, nil
	case asset.NetworkPolygon:
		return GasEstimate{Network: network, GasUnits: 90000, Cost: decimal.NewFromFloat(0.02)}, nil
	case asset.NetworkSolana:
		return GasEstimate{Network: network, GasUnits: 1, Cost: decimal.NewFromFloat(0.001)}, nil
	case asset.NetworkBitcoin:
		return GasEstimate{Network: network, GasUnits: 250, Cost: decimal.NewFromFloat(1.2)}, nil
	case asset.NetworkGold:
		return GasEstimate{Network: network, GasUnits: 0, Cost: decimal.Zero}, nil
	default:
		return GasEstimate{}, fmt.Errorf("exchange: no gas model for network %q", network)
	}
}

var _ ExchangeAdapter = (*Exchange)(nil)
