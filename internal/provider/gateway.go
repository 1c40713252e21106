package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"goldbridge/internal/asset"
)

var (
	// ErrNotRegistered indicates no adapter is bound to the requested id.
	ErrNotRegistered = errors.New("provider: not registered")
	// ErrWrongClass indicates a banking call routed to an exchange adapter
	// or vice versa.
	ErrWrongClass = errors.New("provider: adapter class mismatch")
	// ErrUnavailable indicates the adapter's circuit breaker is open.
	ErrUnavailable = errors.New("provider: temporarily unavailable")
)

// defaultFailureRate is the breaker trip ratio when none is configured.
const defaultFailureRate = 0.05

// GatewayOptions tune per-adapter circuit breaking.
type GatewayOptions struct {
	// FailureRateThreshold trips an adapter's breaker once the rolling
	// failure ratio exceeds it. Zero falls back to defaultFailureRate.
	FailureRateThreshold float64
}

// Gateway routes capability calls to registered adapters. It holds no
// business state: selection by id, one circuit breaker per adapter, and the
// call forwarded unchanged.
type Gateway struct {
	mu       sync.RWMutex
	opts     GatewayOptions
	adapters map[ID]Adapter
	breakers map[ID]*gobreaker.CircuitBreaker
	logger   zerolog.Logger
}

// NewGateway constructs an empty gateway.
func NewGateway(opts GatewayOptions, logger zerolog.Logger) *Gateway {
	return &Gateway{
		opts:     opts,
		adapters: make(map[ID]Adapter),
		breakers: make(map[ID]*gobreaker.CircuitBreaker),
		logger:   logger.With().Str("component", "provider_gateway").Logger(),
	}
}

// Register binds an adapter to its id, replacing any previous binding.
func (g *Gateway) Register(a Adapter) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := a.ID()
	g.adapters[id] = a
	g.breakers[id] = gobreaker.NewCircuitBreaker(breakerSettings(id, g.opts.FailureRateThreshold))
	g.logger.Info().Str("provider", string(id)).Str("class", string(a.Class())).Msg("adapter registered")
}

func breakerSettings(id ID, failureRate float64) gobreaker.Settings {
	if failureRate <= 0 {
		failureRate = defaultFailureRate
	}

	st := gobreaker.Settings{Name: string(id)}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		total := counts.Requests
		if total < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(total) > failureRate
	}
	return st
}

// Registered lists bound provider ids.
func (g *Gateway) Registered() []ID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]ID, 0, len(g.adapters))
	for id := range g.adapters {
		ids = append(ids, id)
	}
	return ids
}

func (g *Gateway) adapter(id ID) (Adapter, *gobreaker.CircuitBreaker, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	a, ok := g.adapters[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotRegistered, id)
	}
	return a, g.breakers[id], nil
}

func (g *Gateway) banking(id ID) (BankingAdapter, *gobreaker.CircuitBreaker, error) {
	a, br, err := g.adapter(id)
	if err != nil {
		return nil, nil, err
	}
	b, ok := a.(BankingAdapter)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s is not a banking provider", ErrWrongClass, id)
	}
	return b, br, nil
}

func (g *Gateway) exchange(id ID) (ExchangeAdapter, *gobreaker.CircuitBreaker, error) {
	a, br, err := g.adapter(id)
	if err != nil {
		return nil, nil, err
	}
	e, ok := a.(ExchangeAdapter)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s is not an exchange provider", ErrWrongClass, id)
	}
	return e, br, nil
}

func execute[T any](br *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	res, err := br.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return zero, err
	}
	return res.(T), nil
}

// Authenticate opens a session with the provider.
func (g *Gateway) Authenticate(ctx context.Context, id ID, creds Credentials) (AuthToken, error) {
	a, br, err := g.adapter(id)
	if err != nil {
		return AuthToken{}, err
	}
	return execute(br, func() (AuthToken, error) {
		return a.Authenticate(ctx, creds)
	})
}

// GetAccountBalance retrieves a banking account balance.
func (g *Gateway) GetAccountBalance(ctx context.Context, id ID, token AuthToken, accountID string) (AccountBalance, error) {
	a, br, err := g.banking(id)
	if err != nil {
		return AccountBalance{}, err
	}
	return execute(br, func() (AccountBalance, error) {
		return a.GetAccountBalance(ctx, token, accountID)
	})
}

// InitiatePayment submits a banking payment.
func (g *Gateway) InitiatePayment(ctx context.Context, id ID, token AuthToken, req PaymentRequest) (PaymentResponse, error) {
	a, br, err := g.banking(id)
	if err != nil {
		return PaymentResponse{}, err
	}
	return execute(br, func() (PaymentResponse, error) {
		return a.InitiatePayment(ctx, token, req)
	})
}

// GetTransactionHistory lists banking transactions.
func (g *Gateway) GetTransactionHistory(ctx context.Context, id ID, token AuthToken, params HistoryParams) ([]BankTransaction, error) {
	a, br, err := g.banking(id)
	if err != nil {
		return nil, err
	}
	return execute(br, func() ([]BankTransaction, error) {
		return a.GetTransactionHistory(ctx, token, params)
	})
}

// VerifyAccount checks account ownership.
func (g *Gateway) VerifyAccount(ctx context.Context, id ID, token AuthToken, details AccountDetails) (VerificationResult, error) {
	a, br, err := g.banking(id)
	if err != nil {
		return VerificationResult{}, err
	}
	return execute(br, func() (VerificationResult, error) {
		return a.VerifyAccount(ctx, token, details)
	})
}

// GetSupportedCurrencies lists the fiat currencies a banking provider
// handles.
func (g *Gateway) GetSupportedCurrencies(ctx context.Context, id ID) ([]string, error) {
	a, br, err := g.banking(id)
	if err != nil {
		return nil, err
	}
	return execute(br, func() ([]string, error) {
		return a.GetSupportedCurrencies(ctx)
	})
}

// GetExchangeRates retrieves fiat exchange rates against a base currency.
func (g *Gateway) GetExchangeRates(ctx context.Context, id ID, base string) (map[string]decimal.Decimal, error) {
	a, br, err := g.banking(id)
	if err != nil {
		return nil, err
	}
	return execute(br, func() (map[string]decimal.Decimal, error) {
		return a.GetExchangeRates(ctx, base)
	})
}

// GetSupportedPairs lists the trading pairs an exchange serves.
func (g *Gateway) GetSupportedPairs(ctx context.Context, id ID) ([]TradingPair, error) {
	a, br, err := g.exchange(id)
	if err != nil {
		return nil, err
	}
	return execute(br, func() ([]TradingPair, error) {
		return a.GetSupportedPairs(ctx)
	})
}

// GetQuote asks an exchange for a swap quote.
func (g *Gateway) GetQuote(ctx context.Context, id ID, pair TradingPair, amountIn decimal.Decimal) (Quote, error) {
	a, br, err := g.exchange(id)
	if err != nil {
		return Quote{}, err
	}
	return execute(br, func() (Quote, error) {
		return a.GetQuote(ctx, pair, amountIn)
	})
}

// ExecuteSwap executes a swap on an exchange.
func (g *Gateway) ExecuteSwap(ctx context.Context, id ID, token AuthToken, req SwapRequest) (SwapResult, error) {
	a, br, err := g.exchange(id)
	if err != nil {
		return SwapResult{}, err
	}
	return execute(br, func() (SwapResult, error) {
		return a.ExecuteSwap(ctx, token, req)
	})
}

// GetLiquidityInfo reports pool depth for a pair.
func (g *Gateway) GetLiquidityInfo(ctx context.Context, id ID, pair TradingPair) (LiquidityInfo, error) {
	a, br, err := g.exchange(id)
	if err != nil {
		return LiquidityInfo{}, err
	}
	return execute(br, func() (LiquidityInfo, error) {
		return a.GetLiquidityInfo(ctx, pair)
	})
}

// EstimateGas prices on-chain execution for a network.
func (g *Gateway) EstimateGas(ctx context.Context, id ID, network asset.Network) (GasEstimate, error) {
	a, br, err := g.exchange(id)
	if err != nil {
		return GasEstimate{}, err
	}
	return execute(br, func() (GasEstimate, error) {
		return a.EstimateGas(ctx, network)
	})
}
