package provider

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"goldbridge/internal/asset"
)

// MockBankAdapter is an in-memory banking provider used by the simulate
// command and by tests. Balances mutate through InitiatePayment.
type MockBankAdapter struct {
	mu       sync.Mutex
	id       ID
	balances map[string]decimal.Decimal
	history  map[string][]BankTransaction

	// FailPayments forces InitiatePayment to error, for failure-path tests.
	FailPayments error
	// PaymentDelay holds each payment call for the duration, for timeout tests.
	PaymentDelay time.Duration
}

// NewMockBank seeds a mock banking provider with account balances.
func NewMockBank(balances map[string]decimal.Decimal) *MockBankAdapter {
	copied := make(map[string]decimal.Decimal, len(balances))
	for k, v := range balances {
		copied[k] = v
	}
	return &MockBankAdapter{
		id:       MockBank,
		balances: copied,
		history:  make(map[string][]BankTransaction),
	}
}

func (m *MockBankAdapter) ID() ID       { return m.id }
func (m *MockBankAdapter) Class() Class { return ClassBanking }

func (m *MockBankAdapter) Authenticate(ctx context.Context, creds Credentials) (AuthToken, error) {
	return AuthToken{Provider: m.id, Token: "mock-session", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (m *MockBankAdapter) GetAccountBalance(ctx context.Context, token AuthToken, accountID string) (AccountBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return AccountBalance{
		AccountID: accountID,
		Currency:  "USD",
		Available: m.balances[accountID],
	}, nil
}

func (m *MockBankAdapter) InitiatePayment(ctx context.Context, token AuthToken, req PaymentRequest) (PaymentResponse, error) {
	if m.PaymentDelay > 0 {
		select {
		case <-ctx.Done():
			return PaymentResponse{}, ctx.Err()
		case <-time.After(m.PaymentDelay):
		}
	}
	if m.FailPayments != nil {
		return PaymentResponse{}, m.FailPayments
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.balances[req.SourceAccount] = m.balances[req.SourceAccount].Sub(req.Amount)
	m.balances[req.DestinationAccount] = m.balances[req.DestinationAccount].Add(req.Amount)

	tx := BankTransaction{
		ID:        "PAY_" + uuid.NewString(),
		Amount:    req.Amount,
		Currency:  req.Currency,
		Direction: "debit",
		Reference: req.Reference,
		Timestamp: time.Now().UTC(),
	}
	m.history[req.SourceAccount] = append(m.history[req.SourceAccount], tx)

	return PaymentResponse{
		PaymentID: tx.ID,
		Status:    "completed",
		Amount:    req.Amount,
		Currency:  req.Currency,
		CreatedAt: tx.Timestamp,
	}, nil
}

func (m *MockBankAdapter) GetTransactionHistory(ctx context.Context, token AuthToken, params HistoryParams) ([]BankTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	txs := m.history[params.AccountID]
	out := make([]BankTransaction, len(txs))
	copy(out, txs)
	return out, nil
}

func (m *MockBankAdapter) VerifyAccount(ctx context.Context, token AuthToken, details AccountDetails) (VerificationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.balances[details.AccountID]
	if !ok {
		return VerificationResult{Verified: false, Reason: "account not found"}, nil
	}
	return VerificationResult{Verified: true}, nil
}

func (m *MockBankAdapter) GetSupportedCurrencies(ctx context.Context) ([]string, error) {
	return []string{"USD"}, nil
}

func (m *MockBankAdapter) GetExchangeRates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	return map[string]decimal.Decimal{"USD": decimal.NewFromInt(1)}, nil
}

var _ BankingAdapter = (*MockBankAdapter)(nil)

// MockExchangeAdapter answers every exchange call with fixed values.
type MockExchangeAdapter struct {
	Rate decimal.Decimal

	// FailSwaps forces ExecuteSwap to error.
	FailSwaps error
	// SwapDelay holds each swap call for the duration.
	SwapDelay time.Duration
}

// NewMockExchange builds a fixed-rate exchange mock.
func NewMockExchange(rate decimal.Decimal) *MockExchangeAdapter {
	return &MockExchangeAdapter{Rate: rate}
}

func (m *MockExchangeAdapter) ID() ID       { return MockExchange }
func (m *MockExchangeAdapter) Class() Class { return ClassExchange }

func (m *MockExchangeAdapter) Authenticate(ctx context.Context, creds Credentials) (AuthToken, error) {
	return AuthToken{Provider: MockExchange, Token: "mock-session"}, nil
}

func (m *MockExchangeAdapter) GetSupportedPairs(ctx context.Context) ([]TradingPair, error) {
	return []TradingPair{{Base: "GLD", Quote: "USD"}}, nil
}

func (m *MockExchangeAdapter) GetQuote(ctx context.Context, pair TradingPair, amountIn decimal.Decimal) (Quote, error) {
	return Quote{
		Pair:      pair,
		Rate:      m.Rate,
		AmountIn:  amountIn,
		AmountOut: amountIn.Mul(m.Rate),
		ExpiresAt: time.Now().UTC().Add(30 * time.Second),
	}, nil
}

func (m *MockExchangeAdapter) ExecuteSwap(ctx context.Context, token AuthToken, req SwapRequest) (SwapResult, error) {
	if m.SwapDelay > 0 {
		select {
		case <-ctx.Done():
			return SwapResult{}, ctx.Err()
		case <-time.After(m.SwapDelay):
		}
	}
	if m.FailSwaps != nil {
		return SwapResult{}, m.FailSwaps
	}
	return SwapResult{
		SwapID:     "SWAP_" + uuid.NewString(),
		AmountIn:   req.AmountIn,
		AmountOut:  req.AmountIn.Mul(m.Rate),
		Rate:       m.Rate,
		ExecutedAt: time.Now().UTC(),
	}, nil
}

func (m *MockExchangeAdapter) GetLiquidityInfo(ctx context.Context, pair TradingPair) (LiquidityInfo, error) {
	return LiquidityInfo{Pair: pair, Depth: decimal.NewFromInt(1000000), UpdatedAt: time.Now().UTC()}, nil
}

func (m *MockExchangeAdapter) EstimateGas(ctx context.Context, network asset.Network) (GasEstimate, error) {
	return GasEstimate{Network: network, GasUnits: 21000, Cost: decimal.NewFromFloat(0.5)}, nil
}

var _ ExchangeAdapter = (*MockExchangeAdapter)(nil)
