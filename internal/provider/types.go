package provider

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"goldbridge/internal/asset"
)

// ID identifies a registered provider. The set is closed: dispatch happens
// through a registered-adapter table keyed by ID, never by free-form strings.
type ID string

const (
	Stripe           ID = "stripe"
	Plaid            ID = "plaid"
	OpenBanking      ID = "open_banking"
	Square           ID = "square"
	InternalExchange ID = "internal_exchange"
	MockBank         ID = "mock_bank"
	MockExchange     ID = "mock_exchange"
)

// Class separates banking-rail adapters from exchange adapters.
type Class string

const (
	ClassBanking  Class = "banking"
	ClassExchange Class = "exchange"
)

// Credentials carry whatever secret material an adapter needs to
// authenticate. Fields unused by a given provider stay empty.
type Credentials struct {
	APIKey   string
	ClientID string
	Secret   string
}

// AuthToken is an authenticated session with a provider.
type AuthToken struct {
	Provider  ID
	Token     string
	ExpiresAt time.Time
}

// Valid reports whether the token is usable at t.
func (a AuthToken) Valid(t time.Time) bool {
	return a.Token != "" && (a.ExpiresAt.IsZero() || t.Before(a.ExpiresAt))
}

// AccountBalance 表示银行侧账户余额。
type AccountBalance struct {
	AccountID string
	Currency  string
	Available decimal.Decimal
	Pending   decimal.Decimal
}

// PaymentRequest describes an outgoing banking payment.
type PaymentRequest struct {
	SourceAccount      string
	DestinationAccount string
	Amount             decimal.Decimal
	Currency           string
	Reference          string
}

// PaymentResponse is the provider's acknowledgment of a payment.
type PaymentResponse struct {
	PaymentID string
	Status    string
	Amount    decimal.Decimal
	Currency  string
	CreatedAt time.Time
}

// BankTransaction is one entry of an account's history.
type BankTransaction struct {
	ID        string
	Amount    decimal.Decimal
	Currency  string
	Direction string
	Reference string
	Timestamp time.Time
}

// HistoryParams bounds a history query.
type HistoryParams struct {
	AccountID string
	From      time.Time
	To        time.Time
	Limit     int
}

// AccountDetails identify an account for verification.
type AccountDetails struct {
	AccountID     string
	AccountNumber string
	RoutingNumber string
	HolderName    string
}

// VerificationResult reports account ownership verification.
type VerificationResult struct {
	Verified bool
	Reason   string
}

// TradingPair is a tradable pair on an exchange.
type TradingPair struct {
	Base  string
	Quote string
}

// Quote is an exchange price quote for a prospective swap.
type Quote struct {
	Pair      TradingPair
	Rate      decimal.Decimal
	AmountIn  decimal.Decimal
	AmountOut decimal.Decimal
	Slippage  decimal.Decimal
	ExpiresAt time.Time
}

// SwapRequest asks an exchange to execute a swap.
type SwapRequest struct {
	Pair        TradingPair
	AmountIn    decimal.Decimal
	MinOut      decimal.Decimal
	Destination string
}

// SwapResult is the executed swap outcome.
type SwapResult struct {
	SwapID     string
	AmountIn   decimal.Decimal
	AmountOut  decimal.Decimal
	Rate       decimal.Decimal
	ExecutedAt time.Time
}

// LiquidityInfo describes pool depth for a pair.
type LiquidityInfo struct {
	Pair      TradingPair
	Depth     decimal.Decimal
	UpdatedAt time.Time
}

// GasEstimate prices on-chain execution of a swap leg.
type GasEstimate struct {
	Network  asset.Network
	GasUnits uint64
	Cost     decimal.Decimal
}

// Adapter is implemented by every provider integration.
type Adapter interface {
	ID() ID
	Class() Class
	Authenticate(ctx context.Context, creds Credentials) (AuthToken, error)
}

// BankingAdapter is the capability set of banking-rail providers.
type BankingAdapter interface {
	Adapter
	GetAccountBalance(ctx context.Context, token AuthToken, accountID string) (AccountBalance, error)
	InitiatePayment(ctx context.Context, token AuthToken, req PaymentRequest) (PaymentResponse, error)
	GetTransactionHistory(ctx context.Context, token AuthToken, params HistoryParams) ([]BankTransaction, error)
	VerifyAccount(ctx context.Context, token AuthToken, details AccountDetails) (VerificationResult, error)
	GetSupportedCurrencies(ctx context.Context) ([]string, error)
	GetExchangeRates(ctx context.Context, base string) (map[string]decimal.Decimal, error)
}

// ExchangeAdapter is the capability set of crypto exchange providers.
type ExchangeAdapter interface {
	Adapter
	GetSupportedPairs(ctx context.Context) ([]TradingPair, error)
	GetQuote(ctx context.Context, pair TradingPair, amountIn decimal.Decimal) (Quote, error)
	ExecuteSwap(ctx context.Context, token AuthToken, req SwapRequest) (SwapResult, error)
	GetLiquidityInfo(ctx context.Context, pair TradingPair) (LiquidityInfo, error)
	EstimateGas(ctx context.Context, network asset.Network) (GasEstimate, error)
}
