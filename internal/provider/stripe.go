package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Stripe amounts are integer minor units (cents).
var minorUnits = decimal.NewFromInt(100)

// StripeOptions parameterise the Stripe adapter.
type StripeOptions struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// StripeAdapter talks to the Stripe API for fiat-rail legs.
type StripeAdapter struct {
	opts    StripeOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewStripeAdapter constructs a Stripe banking adapter.
func NewStripeAdapter(opts StripeOptions, logger zerolog.Logger) *StripeAdapter {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.stripe.com/v1"
	}

	return &StripeAdapter{
		opts:    opts,
		logger:  logger.With().Str("component", "stripe_adapter").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

func (s *StripeAdapter) ID() ID       { return Stripe }
func (s *StripeAdapter) Class() Class { return ClassBanking }

// Authenticate validates the API key against the /account endpoint. Stripe
// keys do not expire, so the returned token carries no expiry.
func (s *StripeAdapter) Authenticate(ctx context.Context, creds Credentials) (AuthToken, error) {
	key := creds.APIKey
	if key == "" {
		key = s.opts.APIKey
	}
	if key == "" {
		return AuthToken{}, errors.New("stripe api key required")
	}

	var acct struct {
		ID string `json:"id"`
	}
	if err := s.do(ctx, http.MethodGet, "/account", key, nil, &acct); err != nil {
		return AuthToken{}, err
	}
	if acct.ID == "" {
		return AuthToken{}, errors.New("stripe account id missing in response")
	}

	return AuthToken{Provider: Stripe, Token: key}, nil
}

// GetAccountBalance reads available balance for the account's currency.
func (s *StripeAdapter) GetAccountBalance(ctx context.Context, token AuthToken, accountID string) (AccountBalance, error) {
	var res struct {
		Available []stripeFunds `json:"available"`
		Pending   []stripeFunds `json:"pending"`
	}
	if err := s.do(ctx, http.MethodGet, "/balance", token.Token, nil, &res); err != nil {
		return AccountBalance{}, err
	}
	if len(res.Available) == 0 {
		return AccountBalance{}, errors.New("stripe balance response empty")
	}

	balance := AccountBalance{
		AccountID: accountID,
		Currency:  strings.ToUpper(res.Available[0].Currency),
		Available: decimal.NewFromInt(res.Available[0].Amount).Div(minorUnits),
	}
	if len(res.Pending) > 0 {
		balance.Pending = decimal.NewFromInt(res.Pending[0].Amount).Div(minorUnits)
	}
	return balance, nil
}

// InitiatePayment creates a payout towards the destination account.
func (s *StripeAdapter) InitiatePayment(ctx context.Context, token AuthToken, req PaymentRequest) (PaymentResponse, error) {
	if req.Amount.Sign() <= 0 {
		return PaymentResponse{}, errors.New("payment amount must be greater than zero")
	}

	form := url.Values{}
	form.Set("amount", req.Amount.Mul(minorUnits).Round(0).StringFixed(0))
	form.Set("currency", strings.ToLower(req.Currency))
	form.Set("destination", req.DestinationAccount)
	if req.Reference != "" {
		form.Set("description", req.Reference)
	}

	var res struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Created  int64  `json:"created"`
	}
	if err := s.do(ctx, http.MethodPost, "/payouts", token.Token, form, &res); err != nil {
		return PaymentResponse{}, err
	}

	return PaymentResponse{
		PaymentID: res.ID,
		Status:    res.Status,
		Amount:    decimal.NewFromInt(res.Amount).Div(minorUnits),
		Currency:  strings.ToUpper(res.Currency),
		CreatedAt: time.Unix(res.Created, 0).UTC(),
	}, nil
}

// GetTransactionHistory lists balance transactions.
func (s *StripeAdapter) GetTransactionHistory(ctx context.Context, token AuthToken, params HistoryParams) ([]BankTransaction, error) {
	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	path := fmt.Sprintf("/balance_transactions?limit=%d", limit)
	var res struct {
		Data []struct {
			ID          string `json:"id"`
			Amount      int64  `json:"amount"`
			Currency    string `json:"currency"`
			Description string `json:"description"`
			Created     int64  `json:"created"`
		} `json:"data"`
	}
	if err := s.do(ctx, http.MethodGet, path, token.Token, nil, &res); err != nil {
		return nil, err
	}

	txs := make([]BankTransaction, 0, len(res.Data))
	for _, item := range res.Data {
		direction := "credit"
		if item.Amount < 0 {
			direction = "debit"
		}
		txs = append(txs, BankTransaction{
			ID:        item.ID,
			Amount:    decimal.NewFromInt(item.Amount).Div(minorUnits).Abs(),
			Currency:  strings.ToUpper(item.Currency),
			Direction: direction,
			Reference: item.Description,
			Timestamp: time.Unix(item.Created, 0).UTC(),
		})
	}
	return txs, nil
}

// VerifyAccount creates a verification token for the bank account details.
func (s *StripeAdapter) VerifyAccount(ctx context.Context, token AuthToken, details AccountDetails) (VerificationResult, error) {
	form := url.Values{}
	form.Set("bank_account[account_number]", details.AccountNumber)
	form.Set("bank_account[routing_number]", details.RoutingNumber)
	form.Set("bank_account[account_holder_name]", details.HolderName)
	form.Set("bank_account[country]", "US")

	var res struct {
		ID string `json:"id"`
	}
	if err := s.do(ctx, http.MethodPost, "/tokens", token.Token, form, &res); err != nil {
		return VerificationResult{Verified: false, Reason: err.Error()}, nil
	}
	return VerificationResult{Verified: res.ID != ""}, nil
}

// GetSupportedCurrencies returns the payout currencies the bridge routes
// through Stripe.
func (s *StripeAdapter) GetSupportedCurrencies(ctx context.Context) ([]string, error) {
	return []string{"USD", "EUR", "GBP", "SGD", "JPY"}, nil
}

// GetExchangeRates is unsupported on Stripe; fiat FX comes from the oracle.
func (s *StripeAdapter) GetExchangeRates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	return nil, errors.New("stripe does not expose exchange rates")
}

func (s *StripeAdapter) do(ctx context.Context, method, path, key string, form url.Values, out interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return parseStripeError(resp.StatusCode, payload)
	}
	return json.Unmarshal(payload, out)
}

func parseStripeError(status int, payload []byte) error {
	var apiErr struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("stripe api error (%d): %s", status, apiErr.Error.Message)
	}
	if len(payload) > 0 {
		return fmt.Errorf("stripe api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("stripe api error (%d)", status)
}

type stripeFunds struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

var _ BankingAdapter = (*StripeAdapter)(nil)
