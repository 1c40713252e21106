package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PlaidOptions parameterise the Plaid adapter.
type PlaidOptions struct {
	ClientID    string
	Secret      string
	Environment string
	BaseURL     string
	Timeout     time.Duration
}

// PlaidAdapter reads account data through the Plaid API. Plaid is a
// read-side aggregator: it cannot move money, so InitiatePayment is
// rejected and fiat debits route through Stripe instead.
type PlaidAdapter struct {
	opts    PlaidOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewPlaidAdapter constructs a Plaid banking adapter.
func NewPlaidAdapter(opts PlaidOptions, logger zerolog.Logger) *PlaidAdapter {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		env := opts.Environment
		if env == "" {
			env = "sandbox"
		}
		baseURL = fmt.Sprintf("https://%s.plaid.com", env)
	}

	return &PlaidAdapter{
		opts:    opts,
		logger:  logger.With().Str("component", "plaid_adapter").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

func (p *PlaidAdapter) ID() ID       { return Plaid }
func (p *PlaidAdapter) Class() Class { return ClassBanking }

// Authenticate exchanges a public token for an access token.
func (p *PlaidAdapter) Authenticate(ctx context.Context, creds Credentials) (AuthToken, error) {
	clientID := creds.ClientID
	if clientID == "" {
		clientID = p.opts.ClientID
	}
	secret := creds.Secret
	if secret == "" {
		secret = p.opts.Secret
	}
	if clientID == "" || secret == "" {
		return AuthToken{}, errors.New("plaid client_id and secret required")
	}

	payload := map[string]string{
		"client_id":    clientID,
		"secret":       secret,
		"public_token": creds.APIKey,
	}
	var res struct {
		AccessToken string `json:"access_token"`
	}
	if err := p.do(ctx, "/item/public_token/exchange", payload, &res); err != nil {
		return AuthToken{}, err
	}
	if res.AccessToken == "" {
		return AuthToken{}, errors.New("plaid access_token missing in response")
	}

	// Plaid access tokens do not expire on a fixed schedule; sessions are
	// refreshed daily as a hygiene measure.
	return AuthToken{
		Provider:  Plaid,
		Token:     res.AccessToken,
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	}, nil
}

// GetAccountBalance reads the account's available balance.
func (p *PlaidAdapter) GetAccountBalance(ctx context.Context, token AuthToken, accountID string) (AccountBalance, error) {
	payload := map[string]interface{}{
		"client_id":    p.opts.ClientID,
		"secret":       p.opts.Secret,
		"access_token": token.Token,
	}
	var res struct {
		Accounts []struct {
			AccountID string `json:"account_id"`
			Balances  struct {
				Available    json.Number `json:"available"`
				Current      json.Number `json:"current"`
				CurrencyCode string      `json:"iso_currency_code"`
			} `json:"balances"`
		} `json:"accounts"`
	}
	if err := p.do(ctx, "/accounts/balance/get", payload, &res); err != nil {
		return AccountBalance{}, err
	}

	for _, acct := range res.Accounts {
		if accountID != "" && acct.AccountID != accountID {
			continue
		}
		available, err := decimal.NewFromString(acct.Balances.Available.String())
		if err != nil {
			return AccountBalance{}, fmt.Errorf("parse available balance: %w", err)
		}
		return AccountBalance{
			AccountID: acct.AccountID,
			Currency:  acct.Balances.CurrencyCode,
			Available: available,
		}, nil
	}
	return AccountBalance{}, fmt.Errorf("plaid account %q not found", accountID)
}

// InitiatePayment is not supported: Plaid 只读, 无法发起支付。
func (p *PlaidAdapter) InitiatePayment(ctx context.Context, token AuthToken, req PaymentRequest) (PaymentResponse, error) {
	return PaymentResponse{}, errors.New("plaid adapter is read-only, route payments through stripe")
}

// GetTransactionHistory lists account transactions in the window.
func (p *PlaidAdapter) GetTransactionHistory(ctx context.Context, token AuthToken, params HistoryParams) ([]BankTransaction, error) {
	payload := map[string]interface{}{
		"client_id":    p.opts.ClientID,
		"secret":       p.opts.Secret,
		"access_token": token.Token,
		"start_date":   params.From.Format("2006-01-02"),
		"end_date":     params.To.Format("2006-01-02"),
	}
	var res struct {
		Transactions []struct {
			TransactionID string      `json:"transaction_id"`
			Amount        json.Number `json:"amount"`
			CurrencyCode  string      `json:"iso_currency_code"`
			Name          string      `json:"name"`
			Date          string      `json:"date"`
		} `json:"transactions"`
	}
	if err := p.do(ctx, "/transactions/get", payload, &res); err != nil {
		return nil, err
	}

	txs := make([]BankTransaction, 0, len(res.Transactions))
	for _, item := range res.Transactions {
		amount, err := decimal.NewFromString(item.Amount.String())
		if err != nil {
			return nil, fmt.Errorf("parse transaction amount: %w", err)
		}
		// Plaid reports outflows as positive amounts.
		direction := "debit"
		if amount.Sign() < 0 {
			direction = "credit"
		}
		ts, _ := time.Parse("2006-01-02", item.Date)
		txs = append(txs, BankTransaction{
			ID:        item.TransactionID,
			Amount:    amount.Abs(),
			Currency:  item.CurrencyCode,
			Direction: direction,
			Reference: item.Name,
			Timestamp: ts,
		})
		if params.Limit > 0 && len(txs) >= params.Limit {
			break
		}
	}
	return txs, nil
}

// VerifyAccount matches the holder name against the identity endpoint.
func (p *PlaidAdapter) VerifyAccount(ctx context.Context, token AuthToken, details AccountDetails) (VerificationResult, error) {
	payload := map[string]interface{}{
		"client_id":    p.opts.ClientID,
		"secret":       p.opts.Secret,
		"access_token": token.Token,
	}
	var res struct {
		Accounts []struct {
			AccountID string `json:"account_id"`
			Owners    []struct {
				Names []string `json:"names"`
			} `json:"owners"`
		} `json:"accounts"`
	}
	if err := p.do(ctx, "/identity/get", payload, &res); err != nil {
		return VerificationResult{}, err
	}

	want := strings.ToLower(strings.TrimSpace(details.HolderName))
	for _, acct := range res.Accounts {
		if details.AccountID != "" && acct.AccountID != details.AccountID {
			continue
		}
		for _, owner := range acct.Owners {
			for _, name := range owner.Names {
				if strings.ToLower(strings.TrimSpace(name)) == want {
					return VerificationResult{Verified: true}, nil
				}
			}
		}
	}
	return VerificationResult{Verified: false, Reason: "holder name does not match account identity"}, nil
}

// GetSupportedCurrencies reports currencies Plaid items can carry.
func (p *PlaidAdapter) GetSupportedCurrencies(ctx context.Context) ([]string, error) {
	return []string{"USD", "CAD", "GBP", "EUR"}, nil
}

// GetExchangeRates is unsupported on Plaid.
func (p *PlaidAdapter) GetExchangeRates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	return nil, errors.New("plaid does not expose exchange rates")
}

func (p *PlaidAdapter) do(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			ErrorCode    string `json:"error_code"`
			ErrorMessage string `json:"error_message"`
		}
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.ErrorMessage != "" {
			return fmt.Errorf("plaid api error (%d) %s: %s", resp.StatusCode, apiErr.ErrorCode, apiErr.ErrorMessage)
		}
		return fmt.Errorf("plaid api error (%d)", resp.StatusCode)
	}
	return json.Unmarshal(raw, out)
}

var _ BankingAdapter = (*PlaidAdapter)(nil)
