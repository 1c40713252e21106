package oracle

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

const quotePath = "/v1/quote"

// HTTPOptions parameterise the HTTP price source.
type HTTPOptions struct {
	BaseURL   string
	Symbol    string
	Target    decimal.Decimal
	Timeout   time.Duration
	UserAgent string
}

// HTTP fetches the gold spot price from a REST quote endpoint.
type HTTP struct {
	opts    HTTPOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewHTTP constructs an HTTP price source.
func NewHTTP(opts HTTPOptions, logger zerolog.Logger) *HTTP {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTP{
		opts:    opts,
		logger:  logger.With().Str("component", "oracle_http").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// CurrentPrice retrieves and parses the quote.
func (h *HTTP) CurrentPrice(ctx context.Context) (Sample, error) {
	if h.baseURL == "" {
		return Sample{}, errors.New("oracle base url not configured")
	}
	symbol := h.opts.Symbol
	if symbol == "" {
		symbol = "XAU"
	}

	endpoint := h.baseURL + quotePath + "?symbol=" + url.QueryEscape(symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Sample{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(h.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "goldbridge/1.0")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return Sample{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Sample{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Sample{}, parseQuoteError(resp.StatusCode, payload)
	}

	var res struct {
		Symbol    string `json:"symbol"`
		Price     string `json:"price"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := json.Unmarshal(payload, &res); err != nil {
		return Sample{}, err
	}

	price, err := decimal.NewFromString(res.Price)
	if err != nil {
		return Sample{}, fmt.Errorf("parse price: %w", err)
	}
	if price.IsZero() {
		return Sample{}, errors.New("quote returned zero price")
	}

	observed := time.Now().UTC()
	if res.Timestamp > 0 {
		observed = time.Unix(res.Timestamp, 0).UTC()
	}

	return Sample{
		Symbol:     symbol,
		Price:      price,
		Target:     h.opts.Target,
		ObservedAt: observed,
	}, nil
}

func parseQuoteError(status int, payload []byte) error {
	var apiErr struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("oracle api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("oracle api error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("oracle api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("oracle api error (%d)", status)
}

var _ Source = (*HTTP)(nil)
