package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestStripeAuthenticateMissingKey(t *testing.T) {
	s := NewStripeAdapter(StripeOptions{}, noopLogger())
	if _, err := s.Authenticate(context.Background(), Credentials{}); err == nil {
		t.Fatal("缺少 api key 时应返回错误")
	}
}

func TestStripeAuthenticateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk_test_123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "acct_1"})
	}))
	defer srv.Close()

	s := NewStripeAdapter(StripeOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	token, err := s.Authenticate(context.Background(), Credentials{APIKey: "sk_test_123"})
	if err != nil {
		t.Fatalf("authenticate 失败: %v", err)
	}
	if token.Token != "sk_test_123" {
		t.Fatalf("token 错误: %s", token.Token)
	}
}

func TestStripeGetAccountBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"available": []map[string]any{{"amount": 123450, "currency": "usd"}},
			"pending":   []map[string]any{{"amount": 500, "currency": "usd"}},
		})
	}))
	defer srv.Close()

	s := NewStripeAdapter(StripeOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	balance, err := s.GetAccountBalance(context.Background(), AuthToken{Token: "sk"}, "acct_1")
	if err != nil {
		t.Fatalf("get balance 失败: %v", err)
	}
	if !balance.Available.Equal(decimal.NewFromFloat(1234.50)) {
		t.Fatalf("余额应从分转换为元: %s", balance.Available)
	}
	if balance.Currency != "USD" {
		t.Fatalf("币种错误: %s", balance.Currency)
	}
}

func TestStripeInitiatePaymentConvertsToMinorUnits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("amount"); got != "2550" {
			t.Fatalf("金额应为 2550 分, 实际 %s", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       "po_1",
			"status":   "pending",
			"amount":   2550,
			"currency": "usd",
			"created":  1700000000,
		})
	}))
	defer srv.Close()

	s := NewStripeAdapter(StripeOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	res, err := s.InitiatePayment(context.Background(), AuthToken{Token: "sk"}, PaymentRequest{
		DestinationAccount: "acct_dest",
		Amount:             decimal.NewFromFloat(25.50),
		Currency:           "USD",
	})
	if err != nil {
		t.Fatalf("payment 失败: %v", err)
	}
	if res.PaymentID != "po_1" {
		t.Fatalf("payment id 错误: %s", res.PaymentID)
	}
	if !res.Amount.Equal(decimal.NewFromFloat(25.50)) {
		t.Fatalf("金额回转错误: %s", res.Amount)
	}
}

func TestStripeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"type": "card_error", "message": "insufficient funds"},
		})
	}))
	defer srv.Close()

	s := NewStripeAdapter(StripeOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	_, err := s.InitiatePayment(context.Background(), AuthToken{Token: "sk"}, PaymentRequest{
		Amount: decimal.NewFromInt(10), Currency: "USD",
	})
	if err == nil {
		t.Fatal("HTTP 402 应返回错误")
	}
}
