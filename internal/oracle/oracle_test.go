package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestStaticSource(t *testing.T) {
	s := NewStatic("XAU", decimal.NewFromFloat(85.2), decimal.NewFromInt(84))

	sample, err := s.CurrentPrice(context.Background())
	if err != nil {
		t.Fatalf("static source 不应报错: %v", err)
	}
	if !sample.Price.Equal(decimal.NewFromFloat(85.2)) {
		t.Fatalf("价格错误: %s", sample.Price)
	}
	if sample.ObservedAt.IsZero() {
		t.Fatal("ObservedAt 不应为零值")
	}
}

func TestHTTPSourceSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "XAU" {
			t.Fatalf("symbol 参数错误: %s", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"symbol":    "XAU",
			"price":     "85.20",
			"timestamp": time.Now().Unix(),
		})
	}))
	defer srv.Close()

	h := NewHTTP(HTTPOptions{
		BaseURL: srv.URL,
		Symbol:  "XAU",
		Target:  decimal.NewFromInt(84),
		Timeout: time.Second,
	}, noopLogger())

	sample, err := h.CurrentPrice(context.Background())
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if !sample.Price.Equal(decimal.NewFromFloat(85.20)) {
		t.Fatalf("价格错误: %s", sample.Price)
	}
	if !sample.Target.Equal(decimal.NewFromInt(84)) {
		t.Fatalf("目标价错误: %s", sample.Target)
	}
}

func TestHTTPSourceAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "upstream down"})
	}))
	defer srv.Close()

	h := NewHTTP(HTTPOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := h.CurrentPrice(context.Background()); err == nil {
		t.Fatal("HTTP 503 应返回错误")
	}
}

func TestHTTPSourceZeroPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"symbol": "XAU", "price": "0"})
	}))
	defer srv.Close()

	h := NewHTTP(HTTPOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := h.CurrentPrice(context.Background()); err == nil {
		t.Fatal("零价格应返回错误")
	}
}

func TestCacheStalenessWindow(t *testing.T) {
	c := NewCache(10 * time.Minute)

	if _, _, ok := c.Quote(); ok {
		t.Fatal("空缓存不应提供报价")
	}

	c.Store(Sample{
		Symbol:     "XAU",
		Price:      decimal.NewFromFloat(85.2),
		Target:     decimal.NewFromInt(84),
		ObservedAt: time.Now().UTC(),
	})

	current, target, ok := c.Quote()
	if !ok {
		t.Fatal("新鲜样本应提供报价")
	}
	if !current.Equal(decimal.NewFromFloat(85.2)) || !target.Equal(decimal.NewFromInt(84)) {
		t.Fatalf("报价错误: %s / %s", current, target)
	}

	// Age the sample beyond the window.
	c.Store(Sample{
		Symbol:     "XAU",
		Price:      decimal.NewFromFloat(85.2),
		Target:     decimal.NewFromInt(84),
		ObservedAt: time.Now().UTC().Add(-time.Hour),
	})
	if _, _, ok := c.Quote(); ok {
		t.Fatal("过期样本不应提供报价")
	}
}

func TestCacheMissingTargetNoQuote(t *testing.T) {
	c := NewCache(time.Hour)
	c.Store(Sample{Symbol: "XAU", Price: decimal.NewFromFloat(85.2), ObservedAt: time.Now().UTC()})

	if _, _, ok := c.Quote(); ok {
		t.Fatal("缺少目标价时不应提供报价")
	}
}
