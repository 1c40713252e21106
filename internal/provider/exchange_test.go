package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func newTestExchange() *Exchange {
	return NewExchange(ExchangeOptions{
		NativeUSDRate:     decimal.NewFromInt(84),
		LiquidityPool:     decimal.NewFromInt(2000000),
		Volatility:        decimal.NewFromFloat(0.15),
		SlippageTolerance: decimal.NewFromFloat(0.01),
	}, noopLogger())
}

func TestExchangeQuoteSlippageGrowsWithSize(t *testing.T) {
	e := newTestExchange()
	pair := TradingPair{Base: "GLD", Quote: "USD"}

	small, err := e.GetQuote(context.Background(), pair, decimal.NewFromInt(1000))
	if err != nil {
		t.Fatalf("quote 失败: %v", err)
	}
	large, err := e.GetQuote(context.Background(), pair, decimal.NewFromInt(500000))
	if err != nil {
		t.Fatalf("quote 失败: %v", err)
	}

	if !large.Slippage.GreaterThan(small.Slippage) {
		t.Fatalf("大额交易滑点应更高: %s vs %s", large.Slippage, small.Slippage)
	}
	if !small.AmountOut.LessThan(small.AmountIn.Mul(small.Rate)) {
		t.Fatalf("滑点应降低产出: %s", small.AmountOut)
	}
}

func TestExchangeUnsupportedPair(t *testing.T) {
	e := newTestExchange()

	_, err := e.GetQuote(context.Background(), TradingPair{Base: "BTC", Quote: "USD"}, decimal.NewFromInt(1))
	if !errors.Is(err, ErrUnsupportedPair) {
		t.Fatalf("未配置 pair 应返回 ErrUnsupportedPair, 实际 %v", err)
	}
}

func TestExchangeSwapWithinTolerance(t *testing.T) {
	e := newTestExchange()
	pair := TradingPair{Base: "GLD", Quote: "USD"}

	res, err := e.ExecuteSwap(context.Background(), AuthToken{}, SwapRequest{Pair: pair, AmountIn: decimal.NewFromInt(1000)})
	if err != nil {
		t.Fatalf("swap 失败: %v", err)
	}
	if res.SwapID == "" {
		t.Fatal("swap id 不应为空")
	}
	if res.AmountOut.Sign() <= 0 {
		t.Fatalf("产出应为正: %s", res.AmountOut)
	}
}

func TestExchangeSwapToleranceExceeded(t *testing.T) {
	e := NewExchange(ExchangeOptions{
		NativeUSDRate:     decimal.NewFromInt(84),
		LiquidityPool:     decimal.NewFromInt(10000),
		Volatility:        decimal.NewFromInt(1),
		SlippageTolerance: decimal.NewFromFloat(0.01),
	}, noopLogger())

	// 5000/10000 * 1.0 = 50% slippage, far over the 1% tolerance.
	_, err := e.ExecuteSwap(context.Background(), AuthToken{}, SwapRequest{
		Pair:     TradingPair{Base: "GLD", Quote: "USD"},
		AmountIn: decimal.NewFromInt(5000),
	})
	if !errors.Is(err, ErrSlippageExceeded) {
		t.Fatalf("超过容忍度应拒绝执行, 实际 %v", err)
	}
}

func TestExchangeSwapMinOutRejected(t *testing.T) {
	e := newTestExchange()

	_, err := e.ExecuteSwap(context.Background(), AuthToken{}, SwapRequest{
		Pair:     TradingPair{Base: "GLD", Quote: "USD"},
		AmountIn: decimal.NewFromInt(100),
		MinOut:   decimal.NewFromInt(10000),
	})
	if !errors.Is(err, ErrSlippageExceeded) {
		t.Fatalf("产出低于 MinOut 应拒绝, 实际 %v", err)
	}
}

func TestExchangeSetRateRefreshesQuotes(t *testing.T) {
	e := newTestExchange()
	pair := TradingPair{Base: "GLD", Quote: "USD"}

	if err := e.SetRate(pair, decimal.NewFromInt(90)); err != nil {
		t.Fatalf("set rate 失败: %v", err)
	}
	q, err := e.GetQuote(context.Background(), pair, decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("quote 失败: %v", err)
	}
	if !q.Rate.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("rate 未刷新: %s", q.Rate)
	}

	if err := e.SetRate(pair, decimal.Zero); err == nil {
		t.Fatal("零 rate 应被拒绝")
	}
}
