package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestGatewayUnregisteredProvider(t *testing.T) {
	g := NewGateway(GatewayOptions{}, noopLogger())

	_, err := g.Authenticate(context.Background(), Stripe, Credentials{})
	if !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("未注册 provider 应返回 ErrNotRegistered, 实际 %v", err)
	}
}

func TestGatewayRoutesToRegisteredAdapter(t *testing.T) {
	g := NewGateway(GatewayOptions{}, noopLogger())
	bank := NewMockBank(map[string]decimal.Decimal{"acct_1": decimal.NewFromInt(500)})
	g.Register(bank)

	token, err := g.Authenticate(context.Background(), MockBank, Credentials{})
	if err != nil {
		t.Fatalf("authenticate 失败: %v", err)
	}

	balance, err := g.GetAccountBalance(context.Background(), MockBank, token, "acct_1")
	if err != nil {
		t.Fatalf("get balance 失败: %v", err)
	}
	if !balance.Available.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("余额错误: %s", balance.Available)
	}
}

func TestGatewayClassMismatch(t *testing.T) {
	g := NewGateway(GatewayOptions{}, noopLogger())
	g.Register(NewMockExchange(decimal.NewFromInt(84)))

	_, err := g.GetAccountBalance(context.Background(), MockExchange, AuthToken{}, "acct_1")
	if !errors.Is(err, ErrWrongClass) {
		t.Fatalf("exchange adapter 收到 banking 调用应返回 ErrWrongClass, 实际 %v", err)
	}
}

func TestGatewayBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	g := NewGateway(GatewayOptions{}, noopLogger())
	bank := NewMockBank(nil)
	bank.FailPayments = errors.New("upstream down")
	g.Register(bank)

	req := PaymentRequest{SourceAccount: "a", DestinationAccount: "b", Amount: decimal.NewFromInt(1), Currency: "USD"}
	for i := 0; i < 3; i++ {
		if _, err := g.InitiatePayment(context.Background(), MockBank, AuthToken{}, req); err == nil {
			t.Fatal("失败注入未生效")
		}
	}

	_, err := g.InitiatePayment(context.Background(), MockBank, AuthToken{}, req)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("连续失败后熔断器应打开, 实际 %v", err)
	}
}

func TestGatewayRegisteredList(t *testing.T) {
	g := NewGateway(GatewayOptions{}, noopLogger())
	g.Register(NewMockBank(nil))
	g.Register(NewMockExchange(decimal.NewFromInt(84)))

	ids := g.Registered()
	if len(ids) != 2 {
		t.Fatalf("应有 2 个已注册 provider, 实际 %d", len(ids))
	}
}

func TestBreakerTripRatioFromOptions(t *testing.T) {
	st := breakerSettings(Stripe, 0.5)
	if st.ReadyToTrip(gobreaker.Counts{Requests: 40, TotalFailures: 10}) {
		t.Fatal("25% 失败率不应触发 50% 阈值")
	}
	if !st.ReadyToTrip(gobreaker.Counts{Requests: 40, TotalFailures: 30}) {
		t.Fatal("75% 失败率应触发 50% 阈值")
	}

	// 未配置时回退默认 5%。
	st = breakerSettings(Stripe, 0)
	if !st.ReadyToTrip(gobreaker.Counts{Requests: 40, TotalFailures: 4}) {
		t.Fatal("10% 失败率应触发默认 5% 阈值")
	}
}
