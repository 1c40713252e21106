package bridge

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"goldbridge/internal/asset"
	"goldbridge/internal/fees"
	"goldbridge/internal/ledger"
	"goldbridge/internal/provider"
)

type testEnv struct {
	manager *Manager
	gateway *provider.Gateway
	ledger  *ledger.Memory
	bank    *provider.MockBankAdapter
	ex      *provider.MockExchangeAdapter
}

func newTestEnv(t *testing.T, balances map[string]decimal.Decimal) *testEnv {
	t.Helper()

	gw := provider.NewGateway(provider.GatewayOptions{}, zerolog.Nop())
	bank := provider.NewMockBank(map[string]decimal.Decimal{"acct_src": decimal.NewFromInt(100000)})
	ex := provider.NewMockExchange(decimal.NewFromInt(84))
	gw.Register(bank)
	gw.Register(ex)

	mem := ledger.NewMemory(balances)
	engine := fees.NewEngine(fees.DefaultSchedule(), nil)

	m := NewManager(engine, gw, mem, Options{
		ProviderTimeout: 500 * time.Millisecond,
		QueueSize:       16,
		MinConfirmations: map[asset.Network]int{
			asset.NetworkGold:     1,
			asset.NetworkEthereum: 12,
		},
		OmnibusAccount: "OMNIBUS",
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	m.Start(ctx)

	return &testEnv{manager: m, gateway: gw, ledger: mem, bank: bank, ex: ex}
}

func waitForStatus(t *testing.T, m *Manager, id string, want Status) Transaction {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		tx, err := m.GetTransaction(id)
		if err != nil {
			t.Fatalf("get transaction 失败: %v", err)
		}
		if tx.Status == want {
			return tx
		}
		if tx.Status.Terminal() && tx.Status != want {
			t.Fatalf("交易进入意外终态 %s (期望 %s), reason=%s", tx.Status, want, tx.FailureReason)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("等待状态 %s 超时", want)
	return Transaction{}
}

func lockOp(amount int64) Operation {
	return Operation{
		Kind:              asset.OpLock,
		SourceAsset:       asset.Native(),
		DestinationAsset:  asset.Crypto("wGLD", asset.NetworkEthereum),
		Amount:            decimal.NewFromInt(amount),
		SourceWallet:      "w_src",
		DestinationWallet: "w_dst",
	}
}

func TestLockCompletesThroughWorker(t *testing.T) {
	env := newTestEnv(t, map[string]decimal.Decimal{"w_src": decimal.NewFromInt(5000)})

	tx, err := env.manager.InitiateBridge(context.Background(), lockOp(1000), "")
	if err != nil {
		t.Fatalf("initiate 失败: %v", err)
	}
	if tx.Status != StatusProcessing {
		t.Fatalf("initiate 应返回 Processing, 实际 %s", tx.Status)
	}

	final := waitForStatus(t, env.manager, tx.ID, StatusCompleted)
	if final.CompletedAt == nil {
		t.Fatal("CompletedAt 未设置")
	}
	if final.Confirmations != final.RequiredConfirmations {
		t.Fatalf("确认数未到位: %d/%d", final.Confirmations, final.RequiredConfirmations)
	}
	if final.RequiredConfirmations != 12 {
		t.Fatalf("ethereum 目标网络应需要 12 次确认, 实际 %d", final.RequiredConfirmations)
	}
	if final.Metadata["stage"] != "settled" {
		t.Fatalf("metadata stage 错误: %q", final.Metadata["stage"])
	}

	src, _ := env.ledger.GetBalance(context.Background(), "w_src")
	dst, _ := env.ledger.GetBalance(context.Background(), "w_dst")
	if !src.Equal(decimal.NewFromInt(4000)) {
		t.Fatalf("源钱包余额错误: %s", src)
	}
	if !dst.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("目标钱包余额错误: %s", dst)
	}
}

func TestValidationErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	op := lockOp(0)
	if _, err := env.manager.InitiateBridge(context.Background(), op, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("零金额应返回 ErrValidation, 实际 %v", err)
	}

	op = lockOp(10)
	op.DestinationAsset = asset.Crypto("X", asset.Network("dogecoin"))
	if _, err := env.manager.InitiateBridge(context.Background(), op, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("未知网络应返回 ErrValidation, 实际 %v", err)
	}

	op = lockOp(10)
	op.Kind = asset.OperationKind("teleport")
	if _, err := env.manager.InitiateBridge(context.Background(), op, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("未知操作类型应返回 ErrValidation, 实际 %v", err)
	}
}

func TestInsufficientFundsFailsWithMetadata(t *testing.T) {
	env := newTestEnv(t, map[string]decimal.Decimal{"w_src": decimal.NewFromInt(10)})

	tx, err := env.manager.InitiateBridge(context.Background(), lockOp(1000), "")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("透支应返回 ErrInsufficientFunds, 实际 %v", err)
	}
	if tx.Status != StatusFailed {
		t.Fatalf("交易应为 Failed, 实际 %s", tx.Status)
	}
	if tx.FailureReason != "InsufficientFunds" {
		t.Fatalf("failure reason 错误: %s", tx.FailureReason)
	}
	if tx.Metadata["failed_stage"] != "source_debit" {
		t.Fatalf("metadata 应记录失败阶段: %q", tx.Metadata["failed_stage"])
	}
}

func TestProviderTimeoutFailsTransaction(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ex.SwapDelay = 2 * time.Second

	op := Operation{
		Kind:              asset.OpCryptoToCrypto,
		SourceAsset:       asset.Crypto("ETH", asset.NetworkEthereum),
		DestinationAsset:  asset.Native(),
		Amount:            decimal.NewFromInt(5),
		SourceProvider:    provider.MockExchange,
		DestinationWallet: "w_dst",
	}

	tx, err := env.manager.InitiateBridge(context.Background(), op, "")
	if err == nil {
		t.Fatal("超时应返回错误")
	}
	if tx.FailureReason != ReasonProviderTimeout {
		t.Fatalf("failure reason 应为 ProviderTimeout, 实际 %s", tx.FailureReason)
	}
	if tx.Status != StatusFailed {
		t.Fatalf("交易应为 Failed, 实际 %s", tx.Status)
	}
}

func TestMidFlightFailureRetainsSourceLegMetadata(t *testing.T) {
	env := newTestEnv(t, map[string]decimal.Decimal{"w_src": decimal.NewFromInt(5000)})

	// Force the destination payment to fail after the source debit
	// succeeded.
	env.bank.FailPayments = errors.New("bank offline")

	op := Operation{
		Kind:                asset.OpCryptoToFiat,
		SourceAsset:         asset.Native(),
		DestinationAsset:    asset.Fiat("USD"),
		Amount:              decimal.NewFromInt(100),
		DestinationProvider: provider.MockBank,
		SourceWallet:        "w_src",
		DestinationAccount:  "acct_dst",
	}

	tx, err := env.manager.InitiateBridge(context.Background(), op, "")
	if err != nil {
		t.Fatalf("initiate 失败: %v", err)
	}

	final := waitForStatus(t, env.manager, tx.ID, StatusFailed)
	if final.FailureReason != ReasonProviderError {
		t.Fatalf("failure reason 错误: %s", final.FailureReason)
	}
	// The source debit already executed; the trail must show it.
	if final.Metadata["source_debit_entry"] == "" {
		t.Fatal("metadata 应保留源侧扣款记录")
	}
	if final.Metadata["failed_stage"] != "destination_payment" {
		t.Fatalf("metadata 应记录失败阶段: %q", final.Metadata["failed_stage"])
	}

	// No automatic rollback: the debit stays in place for the reconciler.
	src, _ := env.ledger.GetBalance(context.Background(), "w_src")
	if !src.Equal(decimal.NewFromInt(4900)) {
		t.Fatalf("失败后不应自动回滚源侧扣款: %s", src)
	}
}

func TestApprovalFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	op := Operation{
		Kind:              asset.OpContractExecution,
		SourceAsset:       asset.Crypto("ETH", asset.NetworkEthereum),
		DestinationAsset:  asset.Native(),
		Amount:            decimal.NewFromInt(10),
		SourceProvider:    provider.MockExchange,
		DestinationWallet: "w_dst",
		ContractReference: "contract-7",
	}

	tx, err := env.manager.InitiateBridge(context.Background(), op, "")
	if err != nil {
		t.Fatalf("initiate 失败: %v", err)
	}
	if tx.Status != StatusRequiresApproval {
		t.Fatalf("合约执行应等待审批, 实际 %s", tx.Status)
	}

	if _, err := env.manager.Approve(context.Background(), tx.ID); err != nil {
		t.Fatalf("approve 失败: %v", err)
	}
	final := waitForStatus(t, env.manager, tx.ID, StatusCompleted)
	if final.Metadata["swap_id"] == "" {
		t.Fatal("审批后应执行 swap")
	}

	// Approving a terminal transaction is rejected.
	if _, err := env.manager.Approve(context.Background(), tx.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("终态交易不应可审批, 实际 %v", err)
	}
}

func TestRejectMovesToReverted(t *testing.T) {
	env := newTestEnv(t, nil)

	op := Operation{
		Kind:             asset.OpContractExecution,
		SourceAsset:      asset.Crypto("ETH", asset.NetworkEthereum),
		DestinationAsset: asset.Native(),
		Amount:           decimal.NewFromInt(10),
		SourceProvider:   provider.MockExchange,
	}
	tx, err := env.manager.InitiateBridge(context.Background(), op, "")
	if err != nil {
		t.Fatalf("initiate 失败: %v", err)
	}

	rejected, err := env.manager.Reject(tx.ID, "operator declined")
	if err != nil {
		t.Fatalf("reject 失败: %v", err)
	}
	if rejected.Status != StatusReverted {
		t.Fatalf("状态应为 Reverted, 实际 %s", rejected.Status)
	}

	if _, err := env.manager.Approve(context.Background(), tx.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Reverted 交易不应可审批, 实际 %v", err)
	}
}

func TestGetTransactionIdempotentReads(t *testing.T) {
	env := newTestEnv(t, map[string]decimal.Decimal{"w_src": decimal.NewFromInt(5000)})

	tx, err := env.manager.InitiateBridge(context.Background(), lockOp(100), "")
	if err != nil {
		t.Fatalf("initiate 失败: %v", err)
	}
	waitForStatus(t, env.manager, tx.ID, StatusCompleted)

	a, err := env.manager.GetTransaction(tx.ID)
	if err != nil {
		t.Fatalf("get 失败: %v", err)
	}
	b, err := env.manager.GetTransaction(tx.ID)
	if err != nil {
		t.Fatalf("get 失败: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("无变更时两次读取应完全一致")
	}

	// The returned copy must not alias manager state.
	a.Metadata["tampered"] = "yes"
	c, _ := env.manager.GetTransaction(tx.ID)
	if _, ok := c.Metadata["tampered"]; ok {
		t.Fatal("返回副本不应与内部状态共享 map")
	}
}

func TestListTransactionsMostRecentFirst(t *testing.T) {
	env := newTestEnv(t, map[string]decimal.Decimal{"w_src": decimal.NewFromInt(50000)})

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	var step int64
	env.manager.now = func() time.Time {
		return base.Add(time.Duration(atomic.AddInt64(&step, 1)) * time.Minute)
	}

	var ids []string
	for i := 0; i < 3; i++ {
		tx, err := env.manager.InitiateBridge(context.Background(), lockOp(10), "")
		if err != nil {
			t.Fatalf("initiate 失败: %v", err)
		}
		ids = append(ids, tx.ID)
	}

	listed := env.manager.ListTransactions(0)
	if len(listed) != 3 {
		t.Fatalf("应列出 3 笔交易, 实际 %d", len(listed))
	}
	for i, tx := range listed {
		if tx.ID != ids[len(ids)-1-i] {
			t.Fatalf("排序错误: 位置 %d 期望 %s, 实际 %s", i, ids[len(ids)-1-i], tx.ID)
		}
	}

	limited := env.manager.ListTransactions(2)
	if len(limited) != 2 {
		t.Fatalf("limit 未生效: %d", len(limited))
	}
	if limited[0].ID != ids[2] {
		t.Fatalf("limit 后排序错误: %s", limited[0].ID)
	}
}

func TestFiatToCryptoChecksBankBalance(t *testing.T) {
	env := newTestEnv(t, nil)

	op := Operation{
		Kind:              asset.OpFiatToCrypto,
		SourceAsset:       asset.Fiat("USD"),
		DestinationAsset:  asset.Native(),
		Amount:            decimal.NewFromInt(1000000),
		SourceProvider:    provider.MockBank,
		SourceAccount:     "acct_src",
		DestinationWallet: "w_dst",
	}
	if _, err := env.manager.InitiateBridge(context.Background(), op, ""); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("银行余额不足应返回 ErrInsufficientFunds, 实际 %v", err)
	}

	op.Amount = decimal.NewFromInt(500)
	tx, err := env.manager.InitiateBridge(context.Background(), op, "")
	if err != nil {
		t.Fatalf("initiate 失败: %v", err)
	}
	final := waitForStatus(t, env.manager, tx.ID, StatusCompleted)
	if final.Metadata["source_payment_id"] == "" {
		t.Fatal("应记录银行支付 id")
	}

	dst, _ := env.ledger.GetBalance(context.Background(), "w_dst")
	if !dst.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("目标钱包应收到入金: %s", dst)
	}
}
