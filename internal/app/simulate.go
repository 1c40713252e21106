package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"goldbridge/internal/asset"
	"goldbridge/internal/bridge"
	"goldbridge/internal/fees"
	"goldbridge/internal/ledger"
	"goldbridge/internal/oracle"
	"goldbridge/internal/provider"
	"goldbridge/internal/zone"
)

const (
	simSourceWallet      = "sim_source"
	simDestinationWallet = "sim_destination"
	simBankAccount       = "acct_sim"
)

// Simulate 通过内存 Provider 和账本模拟一次完整的桥接操作。
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	kind := asset.OperationKind(opts.Kind)
	if !kind.Valid() {
		return fmt.Errorf("unknown operation kind %q", opts.Kind)
	}
	amount := decimal.NewFromFloat(opts.Amount)
	if amount.Sign() <= 0 {
		return fmt.Errorf("amount must be greater than zero")
	}

	zones := zone.NewRegistryWithDefaults()
	cache := oracle.NewCache(a.Config.Oracle.StalenessWindow)
	static := oracle.NewStatic(a.Config.Oracle.Symbol,
		decimal.NewFromFloat(a.Config.Oracle.StaticCurrentPrice),
		decimal.NewFromFloat(a.Config.Oracle.StaticTargetPrice))
	sample, err := static.CurrentPrice(ctx)
	if err != nil {
		return err
	}
	cache.Store(sample)

	calc := a.newCalculator(zones, cache)
	engine := fees.NewEngine(fees.ScheduleFromConfig(a.Config.Fees), calc)

	gw := provider.NewGateway(provider.GatewayOptions{
		FailureRateThreshold: a.Config.Stability.CircuitBreakerThreshold,
	}, a.Logger)
	bank := provider.NewMockBank(map[string]decimal.Decimal{
		simBankAccount: amount.Mul(decimal.NewFromInt(10)),
	})
	ex := provider.NewMockExchange(decimal.NewFromFloat(a.Config.Providers.Exchange.NativeUSDRate))
	gw.Register(bank)
	gw.Register(ex)

	mem := ledger.NewMemory(map[string]decimal.Decimal{
		simSourceWallet: amount.Mul(decimal.NewFromInt(10)),
	})

	manager := bridge.NewManager(engine, gw, mem, bridge.OptionsFromConfig(a.Config.Bridge), a.Logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	manager.Start(runCtx)

	op := simulatedOperation(kind, amount)
	tx, err := manager.InitiateBridge(ctx, op, opts.ZoneID)
	if err != nil {
		return err
	}

	// Contract calls park in the approval queue; the simulation plays the
	// operator and approves.
	if tx.Status == bridge.StatusRequiresApproval {
		a.Logger.Info().Str("tx", tx.ID).Msg("模拟审批通过")
		if tx, err = manager.Approve(ctx, tx.ID); err != nil {
			return err
		}
	}

	final, err := waitTerminal(ctx, manager, tx.ID, 5*time.Second)
	if err != nil {
		return err
	}

	return printSimulation(final, mem)
}

// simulatedOperation builds a representative operation for the kind using the
// simulation wallets and the mock providers.
func simulatedOperation(kind asset.OperationKind, amount decimal.Decimal) bridge.Operation {
	op := bridge.Operation{
		Kind:              kind,
		Amount:            amount,
		SourceWallet:      simSourceWallet,
		DestinationWallet: simDestinationWallet,
	}

	switch kind {
	case asset.OpLock:
		op.SourceAsset = asset.Native()
		op.DestinationAsset = asset.Crypto("wGLD", asset.NetworkEthereum)
	case asset.OpMint, asset.OpUnlock:
		op.SourceAsset = asset.Native()
		op.DestinationAsset = asset.Native()
	case asset.OpBurn:
		op.SourceAsset = asset.Native()
		op.DestinationAsset = asset.Native()
		op.DestinationWallet = ""
	case asset.OpFiatToCrypto:
		op.SourceAsset = asset.Fiat("USD")
		op.DestinationAsset = asset.Native()
		op.SourceProvider = provider.MockBank
		op.SourceAccount = simBankAccount
	case asset.OpCryptoToFiat:
		op.SourceAsset = asset.Native()
		op.DestinationAsset = asset.Fiat("USD")
		op.DestinationProvider = provider.MockBank
		op.DestinationAccount = simBankAccount
	case asset.OpCryptoToCrypto:
		op.SourceAsset = asset.Crypto("wGLD", asset.NetworkEthereum)
		op.DestinationAsset = asset.Crypto("GLD", asset.NetworkPolygon)
		op.SourceProvider = provider.MockExchange
	case asset.OpContractExecution:
		op.SourceAsset = asset.Native()
		op.DestinationAsset = asset.Crypto("wGLD", asset.NetworkEthereum)
		op.SourceProvider = provider.MockExchange
		op.ContractReference = "sim_contract_call"
	}

	return op
}

func waitTerminal(ctx context.Context, m *bridge.Manager, id string, timeout time.Duration) (bridge.Transaction, error) {
	deadline := time.Now().Add(timeout)
	for {
		tx, err := m.GetTransaction(id)
		if err != nil {
			return bridge.Transaction{}, err
		}
		if tx.Status.Terminal() {
			return tx, nil
		}
		if time.Now().After(deadline) {
			return tx, fmt.Errorf("transaction %s did not reach a terminal state within %s", id, timeout)
		}
		select {
		case <-ctx.Done():
			return tx, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func printSimulation(tx bridge.Transaction, mem *ledger.Memory) error {
	payload, err := json.MarshalIndent(tx, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(payload))

	for _, wallet := range []string{simSourceWallet, simDestinationWallet} {
		balance, err := mem.GetBalance(context.Background(), wallet)
		if err != nil {
			continue
		}
		fmt.Fprintf(os.Stdout, "%s balance: %s GLD\n", wallet, balance)
	}
	return nil
}
