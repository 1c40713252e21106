package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"goldbridge/internal/ledger"
	"goldbridge/internal/oracle"
	"goldbridge/internal/zone"
)

// TransactionsOptions parameterise the ledger journal listing.
type TransactionsOptions struct {
	WalletID string
	Limit    int
}

// Transactions prints the ledger journal for one wallet.
func (a *App) Transactions(ctx context.Context, opts TransactionsOptions) error {
	if opts.WalletID == "" {
		return errors.New("wallet id is required")
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot list transactions")
	}
	if closeStore != nil {
		defer closeStore()
	}

	journal := ledger.NewPostgres(store.Pool())
	balance, err := journal.GetBalance(ctx, opts.WalletID)
	if err != nil {
		return err
	}
	entries, err := journal.ListEntries(ctx, opts.WalletID, opts.Limit)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "wallet %s balance: %s GLD\n", opts.WalletID, balance)
	if len(entries) == 0 {
		fmt.Fprintln(os.Stdout, "no ledger entries found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tBridge Tx\tKind\tDelta\tReference")
	for _, entry := range entries {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\n",
			entry.CreatedAt.UTC().Format(time.RFC3339),
			entry.BridgeTxID,
			entry.Kind,
			entry.Delta.StringFixed(6),
			entry.Reference,
		)
	}

	writer.Flush()
	return nil
}

// Zones prints every registered zone with the adjustment it would apply to
// the given amount.
func (a *App) Zones(ctx context.Context, opts ZonesOptions) error {
	amount := decimal.NewFromFloat(opts.Amount)
	if amount.Sign() <= 0 {
		amount = decimal.NewFromInt(1000)
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

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Zone\tDeviation\tThrottle\tVolatility\tLiquidity\tAdjustment (%s)\n", amount)
	for _, z := range zones.ListZones() {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			z.ID,
			z.StabilityDeviation.StringFixed(4),
			z.ThrottleFactor.StringFixed(2),
			z.Indicators.Volatility.StringFixed(2),
			z.Indicators.LiquidityDepth.StringFixed(0),
			calc.Adjustment(z.ID, amount).StringFixed(6),
		)
	}

	writer.Flush()
	return nil
}
