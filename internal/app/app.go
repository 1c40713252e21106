package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"goldbridge/internal/alerting"
	"goldbridge/internal/bridge"
	"goldbridge/internal/config"
	"goldbridge/internal/feed"
	"goldbridge/internal/fees"
	"goldbridge/internal/ledger"
	"goldbridge/internal/logging"
	"goldbridge/internal/oracle"
	"goldbridge/internal/provider"
	"goldbridge/internal/scheduler"
	"goldbridge/internal/stability"
	"goldbridge/internal/storage"
	"goldbridge/internal/zone"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logging.Component(logger, "app")}
}

func (a *App) newOracle() oracle.Source {
	cfg := a.Config.Oracle
	switch cfg.Mode {
	case "http":
		return oracle.NewHTTP(oracle.HTTPOptions{
			BaseURL:   cfg.BaseURL,
			Symbol:    cfg.Symbol,
			Target:    decimal.NewFromFloat(cfg.TargetPrice),
			Timeout:   cfg.RequestTimeout,
			UserAgent: cfg.UserAgent,
		}, a.Logger)
	case "onchain":
		return oracle.NewOnchain(oracle.OnchainOptions{
			RPCURL:            cfg.RPCURL,
			AggregatorAddress: cfg.AggregatorAddress,
			Scale:             cfg.AggregatorScale,
			Symbol:            cfg.Symbol,
			Target:            decimal.NewFromFloat(cfg.TargetPrice),
			Timeout:           cfg.RequestTimeout,
		}, a.Logger)
	default:
		return oracle.NewStatic(cfg.Symbol,
			decimal.NewFromFloat(cfg.StaticCurrentPrice),
			decimal.NewFromFloat(cfg.StaticTargetPrice))
	}
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

// newGateway registers the configured external adapters.
func (a *App) newGateway(exchange *provider.Exchange) *provider.Gateway {
	gw := provider.NewGateway(provider.GatewayOptions{
		FailureRateThreshold: a.Config.Stability.CircuitBreakerThreshold,
	}, a.Logger)

	if a.Config.Providers.Stripe.Enabled {
		cfg := a.Config.Providers.Stripe
		gw.Register(provider.NewStripeAdapter(provider.StripeOptions{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.RequestTimeout,
		}, a.Logger))
	}
	if a.Config.Providers.Plaid.Enabled {
		cfg := a.Config.Providers.Plaid
		gw.Register(provider.NewPlaidAdapter(provider.PlaidOptions{
			ClientID:    cfg.ClientID,
			Secret:      cfg.Secret,
			Environment: cfg.Environment,
			Timeout:     cfg.RequestTimeout,
		}, a.Logger))
	}
	gw.Register(exchange)

	return gw
}

func (a *App) newExchange() *provider.Exchange {
	cfg := a.Config.Providers.Exchange
	return provider.NewExchange(provider.ExchangeOptions{
		NativeUSDRate:     decimal.NewFromFloat(cfg.NativeUSDRate),
		LiquidityPool:     decimal.NewFromFloat(cfg.LiquidityPool),
		Volatility:        decimal.NewFromFloat(cfg.Volatility),
		SlippageTolerance: decimal.NewFromFloat(cfg.SlippageTolerance),
	}, a.Logger)
}

func (a *App) newCalculator(zones *zone.Registry, cache *oracle.Cache) *stability.Calculator {
	policy := stability.PolicyFromConfig(a.Config.Stability)
	var quote stability.ReferenceQuote
	if cache != nil {
		quote = cache.Quote
	}
	return stability.NewCalculator(policy, zones, quote, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running price-feed service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; snapshot persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:      a.Config.Feed.Interval,
		AlignToBucket: a.Config.Feed.AlignToBucket,
		StartupDelay:  a.Config.Feed.StartupDelay,
	}, a.Logger)

	zones := zone.NewRegistryWithDefaults()
	cache := oracle.NewCache(a.Config.Oracle.StalenessWindow)
	source := a.newOracle()
	notifier := a.newNotifier()
	exchange := a.newExchange()

	var snapshots storage.SnapshotStore
	if store != nil {
		snapshots = store
	}

	svc := feed.New(a.Config, sched, source, cache, zones, snapshots, notifier, exchange, a.Logger)

	// Assemble the bridge engine around the feed: fee pricing reads the live
	// zone state, operations route through the configured provider gateway,
	// and balances live on the Postgres ledger when a DSN is configured.
	calc := a.newCalculator(zones, cache)
	engine := fees.NewEngine(fees.ScheduleFromConfig(a.Config.Fees), calc)
	gateway := a.newGateway(exchange)

	var ledgerStore ledger.Store = ledger.NewMemory(nil)
	if store != nil {
		ledgerStore = ledger.NewPostgres(store.Pool())
	}

	manager := bridge.NewManager(engine, gateway, ledgerStore, bridge.OptionsFromConfig(a.Config.Bridge), a.Logger)
	manager.Start(ctx)

	a.Logger.Info().Msg("starting price-feed service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("price-feed service stopped")
	return nil
}

// SimulateOptions configure the end-to-end bridge simulation.
type SimulateOptions struct {
	Kind   string
	Amount float64
	ZoneID string
}

// ZonesOptions configure the zones listing.
type ZonesOptions struct {
	Amount float64
}

// ExportOptions hold parameters for exporting zone snapshot history.
type ExportOptions struct {
	ZoneID    string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}
