package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"goldbridge/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Stability StabilityConfig `mapstructure:"stability"`
	Fees      FeesConfig      `mapstructure:"fees"`
	Bridge    BridgeConfig    `mapstructure:"bridge"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// FeedConfig governs the price-feed ingestion cadence.
type FeedConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// OracleConfig selects and parameterises the reference price source.
type OracleConfig struct {
	// Mode: "http", "onchain" 或 "static"。
	Mode           string        `mapstructure:"mode"`
	BaseURL        string        `mapstructure:"base_url"`
	Symbol         string        `mapstructure:"symbol"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`

	RPCURL            string `mapstructure:"rpc_url"`
	AggregatorAddress string `mapstructure:"aggregator_address"`
	AggregatorScale   int32  `mapstructure:"aggregator_scale"`

	StaticCurrentPrice float64       `mapstructure:"static_current_price"`
	StaticTargetPrice  float64       `mapstructure:"static_target_price"`
	TargetPrice        float64       `mapstructure:"target_price"`
	StalenessWindow    time.Duration `mapstructure:"staleness_window"`
}

// StabilityConfig exposes every magnitude constant of the adjustment
// heuristic. These are policy parameters, not law.
type StabilityConfig struct {
	StabilityThreshold      float64 `mapstructure:"stability_threshold"`
	MaxAdjustment           float64 `mapstructure:"max_adjustment"`
	DecayRate               float64 `mapstructure:"decay_rate"`
	CircuitBreakerThreshold float64 `mapstructure:"circuit_breaker_threshold"`

	BoundApproachRatio float64 `mapstructure:"bound_approach_ratio"`
	ThrottleRate       float64 `mapstructure:"throttle_rate"`
	CalmIncentiveRate  float64 `mapstructure:"calm_incentive_rate"`
	BaselineRate       float64 `mapstructure:"baseline_rate"`

	HighVolatility     float64 `mapstructure:"high_volatility"`
	HighVolatilityRate float64 `mapstructure:"high_volatility_rate"`
	LowVolatility      float64 `mapstructure:"low_volatility"`
	LowVolatilityRate  float64 `mapstructure:"low_volatility_rate"`

	LowLiquidity      float64 `mapstructure:"low_liquidity"`
	LowLiquidityRate  float64 `mapstructure:"low_liquidity_rate"`
	HighLiquidity     float64 `mapstructure:"high_liquidity"`
	HighLiquidityRate float64 `mapstructure:"high_liquidity_rate"`

	GlobalThreshold   float64 `mapstructure:"global_threshold"`
	GlobalBase        float64 `mapstructure:"global_base"`
	GlobalRate        float64 `mapstructure:"global_rate"`
	GlobalNeutralRate float64 `mapstructure:"global_neutral_rate"`

	ClampRate float64 `mapstructure:"clamp_rate"`
}

// FeesConfig holds the operation fee schedules.
type FeesConfig struct {
	ProviderRate       float64            `mapstructure:"provider_rate"`
	KindRates          map[string]float64 `mapstructure:"kind_rates"`
	NetworkRates       map[string]float64 `mapstructure:"network_rates"`
	DefaultNetworkRate float64            `mapstructure:"default_network_rate"`
}

// BridgeConfig tunes the transaction manager.
type BridgeConfig struct {
	ProviderTimeout     time.Duration  `mapstructure:"provider_timeout"`
	SettlementQueueSize int            `mapstructure:"settlement_queue_size"`
	MinConfirmations    map[string]int `mapstructure:"min_confirmations"`
	OmnibusAccount      string         `mapstructure:"omnibus_account"`
}

// ProvidersConfig configures external banking/exchange adapters.
type ProvidersConfig struct {
	Stripe   StripeConfig   `mapstructure:"stripe"`
	Plaid    PlaidConfig    `mapstructure:"plaid"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
}

// StripeConfig covers the Stripe banking adapter.
type StripeConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// PlaidConfig covers the Plaid banking adapter.
type PlaidConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ClientID       string        `mapstructure:"client_id"`
	Secret         string        `mapstructure:"secret"`
	Environment    string        `mapstructure:"environment"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ExchangeConfig parameterises the internal exchange adapter.
type ExchangeConfig struct {
	NativeUSDRate     float64 `mapstructure:"native_usd_rate"`
	LiquidityPool     float64 `mapstructure:"liquidity_pool"`
	Volatility        float64 `mapstructure:"volatility"`
	SlippageTolerance float64 `mapstructure:"slippage_tolerance"`
}

// AlertingConfig defines stability alert thresholds and routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Cooldown time.Duration  `mapstructure:"cooldown"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GOLDBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "goldbridge")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("feed.interval", "5m")
	v.SetDefault("feed.align_to_bucket", true)
	v.SetDefault("feed.advisory_lock_key", int64(0x676f6c64))
	v.SetDefault("feed.startup_delay", "0s")

	v.SetDefault("oracle.mode", "static")
	v.SetDefault("oracle.symbol", "XAU")
	v.SetDefault("oracle.request_timeout", "10s")
	v.SetDefault("oracle.user_agent", "goldbridge/1.0")
	v.SetDefault("oracle.aggregator_scale", int32(8))
	v.SetDefault("oracle.static_current_price", 85.2)
	v.SetDefault("oracle.static_target_price", 84.0)
	v.SetDefault("oracle.target_price", 84.0)
	v.SetDefault("oracle.staleness_window", "15m")

	v.SetDefault("stability.stability_threshold", 0.02)
	v.SetDefault("stability.max_adjustment", 0.01)
	v.SetDefault("stability.decay_rate", 0.95)
	v.SetDefault("stability.circuit_breaker_threshold", 0.10)
	v.SetDefault("stability.bound_approach_ratio", 0.8)
	v.SetDefault("stability.throttle_rate", 0.015)
	v.SetDefault("stability.calm_incentive_rate", 0.001)
	v.SetDefault("stability.baseline_rate", 0.002)
	v.SetDefault("stability.high_volatility", 0.3)
	v.SetDefault("stability.high_volatility_rate", 0.005)
	v.SetDefault("stability.low_volatility", 0.1)
	v.SetDefault("stability.low_volatility_rate", 0.001)
	v.SetDefault("stability.low_liquidity", 100000.0)
	v.SetDefault("stability.low_liquidity_rate", 0.01)
	v.SetDefault("stability.high_liquidity", 1000000.0)
	v.SetDefault("stability.high_liquidity_rate", 0.0005)
	v.SetDefault("stability.global_threshold", 0.15)
	v.SetDefault("stability.global_base", 0.05)
	v.SetDefault("stability.global_rate", 0.02)
	v.SetDefault("stability.global_neutral_rate", 0.001)
	v.SetDefault("stability.clamp_rate", 0.02)

	v.SetDefault("fees.provider_rate", 0.0029)
	v.SetDefault("fees.kind_rates", map[string]float64{
		"fiat_to_crypto":     0.005,
		"crypto_to_fiat":     0.007,
		"crypto_to_crypto":   0.0,
		"contract_execution": 0.004,
		"lock":               0.002,
		"mint":               0.001,
		"burn":               0.001,
		"unlock":             0.001,
	})
	v.SetDefault("fees.network_rates", map[string]float64{
		"bitcoin":  0.005,
		"ethereum": 0.003,
		"solana":   0.002,
		"polygon":  0.002,
		"gold":     0.001,
	})
	v.SetDefault("fees.default_network_rate", 0.002)

	v.SetDefault("bridge.provider_timeout", "10s")
	v.SetDefault("bridge.settlement_queue_size", 64)
	v.SetDefault("bridge.min_confirmations", map[string]int{
		"bitcoin":  6,
		"ethereum": 12,
		"solana":   32,
		"polygon":  64,
		"gold":     1,
	})
	v.SetDefault("bridge.omnibus_account", "GOLDBRIDGE_OMNIBUS")

	v.SetDefault("providers.stripe.base_url", "https://api.stripe.com/v1")
	v.SetDefault("providers.stripe.request_timeout", "10s")
	v.SetDefault("providers.plaid.environment", "sandbox")
	v.SetDefault("providers.plaid.request_timeout", "10s")
	v.SetDefault("providers.exchange.native_usd_rate", 84.0)
	v.SetDefault("providers.exchange.liquidity_pool", 2000000.0)
	v.SetDefault("providers.exchange.volatility", 0.15)
	v.SetDefault("providers.exchange.slippage_tolerance", 0.01)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.cooldown", "30m")
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Feed.Interval <= 0 {
		return fmt.Errorf("feed.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Stability.ClampRate <= 0 {
		return fmt.Errorf("stability.clamp_rate must be greater than zero")
	}
	if c.Stability.BoundApproachRatio <= 0 || c.Stability.BoundApproachRatio >= 1 {
		return fmt.Errorf("stability.bound_approach_ratio must be in (0,1)")
	}
	if c.Fees.ProviderRate < 0 {
		return fmt.Errorf("fees.provider_rate cannot be negative")
	}
	if c.Bridge.ProviderTimeout <= 0 {
		return fmt.Errorf("bridge.provider_timeout must be greater than zero")
	}
	if c.Bridge.SettlementQueueSize <= 0 {
		return fmt.Errorf("bridge.settlement_queue_size must be greater than zero")
	}
	switch c.Oracle.Mode {
	case "static":
	case "http":
		if c.Oracle.BaseURL == "" {
			return fmt.Errorf("oracle.base_url 必须配置 (mode=http)")
		}
	case "onchain":
		if c.Oracle.RPCURL == "" || c.Oracle.AggregatorAddress == "" {
			return fmt.Errorf("oracle.rpc_url 与 oracle.aggregator_address 必须配置 (mode=onchain)")
		}
	default:
		return fmt.Errorf("oracle.mode must be one of static, http, onchain")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
