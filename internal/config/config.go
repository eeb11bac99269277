// Package config defines the top-level configuration for the sniper bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SNIPER_* environment variables.
type Config struct {
	Wallet      WalletConfig      `toml:"wallet"`
	RPC         RPCConfig         `toml:"rpc"`
	Jupiter     JupiterConfig     `toml:"jupiter"`
	Dexscreener DexscreenerConfig `toml:"dexscreener"`
	Redis       RedisConfig       `toml:"redis"`
	Postgres    PostgresConfig    `toml:"postgres"`
	S3          S3Config          `toml:"s3"`
	Sniper      SniperConfig      `toml:"sniper"`
	Filter      FilterConfig      `toml:"filter"`
	Exit        ExitConfig        `toml:"exit"`
	Position    PositionConfig    `toml:"position"`
	Server      ServerConfig      `toml:"server"`
	Notify      NotifyConfig      `toml:"notify"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// WalletConfig holds the Solana keypair credentials.
type WalletConfig struct {
	// PrivateKey is the keypair as a JSON byte array (solana-keygen format).
	PrivateKey       string `toml:"private_key"`
	PublicKey        string `toml:"public_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// RPCConfig holds Solana RPC endpoints.
type RPCConfig struct {
	HTTPURL    string `toml:"http_url"`
	WSURL      string `toml:"ws_url"`
	Commitment string `toml:"commitment"`
}

// JupiterConfig holds the route/quote and price API endpoints.
type JupiterConfig struct {
	BaseURL  string `toml:"base_url"`
	PriceURL string `toml:"price_url"`
}

// DexscreenerConfig holds the social/metadata aggregator endpoint.
type DexscreenerConfig struct {
	BaseURL string `toml:"base_url"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds trade-journal database parameters.
type PostgresConfig struct {
	DSN            string `toml:"dsn"`
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	Database       string `toml:"database"`
	User           string `toml:"user"`
	Password       string `toml:"password"`
	SSLMode        string `toml:"ssl_mode"`
	PoolMaxConns   int    `toml:"pool_max_conns"`
	PoolMinConns   int    `toml:"pool_min_conns"`
	RunMigrations  bool   `toml:"run_migrations"`
	JournalEnabled bool   `toml:"journal_enabled"`
}

// S3Config holds S3-compatible object storage parameters for trade archival.
type S3Config struct {
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	Bucket          string   `toml:"bucket"`
	AccessKey       string   `toml:"access_key"`
	SecretKey       string   `toml:"secret_key"`
	UseSSL          bool     `toml:"use_ssl"`
	ForcePathStyle  bool     `toml:"force_path_style"`
	ArchiveEnabled  bool     `toml:"archive_enabled"`
	RetentionDays   int      `toml:"retention_days"`
	ArchiveInterval duration `toml:"archive_interval"`
}

// SniperConfig holds acquisition/liquidation parameters.
type SniperConfig struct {
	// QuoteAmountSOL is the SOL notional spent per snipe.
	QuoteAmountSOL float64 `toml:"quote_amount_sol"`
	// MinBalanceSOL is the wallet balance floor below which snipes are skipped.
	MinBalanceSOL   float64  `toml:"min_balance_sol"`
	MaxBuyRetries   int      `toml:"max_buy_retries"`
	MaxSellRetries  int      `toml:"max_sell_retries"`
	BuyDelay        duration `toml:"buy_delay"`
	SellDelay       duration `toml:"sell_delay"`
	SingleFlight    bool     `toml:"single_flight"`
	DistributedLock bool     `toml:"distributed_lock"`
	// AllowlistEnabled bypasses the filter pipeline and only snipes listed mints.
	AllowlistEnabled bool     `toml:"allowlist_enabled"`
	Allowlist        []string `toml:"allowlist"`
	Denylist         []string `toml:"denylist"`
	SlippageBps      int      `toml:"slippage_bps"`
}

// FilterConfig holds the admission pipeline parameters.
type FilterConfig struct {
	// RepeatCount is the number of consecutive all-pass rounds required.
	RepeatCount int `toml:"repeat_count"`
	// RepeatInterval is the pause between rounds.
	RepeatInterval duration `toml:"repeat_interval"`
	// RepeatTimeout bounds the whole admission attempt.
	RepeatTimeout duration `toml:"repeat_timeout"`

	MaxPriceImpactPct float64 `toml:"max_price_impact_pct"`

	CheckMintRenounced     bool    `toml:"check_mint_renounced"`
	CheckFreezeRevoked     bool    `toml:"check_freeze_revoked"`
	CheckMetadataImmutable bool    `toml:"check_metadata_immutable"`
	ExcludeToken2022       bool    `toml:"exclude_token2022"`
	MinPoolSizeSOL         float64 `toml:"min_pool_size_sol"`
	MaxPoolSizeSOL         float64 `toml:"max_pool_size_sol"`
	MinLpBurnedPct         float64 `toml:"min_lp_burned_pct"`

	SocialRequired bool     `toml:"social_required"`
	SocialMaxWait  duration `toml:"social_max_wait"`

	MinPoolAge      duration `toml:"min_pool_age"`
	MaxTopHolderPct float64  `toml:"max_top_holder_pct"`
}

// ExitConfig holds the sell-condition parameters.
type ExitConfig struct {
	TakeProfitPct      float64  `toml:"take_profit_pct"`
	StopLossPct        float64  `toml:"stop_loss_pct"`
	TTLMinutes         int      `toml:"ttl_minutes"`
	PriceCheckInterval duration `toml:"price_check_interval"`
}

// PositionConfig bounds the in-memory position store.
type PositionConfig struct {
	// MaxStored is the capacity ceiling; exceeding it triggers eviction of
	// the oldest closed positions.
	MaxStored int `toml:"max_stored"`
	// EvictTo is the watermark eviction trims down to.
	EvictTo int `toml:"evict_to"`
}

// ServerConfig holds the status HTTP server parameters.
type ServerConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		RPC: RPCConfig{
			HTTPURL:    "https://api.mainnet-beta.solana.com",
			WSURL:      "wss://api.mainnet-beta.solana.com",
			Commitment: "confirmed",
		},
		Jupiter: JupiterConfig{
			BaseURL:  "https://quote-api.jup.ag/v6",
			PriceURL: "https://api.jup.ag/price/v2",
		},
		Dexscreener: DexscreenerConfig{
			BaseURL: "https://api.dexscreener.com",
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Host:           "localhost",
			Port:           5432,
			Database:       "solsniper",
			User:           "postgres",
			SSLMode:        "disable",
			PoolMaxConns:   10,
			PoolMinConns:   2,
			RunMigrations:  true,
			JournalEnabled: true,
		},
		S3: S3Config{
			Endpoint:        "http://localhost:9000",
			Region:          "us-east-1",
			Bucket:          "solsniper-data",
			ForcePathStyle:  true,
			ArchiveEnabled:  false,
			RetentionDays:   90,
			ArchiveInterval: duration{24 * time.Hour},
		},
		Sniper: SniperConfig{
			QuoteAmountSOL: 0.1,
			MinBalanceSOL:  0.05,
			MaxBuyRetries:  3,
			MaxSellRetries: 5,
			SingleFlight:   true,
			SlippageBps:    500,
		},
		Filter: FilterConfig{
			RepeatCount:            3,
			RepeatInterval:         duration{10 * time.Second},
			RepeatTimeout:          duration{2 * time.Minute},
			MaxPriceImpactPct:      5.0,
			CheckMintRenounced:     true,
			CheckFreezeRevoked:     true,
			CheckMetadataImmutable: false,
			ExcludeToken2022:       true,
			MinPoolSizeSOL:         10,
			MaxPoolSizeSOL:         5000,
			MinLpBurnedPct:         90,
			SocialRequired:         false,
			SocialMaxWait:          duration{60 * time.Second},
			MaxTopHolderPct:        30,
		},
		Exit: ExitConfig{
			TakeProfitPct:      50,
			StopLossPct:        30,
			TTLMinutes:         60,
			PriceCheckInterval: duration{5 * time.Second},
		},
		Position: PositionConfig{
			MaxStored: 200,
			EvictTo:   150,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8000,
		},
		Notify: NotifyConfig{
			Events: []string{"position_opened", "position_closed", "snipe_failed", "error"},
		},
		Mode:     "snipe",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"snipe":   true,
	"monitor": true,
	"server":  true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// tradingMode reports whether the mode places transactions and therefore
// needs a funded wallet.
func tradingMode(mode string) bool {
	return mode == "snipe" || mode == "monitor" || mode == "full"
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: snipe, monitor, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet credentials are required for modes that place transactions.
	if tradingMode(mode) {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode "+c.Mode)
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	if c.RPC.HTTPURL == "" {
		errs = append(errs, "rpc: http_url must not be empty")
	}
	if (mode == "snipe" || mode == "full") && c.RPC.WSURL == "" {
		errs = append(errs, "rpc: ws_url must not be empty for mode "+c.Mode)
	}
	if c.Jupiter.BaseURL == "" {
		errs = append(errs, "jupiter: base_url must not be empty")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.Postgres.JournalEnabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.S3.ArchiveEnabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archiving is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archiving is enabled")
		}
		if c.S3.RetentionDays < 1 {
			errs = append(errs, "s3: retention_days must be >= 1")
		}
	}

	// Sniper
	if c.Sniper.QuoteAmountSOL <= 0 {
		errs = append(errs, "sniper: quote_amount_sol must be > 0")
	}
	if c.Sniper.MinBalanceSOL < 0 {
		errs = append(errs, "sniper: min_balance_sol must be >= 0")
	}
	if c.Sniper.MaxBuyRetries < 1 {
		errs = append(errs, "sniper: max_buy_retries must be >= 1")
	}
	if c.Sniper.MaxSellRetries < 1 {
		errs = append(errs, "sniper: max_sell_retries must be >= 1")
	}
	if c.Sniper.SlippageBps <= 0 {
		errs = append(errs, "sniper: slippage_bps must be > 0")
	}
	if c.Sniper.AllowlistEnabled && len(c.Sniper.Allowlist) == 0 {
		errs = append(errs, "sniper: allowlist must not be empty when allowlist_enabled is set")
	}

	// Filter
	if c.Filter.RepeatCount < 1 {
		errs = append(errs, "filter: repeat_count must be >= 1")
	}
	if c.Filter.RepeatInterval.Duration <= 0 {
		errs = append(errs, "filter: repeat_interval must be > 0")
	}
	if c.Filter.RepeatTimeout.Duration < c.Filter.RepeatInterval.Duration {
		errs = append(errs, "filter: repeat_timeout must be >= repeat_interval")
	}
	if c.Filter.MinPoolSizeSOL < 0 || c.Filter.MaxPoolSizeSOL < c.Filter.MinPoolSizeSOL {
		errs = append(errs, "filter: pool size bounds must satisfy 0 <= min <= max")
	}
	if c.Filter.MinLpBurnedPct < 0 || c.Filter.MinLpBurnedPct > 100 {
		errs = append(errs, "filter: min_lp_burned_pct must be in [0, 100]")
	}

	// Exit
	if c.Exit.TakeProfitPct <= 0 {
		errs = append(errs, "exit: take_profit_pct must be > 0")
	}
	if c.Exit.StopLossPct <= 0 {
		errs = append(errs, "exit: stop_loss_pct must be > 0")
	}
	if c.Exit.TTLMinutes <= 0 {
		errs = append(errs, "exit: ttl_minutes must be > 0")
	}
	if c.Exit.PriceCheckInterval.Duration <= 0 {
		errs = append(errs, "exit: price_check_interval must be > 0")
	}

	// Position store bounds
	if c.Position.MaxStored < 1 {
		errs = append(errs, "position: max_stored must be >= 1")
	}
	if c.Position.EvictTo < 0 || c.Position.EvictTo >= c.Position.MaxStored {
		errs = append(errs, "position: evict_to must be in [0, max_stored)")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
