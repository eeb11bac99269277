package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies SNIPER_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SNIPER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "SNIPER_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.PublicKey, "SNIPER_WALLET_PUBLIC_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "SNIPER_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "SNIPER_WALLET_KEY_PASSWORD")

	// ── RPC ──
	setStr(&cfg.RPC.HTTPURL, "SNIPER_RPC_HTTP_URL")
	setStr(&cfg.RPC.WSURL, "SNIPER_RPC_WS_URL")
	setStr(&cfg.RPC.Commitment, "SNIPER_RPC_COMMITMENT")

	// ── Jupiter / Dexscreener ──
	setStr(&cfg.Jupiter.BaseURL, "SNIPER_JUPITER_BASE_URL")
	setStr(&cfg.Jupiter.PriceURL, "SNIPER_JUPITER_PRICE_URL")
	setStr(&cfg.Dexscreener.BaseURL, "SNIPER_DEXSCREENER_BASE_URL")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "SNIPER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SNIPER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SNIPER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SNIPER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SNIPER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SNIPER_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "SNIPER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SNIPER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SNIPER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SNIPER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SNIPER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SNIPER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SNIPER_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SNIPER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SNIPER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SNIPER_POSTGRES_RUN_MIGRATIONS")
	setBool(&cfg.Postgres.JournalEnabled, "SNIPER_POSTGRES_JOURNAL_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "SNIPER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SNIPER_S3_REGION")
	setStr(&cfg.S3.Bucket, "SNIPER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SNIPER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SNIPER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SNIPER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SNIPER_S3_FORCE_PATH_STYLE")
	setBool(&cfg.S3.ArchiveEnabled, "SNIPER_S3_ARCHIVE_ENABLED")
	setInt(&cfg.S3.RetentionDays, "SNIPER_S3_RETENTION_DAYS")
	setDuration(&cfg.S3.ArchiveInterval, "SNIPER_S3_ARCHIVE_INTERVAL")

	// ── Sniper ──
	setFloat64(&cfg.Sniper.QuoteAmountSOL, "SNIPER_QUOTE_AMOUNT_SOL")
	setFloat64(&cfg.Sniper.MinBalanceSOL, "SNIPER_MIN_BALANCE_SOL")
	setInt(&cfg.Sniper.MaxBuyRetries, "SNIPER_MAX_BUY_RETRIES")
	setInt(&cfg.Sniper.MaxSellRetries, "SNIPER_MAX_SELL_RETRIES")
	setDuration(&cfg.Sniper.BuyDelay, "SNIPER_BUY_DELAY")
	setDuration(&cfg.Sniper.SellDelay, "SNIPER_SELL_DELAY")
	setBool(&cfg.Sniper.SingleFlight, "SNIPER_SINGLE_FLIGHT")
	setBool(&cfg.Sniper.DistributedLock, "SNIPER_DISTRIBUTED_LOCK")
	setBool(&cfg.Sniper.AllowlistEnabled, "SNIPER_ALLOWLIST_ENABLED")
	setStringSlice(&cfg.Sniper.Allowlist, "SNIPER_ALLOWLIST")
	setStringSlice(&cfg.Sniper.Denylist, "SNIPER_DENYLIST")
	setInt(&cfg.Sniper.SlippageBps, "SNIPER_SLIPPAGE_BPS")

	// ── Filter ──
	setInt(&cfg.Filter.RepeatCount, "SNIPER_FILTER_REPEAT_COUNT")
	setDuration(&cfg.Filter.RepeatInterval, "SNIPER_FILTER_REPEAT_INTERVAL")
	setDuration(&cfg.Filter.RepeatTimeout, "SNIPER_FILTER_REPEAT_TIMEOUT")
	setFloat64(&cfg.Filter.MaxPriceImpactPct, "SNIPER_FILTER_MAX_PRICE_IMPACT_PCT")
	setBool(&cfg.Filter.CheckMintRenounced, "SNIPER_FILTER_CHECK_MINT_RENOUNCED")
	setBool(&cfg.Filter.CheckFreezeRevoked, "SNIPER_FILTER_CHECK_FREEZE_REVOKED")
	setBool(&cfg.Filter.CheckMetadataImmutable, "SNIPER_FILTER_CHECK_METADATA_IMMUTABLE")
	setBool(&cfg.Filter.ExcludeToken2022, "SNIPER_FILTER_EXCLUDE_TOKEN2022")
	setFloat64(&cfg.Filter.MinPoolSizeSOL, "SNIPER_FILTER_MIN_POOL_SIZE_SOL")
	setFloat64(&cfg.Filter.MaxPoolSizeSOL, "SNIPER_FILTER_MAX_POOL_SIZE_SOL")
	setFloat64(&cfg.Filter.MinLpBurnedPct, "SNIPER_FILTER_MIN_LP_BURNED_PCT")
	setBool(&cfg.Filter.SocialRequired, "SNIPER_FILTER_SOCIAL_REQUIRED")
	setDuration(&cfg.Filter.SocialMaxWait, "SNIPER_FILTER_SOCIAL_MAX_WAIT")
	setDuration(&cfg.Filter.MinPoolAge, "SNIPER_FILTER_MIN_POOL_AGE")
	setFloat64(&cfg.Filter.MaxTopHolderPct, "SNIPER_FILTER_MAX_TOP_HOLDER_PCT")

	// ── Exit ──
	setFloat64(&cfg.Exit.TakeProfitPct, "SNIPER_EXIT_TAKE_PROFIT_PCT")
	setFloat64(&cfg.Exit.StopLossPct, "SNIPER_EXIT_STOP_LOSS_PCT")
	setInt(&cfg.Exit.TTLMinutes, "SNIPER_EXIT_TTL_MINUTES")
	setDuration(&cfg.Exit.PriceCheckInterval, "SNIPER_EXIT_PRICE_CHECK_INTERVAL")

	// ── Position ──
	setInt(&cfg.Position.MaxStored, "SNIPER_POSITION_MAX_STORED")
	setInt(&cfg.Position.EvictTo, "SNIPER_POSITION_EVICT_TO")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SNIPER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SNIPER_SERVER_PORT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SNIPER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SNIPER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SNIPER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SNIPER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SNIPER_MODE")
	setStr(&cfg.LogLevel, "SNIPER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
