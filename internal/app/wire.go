package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	s3blob "github.com/ryabkov/solsniper/internal/blob/s3"
	"github.com/ryabkov/solsniper/internal/cache/redis"
	"github.com/ryabkov/solsniper/internal/config"
	"github.com/ryabkov/solsniper/internal/crypto"
	"github.com/ryabkov/solsniper/internal/domain"
	"github.com/ryabkov/solsniper/internal/feed"
	"github.com/ryabkov/solsniper/internal/filter"
	"github.com/ryabkov/solsniper/internal/monitor"
	"github.com/ryabkov/solsniper/internal/notify"
	"github.com/ryabkov/solsniper/internal/platform/dexscreener"
	"github.com/ryabkov/solsniper/internal/platform/jupiter"
	"github.com/ryabkov/solsniper/internal/platform/solana"
	"github.com/ryabkov/solsniper/internal/position"
	"github.com/ryabkov/solsniper/internal/server"
	"github.com/ryabkov/solsniper/internal/server/handler"
	"github.com/ryabkov/solsniper/internal/sniper"
	"github.com/ryabkov/solsniper/internal/store/postgres"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Store        *position.Store
	Pipeline     *filter.Pipeline
	Orchestrator *sniper.Orchestrator // nil in server mode
	Monitor      *monitor.Monitor     // nil in server mode
	Listener     *feed.PoolListener   // nil outside snipe/full
	Server       *server.Server       // nil when disabled
	Archiver     *s3blob.Archiver     // nil when archiving is off
	Notifier     *notify.Notifier
	Journal      domain.TradeJournal // nil when journaling is off
	Oracle       domain.PriceOracle
}

// tradingMode reports whether the mode signs and sends transactions.
func tradingMode(mode string) bool {
	return mode == "snipe" || mode == "monitor" || mode == "full"
}

// listeningMode reports whether the mode watches for new pools.
func listeningMode(mode string) bool {
	return mode == "snipe" || mode == "full"
}

// Wire constructs all concrete dependencies from the configuration and
// returns them with a cleanup function to be called on shutdown.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Platform clients ---
	rpc := solana.NewRPCClient(cfg.RPC.HTTPURL, cfg.RPC.Commitment)
	reader := solana.NewReader(rpc)
	jup := jupiter.New(cfg.Jupiter.BaseURL, cfg.Jupiter.PriceURL)
	deps.Oracle = jupiter.NewPriceClient(cfg.Jupiter.PriceURL)
	dex := dexscreener.New(cfg.Dexscreener.BaseURL)

	// --- Redis: price mirror and optional distributed lock ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })
	priceCache := redis.NewPriceCache(redisClient)

	// --- Postgres trade journal ---
	if cfg.Postgres.JournalEnabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.Journal = postgres.NewTradeJournal(pgClient.Pool())
	}

	// --- S3 trade archival (needs the journal as its source) ---
	if cfg.S3.ArchiveEnabled && deps.Journal != nil {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(s3blob.ArchiverConfig{
			RetentionDays: cfg.S3.RetentionDays,
			Interval:      cfg.S3.ArchiveInterval.Duration,
		}, s3blob.NewWriter(s3Client), deps.Journal, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Position store ---
	deps.Store = position.NewStore(position.StoreConfig{
		MaxStored: cfg.Position.MaxStored,
		EvictTo:   cfg.Position.EvictTo,
	}, logger)

	// --- Filter pipeline ---
	deps.Pipeline = filter.NewPipeline(filter.PipelineConfig{
		RepeatCount:    cfg.Filter.RepeatCount,
		RepeatInterval: cfg.Filter.RepeatInterval.Duration,
		RepeatTimeout:  cfg.Filter.RepeatTimeout.Duration,
	}, buildStages(cfg, reader, jup, dex), logger)

	// --- Trading path: wallet, executor, orchestrator, monitor ---
	if tradingMode(mode) {
		keypair, err := crypto.LoadKeypair(crypto.KeyConfig{
			RawKeypairJSON:   cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet: %w", err)
		}
		wallet, err := solana.NewWalletFromBytes(keypair)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet: %w", err)
		}
		logger.Info("wallet loaded", slog.String("public_key", wallet.PublicKey))

		executor := solana.NewExecutor(rpc, jup, reader, wallet, logger)

		orch := sniper.New(sniper.Config{
			WalletPublicKey:  wallet.PublicKey,
			QuoteAmountSOL:   cfg.Sniper.QuoteAmountSOL,
			MinBalanceSOL:    cfg.Sniper.MinBalanceSOL,
			MaxBuyRetries:    cfg.Sniper.MaxBuyRetries,
			MaxSellRetries:   cfg.Sniper.MaxSellRetries,
			BuyDelay:         cfg.Sniper.BuyDelay.Duration,
			SellDelay:        cfg.Sniper.SellDelay.Duration,
			SingleFlight:     cfg.Sniper.SingleFlight,
			AllowlistEnabled: cfg.Sniper.AllowlistEnabled,
			Allowlist:        cfg.Sniper.Allowlist,
			Denylist:         cfg.Sniper.Denylist,
			SlippageBps:      cfg.Sniper.SlippageBps,
		}, deps.Pipeline, deps.Store, executor, reader, logger)
		orch.SetNotifier(deps.Notifier)
		if deps.Journal != nil {
			orch.SetJournal(deps.Journal)
		}
		if cfg.Sniper.DistributedLock {
			orch.SetDistributedLock(redis.NewLockManager(redisClient))
		}

		deps.Monitor = monitor.New(monitor.Config{
			TakeProfitPct: cfg.Exit.TakeProfitPct,
			StopLossPct:   cfg.Exit.StopLossPct,
			TTL:           time.Duration(cfg.Exit.TTLMinutes) * time.Minute,
			CheckInterval: cfg.Exit.PriceCheckInterval.Duration,
		}, deps.Oracle, deps.Store, orch, priceCache, logger)
		orch.SetWatcher(deps.Monitor)
		deps.Orchestrator = orch
	}

	// --- Pool listener ---
	if listeningMode(mode) && deps.Orchestrator != nil {
		deps.Listener = feed.NewPoolListener(cfg.RPC.WSURL, rpc, deps.Orchestrator.HandlePool, logger)
	}

	// --- Status server ---
	if cfg.Server.Enabled {
		var trader handler.Trader
		if deps.Orchestrator != nil {
			trader = deps.Orchestrator
		}
		var watchlist handler.Watchlist
		if deps.Monitor != nil {
			watchlist = deps.Monitor
		}
		deps.Server = server.NewServer(server.Config{Port: cfg.Server.Port}, server.Handlers{
			Health:    handler.NewHealthHandler(logger),
			Positions: handler.NewPositionHandler(deps.Store, trader, priceCache, logger),
			Stats:     handler.NewStatsHandler(deps.Store, watchlist, logger),
		}, logger)
	}

	return deps, cleanup, nil
}

// buildStages assembles the filter stages in cost order: cheap local checks
// first, polled off-chain lookups last.
func buildStages(cfg *config.Config, reader domain.ChainReader, quoter domain.RouteQuoter, agg domain.TokenAggregator) []filter.Stage {
	var stages []filter.Stage

	if cfg.Filter.MinPoolAge.Duration > 0 {
		stages = append(stages, &filter.PoolAge{MinAge: cfg.Filter.MinPoolAge.Duration})
	}

	stages = append(stages, filter.NewRouteGate(filter.RouteGateConfig{
		QuoteMint:         sniper.WrappedSOLMint,
		NotionalLamports:  uint64(cfg.Sniper.QuoteAmountSOL * 1e9),
		MaxPriceImpactPct: cfg.Filter.MaxPriceImpactPct,
	}, quoter))

	stages = append(stages, filter.NewChainSafety(filter.ChainSafetyConfig{
		CheckMintRenounced:     cfg.Filter.CheckMintRenounced,
		CheckFreezeRevoked:     cfg.Filter.CheckFreezeRevoked,
		CheckMetadataImmutable: cfg.Filter.CheckMetadataImmutable,
		ExcludeToken2022:       cfg.Filter.ExcludeToken2022,
		MinPoolSizeSOL:         cfg.Filter.MinPoolSizeSOL,
		MaxPoolSizeSOL:         cfg.Filter.MaxPoolSizeSOL,
		MinLpBurnedPct:         cfg.Filter.MinLpBurnedPct,
	}, reader))

	if cfg.Filter.MaxTopHolderPct > 0 {
		stages = append(stages, &filter.HolderSpread{
			MaxTopHolderPct: cfg.Filter.MaxTopHolderPct,
			Reader:          reader,
		})
	}

	if cfg.Filter.SocialRequired {
		stages = append(stages, filter.NewSocial(filter.SocialConfig{
			RequireLogo:    true,
			RequireSocials: true,
			MaxWait:        cfg.Filter.SocialMaxWait.Duration,
		}, agg))
	}

	return stages
}
