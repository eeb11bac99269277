// Package sniper implements the acquisition/liquidation orchestrator: it
// bridges pipeline admission to the position lifecycle, enforces single-flight
// concurrency, and wraps the transaction executor in bounded retry loops.
package sniper

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ryabkov/solsniper/internal/domain"
	"github.com/ryabkov/solsniper/internal/position"
)

// WrappedSOLMint is the quote mint every snipe trades against.
const WrappedSOLMint = "So11111111111111111111111111111111111111112"

const lamportsPerSOL = 1_000_000_000

// retryDelay is the pause between swap attempts within one retry loop.
const retryDelay = 500 * time.Millisecond

// Admitter decides whether a candidate pool may be acquired. Implemented by
// the filter pipeline.
type Admitter interface {
	Decide(ctx context.Context, cand domain.PoolCandidate) bool
}

// PositionWatcher hands confirmed positions to the sell-condition monitor.
type PositionWatcher interface {
	Watch(cand domain.PoolCandidate)
	Unwatch(mint string)
}

// Notifier is the best-effort alerting sink.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config holds the orchestrator parameters.
type Config struct {
	WalletPublicKey string
	// QuoteAmountSOL is the SOL notional spent per snipe.
	QuoteAmountSOL float64
	// MinBalanceSOL is the wallet balance floor below which snipes are
	// skipped.
	MinBalanceSOL  float64
	MaxBuyRetries  int
	MaxSellRetries int
	// BuyDelay and SellDelay let the pool settle before trading.
	BuyDelay  time.Duration
	SellDelay time.Duration
	// SingleFlight enforces at most one in-progress acquisition and blocks
	// new acquisitions while any liquidation is outstanding.
	SingleFlight bool
	// AllowlistEnabled restricts snipes to listed mints and bypasses the
	// filter pipeline for them.
	AllowlistEnabled bool
	Allowlist        []string
	Denylist         []string
	SlippageBps      int
	// LockTTL bounds the optional distributed lock.
	LockTTL time.Duration
}

// Orchestrator wires pool detection to acquisition, monitoring, and
// liquidation. The process-wide acquisition lock and the in-flight
// liquidation counter are the only mutable state shared across control
// paths; both are owned here and released on every exit path.
type Orchestrator struct {
	cfg      Config
	admitter Admitter
	store    *position.Store
	executor domain.SwapExecutor
	reader   domain.ChainReader
	journal  domain.TradeJournal // optional
	notifier Notifier            // optional
	distLock domain.LockManager  // optional cross-instance guard
	watcher  PositionWatcher
	logger   *slog.Logger

	allow map[string]bool
	deny  map[string]bool

	buyMu         sync.Mutex
	sellsInFlight atomic.Int64

	sellMu  sync.Mutex
	selling map[string]bool
}

// New creates an Orchestrator. The monitor is attached afterwards via
// SetWatcher because the monitor needs the orchestrator as its liquidator.
func New(
	cfg Config,
	admitter Admitter,
	store *position.Store,
	executor domain.SwapExecutor,
	reader domain.ChainReader,
	logger *slog.Logger,
) *Orchestrator {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	o := &Orchestrator{
		cfg:      cfg,
		admitter: admitter,
		store:    store,
		executor: executor,
		reader:   reader,
		logger:   logger.With(slog.String("component", "sniper")),
		allow:    make(map[string]bool, len(cfg.Allowlist)),
		deny:     make(map[string]bool, len(cfg.Denylist)),
		selling:  make(map[string]bool),
	}
	for _, m := range cfg.Allowlist {
		o.allow[m] = true
	}
	for _, m := range cfg.Denylist {
		o.deny[m] = true
	}
	return o
}

// SetWatcher attaches the sell-condition monitor. Must be called before the
// first HandlePool.
func (o *Orchestrator) SetWatcher(w PositionWatcher) { o.watcher = w }

// SetJournal attaches the optional durable trade journal.
func (o *Orchestrator) SetJournal(j domain.TradeJournal) { o.journal = j }

// SetNotifier attaches the optional alerting sink.
func (o *Orchestrator) SetNotifier(n Notifier) { o.notifier = n }

// SetDistributedLock attaches the optional cross-instance acquisition lock.
func (o *Orchestrator) SetDistributedLock(lm domain.LockManager) { o.distLock = lm }

// HandlePool is the entry point for a pool-detected event. All negative
// outcomes (duplicate, balance floor, list policy, lock contention, filter
// rejection, retry exhaustion) are normal decisions: they are logged and the
// flow stops for this candidate.
func (o *Orchestrator) HandlePool(ctx context.Context, cand domain.PoolCandidate) {
	mint := cand.BaseMint
	log := o.logger.With(slog.String("mint", mint), slog.String("pool", cand.PoolAddress))

	// Idempotency: one position per mint, ever.
	if o.store.Has(mint) {
		log.Debug("position already exists, skipping")
		return
	}
	if o.deny[mint] {
		log.Info("mint is denylisted, skipping")
		return
	}
	bypassFilter := false
	if o.cfg.AllowlistEnabled {
		if !o.allow[mint] {
			log.Debug("mint not in allowlist, skipping")
			return
		}
		bypassFilter = true
	}

	if !o.balanceOK(ctx, log) {
		return
	}

	if o.cfg.BuyDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(o.cfg.BuyDelay):
		}
	}

	if o.cfg.SingleFlight {
		// Liquidation always takes priority over starting a new acquisition.
		if o.sellsInFlight.Load() > 0 {
			log.Info("liquidation in flight, skipping acquisition")
			return
		}
		if !o.buyMu.TryLock() {
			log.Info("another acquisition in flight, skipping")
			return
		}
		defer o.buyMu.Unlock()

		if o.distLock != nil {
			unlock, err := o.distLock.Acquire(ctx, "acquire", o.cfg.LockTTL)
			if err != nil {
				log.Info("distributed lock unavailable, skipping",
					slog.String("error", err.Error()),
				)
				return
			}
			defer unlock()
		}
	}

	if !bypassFilter && !o.admitter.Decide(ctx, cand) {
		log.Info("candidate rejected by filter pipeline")
		return
	}

	o.acquire(ctx, cand, log)
}

// balanceOK checks the wallet balance floor. A transient read failure counts
// as a failed check, not a fatal error.
func (o *Orchestrator) balanceOK(ctx context.Context, log *slog.Logger) bool {
	if o.cfg.MinBalanceSOL <= 0 {
		return true
	}
	lamports, err := o.reader.Balance(ctx, o.cfg.WalletPublicKey)
	if err != nil {
		log.Warn("balance check failed, skipping", slog.String("error", err.Error()))
		return false
	}
	sol := float64(lamports) / lamportsPerSOL
	if sol < o.cfg.MinBalanceSOL {
		log.Warn("wallet balance below floor, skipping",
			slog.Float64("balance_sol", sol),
			slog.Float64("floor_sol", o.cfg.MinBalanceSOL),
		)
		return false
	}
	return true
}

// acquire runs the bounded-retry buy loop and, on confirmation, opens the
// position and hands it to the monitor.
func (o *Orchestrator) acquire(ctx context.Context, cand domain.PoolCandidate, log *slog.Logger) {
	lamports := uint64(o.cfg.QuoteAmountSOL * lamportsPerSOL)

	res, ok := o.swapWithRetry(ctx, domain.SwapRequest{
		Side:        domain.SwapSideBuy,
		InputMint:   WrappedSOLMint,
		OutputMint:  cand.BaseMint,
		Amount:      lamports,
		SlippageBps: o.cfg.SlippageBps,
	}, o.cfg.MaxBuyRetries, log)
	if !ok {
		log.Error("acquisition failed after all retries")
		o.notifyAsync("snipe_failed", "Snipe failed",
			fmt.Sprintf("Buy of %s did not confirm after %d attempts", cand.BaseMint, o.cfg.MaxBuyRetries))
		return
	}

	symbol := o.lookupSymbol(ctx, cand.BaseMint)
	pos, err := o.store.Open(ctx, cand.BaseMint, symbol, res.Price, res.OutAmount, res.Signature)
	if err != nil {
		// Duplicate open: another path won the race; nothing to monitor.
		log.Warn("open rejected", slog.String("error", err.Error()))
		return
	}
	o.journalRecord(cand.BaseMint, symbol, domain.SwapSideBuy, res, "")
	o.watcher.Watch(cand)

	log.Info("position opened",
		slog.String("symbol", symbol),
		slog.Float64("price", res.Price),
		slog.Float64("amount", res.OutAmount),
		slog.String("signature", res.Signature),
	)
	o.notifyAsync("position_opened", "Position opened",
		fmt.Sprintf("%s: bought %.4f @ %.9f SOL (tx %s)", symbol, pos.Amount, pos.EntryPrice, res.Signature))
}

// Liquidate sells the position for the given mint. It is invoked by the
// monitor on a trigger or by a manual-sell request. On retry exhaustion the
// position stays active and unmonitored; that is the one condition requiring
// manual intervention, so the error is surfaced to the caller.
func (o *Orchestrator) Liquidate(ctx context.Context, mint string, reason domain.ExitReason) error {
	log := o.logger.With(slog.String("mint", mint), slog.String("reason", string(reason)))

	// At most one sell flow per mint: a monitor trigger and a concurrent
	// manual sell must not both submit transactions.
	if !o.beginSell(mint) {
		log.Info("liquidation already in flight for this mint, skipping")
		return nil
	}
	defer o.endSell(mint)

	o.sellsInFlight.Add(1)
	defer o.sellsInFlight.Add(-1)

	pos, err := o.store.Get(mint)
	if err != nil {
		return fmt.Errorf("sniper: liquidate %s: %w", mint, err)
	}
	if pos.Status != domain.PositionStatusActive {
		log.Warn("position already closed, skipping liquidation")
		return nil
	}

	if o.cfg.SellDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.cfg.SellDelay):
		}
	}

	raw, err := o.rawAmount(ctx, mint, pos.Amount)
	if err != nil {
		return fmt.Errorf("sniper: liquidate %s: %w", mint, err)
	}

	res, ok := o.swapWithRetry(ctx, domain.SwapRequest{
		Side:        domain.SwapSideSell,
		InputMint:   mint,
		OutputMint:  WrappedSOLMint,
		Amount:      raw,
		SlippageBps: o.cfg.SlippageBps,
	}, o.cfg.MaxSellRetries, log)
	if !ok {
		o.notifyAsync("error", "Liquidation failed",
			fmt.Sprintf("%s: sell did not confirm after %d attempts, position needs manual reconciliation",
				pos.Symbol, o.cfg.MaxSellRetries))
		return fmt.Errorf("sniper: liquidate %s: sell did not confirm after %d attempts", mint, o.cfg.MaxSellRetries)
	}

	o.store.Close(ctx, mint, reason, res.Signature)
	o.journalRecord(mint, pos.Symbol, domain.SwapSideSell, res, string(reason))

	closed, err := o.store.Get(mint)
	if err == nil {
		o.notifyAsync("position_closed", "Position closed",
			fmt.Sprintf("%s: %s exit, PnL %.4f SOL (%.1f%%), tx %s",
				closed.Symbol, reason, closed.PnL, closed.PnLPercent, res.Signature))
	}
	return nil
}

// ManualSell liquidates a position on operator request and removes it from
// the monitor.
func (o *Orchestrator) ManualSell(ctx context.Context, mint string) error {
	err := o.Liquidate(ctx, mint, domain.ExitReasonManual)
	if o.watcher != nil {
		o.watcher.Unwatch(mint)
	}
	return err
}

// beginSell claims the per-mint liquidation slot; it reports false when a
// sell flow for the mint is already running.
func (o *Orchestrator) beginSell(mint string) bool {
	o.sellMu.Lock()
	defer o.sellMu.Unlock()
	if o.selling[mint] {
		return false
	}
	o.selling[mint] = true
	return true
}

func (o *Orchestrator) endSell(mint string) {
	o.sellMu.Lock()
	defer o.sellMu.Unlock()
	delete(o.selling, mint)
}

// swapWithRetry attempts a swap up to maxRetries times. Each attempt is
// independent: the executor fetches a fresh quote and blockhash per call. A
// confirmed result ends the loop immediately.
func (o *Orchestrator) swapWithRetry(ctx context.Context, req domain.SwapRequest, maxRetries int, log *slog.Logger) (domain.SwapResult, bool) {
	for attempt := 1; attempt <= maxRetries; attempt++ {
		res, err := o.executor.Execute(ctx, req)
		if err != nil {
			log.Warn("swap attempt errored",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		} else if res.Confirmed {
			return res, true
		} else {
			log.Warn("swap attempt not confirmed",
				slog.Int("attempt", attempt),
				slog.String("message", res.Message),
			)
		}

		if attempt == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return domain.SwapResult{}, false
		case <-time.After(retryDelay):
		}
	}
	return domain.SwapResult{}, false
}

// rawAmount converts a UI token amount to base units using the mint's
// decimals.
func (o *Orchestrator) rawAmount(ctx context.Context, mint string, amount float64) (uint64, error) {
	info, err := o.reader.MintInfo(ctx, mint)
	if err != nil {
		return 0, err
	}
	return uint64(amount * math.Pow10(info.Decimals)), nil
}

// lookupSymbol fetches the token symbol best-effort; the mint prefix is used
// when metadata is not readable.
func (o *Orchestrator) lookupSymbol(ctx context.Context, mint string) string {
	meta, err := o.reader.TokenMetadata(ctx, mint)
	if err != nil || meta.Symbol == "" {
		if len(mint) > 8 {
			return mint[:8]
		}
		return mint
	}
	return meta.Symbol
}

// journalRecord appends a confirmed swap to the durable journal, best-effort.
func (o *Orchestrator) journalRecord(mint, symbol string, side domain.SwapSide, res domain.SwapResult, reason string) {
	if o.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rec := domain.TradeRecord{
		Mint:      mint,
		Symbol:    symbol,
		Side:      side,
		Price:     res.Price,
		Amount:    res.OutAmount,
		Signature: res.Signature,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.journal.Record(ctx, rec); err != nil {
		o.logger.Warn("journal write failed",
			slog.String("mint", mint),
			slog.String("error", err.Error()),
		)
	}
}

// notifyAsync dispatches an alert as detached work: failures are logged and
// never block or fail the trading path.
func (o *Orchestrator) notifyAsync(event, title, message string) {
	if o.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := o.notifier.Notify(ctx, event, title, message); err != nil {
			o.logger.Warn("notification failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}()
}
