// Package monitor implements the sell-condition monitor: a single shared
// polling loop that evaluates every watched position once per cycle against
// the live price feed and triggers liquidation when take-profit, stop-loss,
// or TTL fires.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ryabkov/solsniper/internal/domain"
	"github.com/ryabkov/solsniper/internal/position"
)

// Liquidator is the monitor's exit path. It is implemented by the sniper
// orchestrator; the monitor never talks to the transaction executor directly.
type Liquidator interface {
	Liquidate(ctx context.Context, mint string, reason domain.ExitReason) error
}

// Config holds the sell-condition thresholds.
type Config struct {
	// TakeProfitPct triggers a sell when PnL percent reaches this value.
	TakeProfitPct float64
	// StopLossPct triggers a sell when PnL percent falls to minus this value.
	StopLossPct float64
	// TTL is the maximum holding duration before a forced exit.
	TTL time.Duration
	// CheckInterval is the pause between evaluation cycles.
	CheckInterval time.Duration
}

// entry is one watched position.
type entry struct {
	cand      domain.PoolCandidate
	startedAt time.Time
}

// Monitor owns the watch set and the shared evaluation loop. The loop runs
// while at least one entry is watched; when the set empties it exits and is
// restarted lazily by the next Watch call, so an idle monitor polls nothing.
type Monitor struct {
	cfg        Config
	oracle     domain.PriceOracle
	store      *position.Store
	liquidator Liquidator
	priceCache domain.PriceCache // optional best-effort mirror
	logger     *slog.Logger

	// runCtx lives for the monitor's lifetime and is cancelled only by
	// Stop. Liquidations run on it, not on the cycle deadline.
	runCtx  context.Context
	runStop context.CancelFunc

	mu      sync.Mutex
	entries map[string]*entry
	running bool
	stopped bool
	stopCh  chan struct{}
}

// New creates a Monitor. priceCache may be nil.
func New(cfg Config, oracle domain.PriceOracle, store *position.Store, liquidator Liquidator, priceCache domain.PriceCache, logger *slog.Logger) *Monitor {
	runCtx, runStop := context.WithCancel(context.Background())
	return &Monitor{
		runCtx:     runCtx,
		runStop:    runStop,
		cfg:        cfg,
		oracle:     oracle,
		store:      store,
		liquidator: liquidator,
		priceCache: priceCache,
		logger:     logger.With(slog.String("component", "sell_monitor")),
		entries:    make(map[string]*entry),
		stopCh:     make(chan struct{}),
	}
}

// Watch adds a position to the watch set and lazily starts the shared loop.
// One entry per mint; re-watching an already-watched mint is a no-op.
func (m *Monitor) Watch(cand domain.PoolCandidate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	if _, ok := m.entries[cand.BaseMint]; ok {
		return
	}
	m.entries[cand.BaseMint] = &entry{cand: cand, startedAt: time.Now().UTC()}
	m.logger.Info("watching position",
		slog.String("mint", cand.BaseMint),
		slog.Int("watched", len(m.entries)),
	)
	if !m.running {
		m.running = true
		go m.loop()
	}
}

// Unwatch removes a position from the watch set.
func (m *Monitor) Unwatch(mint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, mint)
}

// Watched returns the mints currently under watch.
func (m *Monitor) Watched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for mint := range m.entries {
		out = append(out, mint)
	}
	return out
}

// Stop halts monitoring globally: it clears the watch set and signals the
// loop. Safe to call at any point and more than once; an in-flight cycle may
// complete one more evaluation before the loop observes the stop.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.stopped = true
	m.entries = make(map[string]*entry)
	close(m.stopCh)
	m.runStop()
	m.logger.Info("monitor stopped")
}

// loop is the shared evaluation cycle. It exits when the watch set empties or
// Stop is called.
func (m *Monitor) loop() {
	m.logger.Debug("monitor loop started")
	for {
		snapshot := m.snapshot()
		if snapshot == nil {
			m.logger.Debug("monitor loop exiting")
			return
		}

		for mint, e := range snapshot {
			m.evaluate(mint, e)
		}

		select {
		case <-m.stopCh:
			m.mu.Lock()
			m.running = false
			m.mu.Unlock()
			return
		case <-time.After(m.cfg.CheckInterval):
		}
	}
}

// snapshot copies the current watch set, or returns nil (and marks the loop
// stopped) when there is nothing left to watch.
func (m *Monitor) snapshot() map[string]*entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped || len(m.entries) == 0 {
		m.running = false
		return nil
	}
	out := make(map[string]*entry, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}

// evaluate runs one cycle for one entry. Failures are isolated: an error or
// panic evaluating one entry never aborts the rest of the cycle or the loop.
func (m *Monitor) evaluate(mint string, e *entry) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("panic evaluating position",
				slog.String("mint", mint),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()

	// Cycle deadline covers the price fetch and store refresh only. The
	// liquidation path can legitimately run for minutes (sell delay plus
	// bounded retries with per-attempt confirmation timeouts), so triggers
	// run on the monitor's lifetime context instead.
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.CheckInterval+10*time.Second)
	defer cancel()

	// 1. TTL is checked before the price so a stale feed cannot pin a
	// position open past its deadline.
	if m.cfg.TTL > 0 && time.Since(e.startedAt) >= m.cfg.TTL {
		m.trigger(mint, domain.ExitReasonTTL)
		return
	}

	// 2. Price fetch. Feed gaps are expected: skip the cycle, stay watched.
	price, err := m.oracle.Quote(ctx, mint)
	if err != nil {
		m.logger.Debug("price unavailable, skipping cycle",
			slog.String("mint", mint),
			slog.String("error", err.Error()),
		)
		return
	}

	pos, err := m.store.Get(mint)
	if err != nil {
		// Position gone (closed externally); drop the watch.
		m.Unwatch(mint)
		return
	}

	// 3. PnL on the live quantity held; the store is refreshed on every
	// successful price read regardless of trigger outcome.
	currentValue := price * pos.Amount
	buyValue := pos.EntryValue()
	m.store.Refresh(ctx, mint, price, currentValue)
	if m.priceCache != nil {
		if err := m.priceCache.SetPrice(ctx, mint, price, time.Now().UTC()); err != nil {
			m.logger.Debug("price cache write failed", slog.String("error", err.Error()))
		}
	}
	if buyValue <= 0 {
		return
	}
	pnlPct := (currentValue - buyValue) / buyValue * 100

	// 4. Take-profit, then 5. stop-loss; first match wins.
	switch {
	case pnlPct >= m.cfg.TakeProfitPct:
		m.trigger(mint, domain.ExitReasonTakeProfit)
	case pnlPct <= -m.cfg.StopLossPct:
		m.trigger(mint, domain.ExitReasonStopLoss)
	}
}

// trigger invokes the liquidation path and unconditionally removes the watch
// entry: liquidation is attempted at most once per trigger, and a failed sell
// does not re-arm monitoring (reconciliation of stuck positions is manual).
// The liquidation runs on the monitor's lifetime context, cancelled only by
// Stop; a swap attempt in flight is never cut short by the evaluation cycle.
func (m *Monitor) trigger(mint string, reason domain.ExitReason) {
	m.logger.Info("sell condition triggered",
		slog.String("mint", mint),
		slog.String("reason", string(reason)),
	)
	if err := m.liquidator.Liquidate(m.runCtx, mint, reason); err != nil {
		m.logger.Error("liquidation failed, position needs manual attention",
			slog.String("mint", mint),
			slog.String("reason", string(reason)),
			slog.String("error", err.Error()),
		)
	}
	m.Unwatch(mint)
}
