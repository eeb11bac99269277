// Package domain defines the core entities of the sniper bot and the narrow
// contracts of its external collaborators. Implementations live under
// internal/platform, internal/cache, and internal/store; the decision and
// monitoring engine depends only on these interfaces.
package domain

import (
	"context"
	"time"
)

// PriceOracle returns a best-effort current quote price for a token.
// Timeouts and upstream errors collapse to ErrPriceUnavailable; callers treat
// an unavailable price as a skipped cycle, never as an exit signal.
type PriceOracle interface {
	// Quote returns the current price of the mint in quote tokens (SOL).
	Quote(ctx context.Context, mint string) (float64, error)
}

// RouteQuoter estimates a swap route. A missing route or upstream timeout
// collapses to ErrNoRoute.
type RouteQuoter interface {
	Quote(ctx context.Context, inputMint, outputMint string, amount uint64) (RouteQuote, error)
}

// ChainReader provides the on-chain lookups the safety checks need. A missing
// account is reported as ErrNotFound and treated as a failed check, not a
// fatal error.
type ChainReader interface {
	MintInfo(ctx context.Context, mint string) (MintInfo, error)
	TokenMetadata(ctx context.Context, mint string) (TokenMetadata, error)
	// Balance returns an account's lamport balance.
	Balance(ctx context.Context, address string) (uint64, error)
	// TokenAccountBalance returns a token account's balance in UI units.
	TokenAccountBalance(ctx context.Context, account string) (float64, error)
	// TokenSupply returns a mint's total supply in UI units.
	TokenSupply(ctx context.Context, mint string) (float64, error)
	// LargestHolders returns the largest token accounts for a mint as
	// percentages of total supply, largest first.
	LargestHolders(ctx context.Context, mint string) ([]HolderBalance, error)
}

// TokenAggregator is the off-chain social/metadata aggregator. A token that
// is not yet indexed is reported as ErrNotFound; callers keep polling until
// their own deadline.
type TokenAggregator interface {
	Profile(ctx context.Context, mint string) (TokenProfile, error)
}

// SwapExecutor builds, signs, submits, and confirms one swap transaction.
// Expected failures are reported inside SwapResult with Confirmed=false; a Go
// error indicates a transport problem. Both count as a failed attempt.
type SwapExecutor interface {
	Execute(ctx context.Context, req SwapRequest) (SwapResult, error)
}

// LockManager is an optional cross-instance lock used to extend single-flight
// acquisition across bot replicas sharing one wallet. Acquire returns an
// unlock function that must be called to release the lock, or ErrLockHeld.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// PriceCache mirrors the latest observed price per mint for external readers
// (status server, dashboards). Writes are best-effort.
type PriceCache interface {
	SetPrice(ctx context.Context, mint string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, mint string) (float64, time.Time, error)
}

// TradeJournal is the durable audit trail of confirmed swaps.
type TradeJournal interface {
	Record(ctx context.Context, rec TradeRecord) error
	// ListBefore returns up to limit trades created before the cutoff,
	// oldest first.
	ListBefore(ctx context.Context, before time.Time, limit int) ([]TradeRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
