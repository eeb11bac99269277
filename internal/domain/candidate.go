package domain

import "time"

// PoolCandidate is the immutable identifier bundle for a newly observed
// liquidity pool. It is produced by the feed layer when a pool-initialize
// event is seen on chain and is read-only everywhere downstream.
type PoolCandidate struct {
	// BaseMint is the mint address of the token being sniped.
	BaseMint string
	// QuoteMint is the mint address of the quote token (normally wrapped SOL).
	QuoteMint string
	// PoolAddress is the AMM pool account.
	PoolAddress string
	// BaseVault and QuoteVault are the pool's token vault accounts.
	BaseVault  string
	QuoteVault string
	// LpMint is the pool's LP token mint, used for the burn/lock check.
	LpMint string
	// TxSignature is the transaction in which the pool was created.
	TxSignature string
	// DetectedAt is when the feed observed the pool.
	DetectedAt time.Time
}
