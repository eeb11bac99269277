package filter

import (
	"context"
	"fmt"
	"time"

	"github.com/ryabkov/solsniper/internal/domain"
)

// HolderSpread rejects candidates whose supply is concentrated in a single
// non-pool holder. Concentrated supply means one wallet can dump the whole
// float.
type HolderSpread struct {
	// MaxTopHolderPct is the largest share any single holder other than the
	// pool vault may own.
	MaxTopHolderPct float64
	Reader          domain.ChainReader
}

func (h *HolderSpread) Name() string { return "holder_spread" }

func (h *HolderSpread) Check(ctx context.Context, cand domain.PoolCandidate) Result {
	if h.MaxTopHolderPct <= 0 {
		return Pass()
	}
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	holders, err := h.Reader.LargestHolders(cctx, cand.BaseMint)
	if err != nil {
		return Fail(fmt.Sprintf("largest holders: %v", err))
	}
	for _, holder := range holders {
		// The pool's own vault legitimately holds a large share.
		if holder.Address == cand.BaseVault {
			continue
		}
		if holder.Pct > h.MaxTopHolderPct {
			return Fail(fmt.Sprintf("holder %s owns %.1f%% (max %.1f%%)",
				holder.Address, holder.Pct, h.MaxTopHolderPct))
		}
	}
	return Pass()
}

// PoolAge gates on the time since the pool-creation transaction was
// observed. The feed stamps DetectedAt from the subscription event; a
// dedicated first-transaction lookup would be more precise, and the stage
// passes permissively when the stamp is missing.
//
// TODO: resolve the creation slot's block time via getBlockTime instead of
// relying on the feed's observation timestamp.
type PoolAge struct {
	MinAge time.Duration
}

func (p *PoolAge) Name() string { return "pool_age" }

func (p *PoolAge) Check(ctx context.Context, cand domain.PoolCandidate) Result {
	if p.MinAge <= 0 || cand.DetectedAt.IsZero() {
		return Pass()
	}
	age := time.Since(cand.DetectedAt)
	if age < p.MinAge {
		return Fail(fmt.Sprintf("pool age %s below minimum %s", age.Round(time.Second), p.MinAge))
	}
	return Pass()
}
