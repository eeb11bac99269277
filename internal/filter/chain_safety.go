package filter

import (
	"context"
	"fmt"
	"time"

	"github.com/ryabkov/solsniper/internal/domain"
)

// ChainSafetyConfig selects which on-chain safety checks are enforced. Each
// check is independent and gates on a disjoint on-chain field; any one
// failing fails the stage.
type ChainSafetyConfig struct {
	CheckMintRenounced     bool
	CheckFreezeRevoked     bool
	CheckMetadataImmutable bool
	ExcludeToken2022       bool
	// MinPoolSizeSOL / MaxPoolSizeSOL bound the quote vault balance.
	MinPoolSizeSOL float64
	MaxPoolSizeSOL float64
	// MinLpBurnedPct is the minimum share of the LP supply that must be
	// burned or locked.
	MinLpBurnedPct float64
	// Timeout bounds the whole stage evaluation.
	Timeout time.Duration
}

// ChainSafety is the composite on-chain safety stage: mint authority
// renounced, freeze authority absent, metadata immutable, Token-2022
// excluded, pool size within bounds, and LP supply sufficiently burned.
type ChainSafety struct {
	cfg    ChainSafetyConfig
	reader domain.ChainReader
}

// NewChainSafety creates a ChainSafety stage backed by the given reader.
func NewChainSafety(cfg ChainSafetyConfig, reader domain.ChainReader) *ChainSafety {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &ChainSafety{cfg: cfg, reader: reader}
}

func (s *ChainSafety) Name() string { return "chain_safety" }

// Check runs every enabled sub-check. A lookup that cannot complete (missing
// account, RPC timeout) fails the stage rather than erroring out; the
// debounce loop will try again next round.
func (s *ChainSafety) Check(ctx context.Context, cand domain.PoolCandidate) Result {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	mint, err := s.reader.MintInfo(cctx, cand.BaseMint)
	if err != nil {
		return Fail(fmt.Sprintf("mint info: %v", err))
	}

	if s.cfg.CheckMintRenounced && mint.HasMintAuthority {
		return Fail("mint authority not renounced")
	}
	if s.cfg.CheckFreezeRevoked && mint.HasFreezeAuthority {
		return Fail("freeze authority still set")
	}
	if s.cfg.ExcludeToken2022 && mint.Token2022 {
		return Fail("token-2022 mint excluded")
	}

	if s.cfg.CheckMetadataImmutable {
		meta, err := s.reader.TokenMetadata(cctx, cand.BaseMint)
		if err != nil {
			return Fail(fmt.Sprintf("token metadata: %v", err))
		}
		if meta.Mutable {
			return Fail("metadata is mutable")
		}
	}

	if s.cfg.MinPoolSizeSOL > 0 || s.cfg.MaxPoolSizeSOL > 0 {
		poolSOL, err := s.reader.TokenAccountBalance(cctx, cand.QuoteVault)
		if err != nil {
			return Fail(fmt.Sprintf("quote vault balance: %v", err))
		}
		if poolSOL < s.cfg.MinPoolSizeSOL {
			return Fail(fmt.Sprintf("pool size %.2f SOL below minimum %.2f", poolSOL, s.cfg.MinPoolSizeSOL))
		}
		if s.cfg.MaxPoolSizeSOL > 0 && poolSOL > s.cfg.MaxPoolSizeSOL {
			return Fail(fmt.Sprintf("pool size %.2f SOL above maximum %.2f", poolSOL, s.cfg.MaxPoolSizeSOL))
		}
	}

	if s.cfg.MinLpBurnedPct > 0 && cand.LpMint != "" {
		burned, err := s.lpBurnedPct(cctx, cand.LpMint)
		if err != nil {
			return Fail(fmt.Sprintf("lp supply: %v", err))
		}
		if burned < s.cfg.MinLpBurnedPct {
			return Fail(fmt.Sprintf("lp burned %.1f%% below %.1f%%", burned, s.cfg.MinLpBurnedPct))
		}
	}

	return Pass()
}

// incineratorAddress is the system burn address LP tokens are commonly sent
// to instead of being burned outright.
const incineratorAddress = "1nc1nerator11111111111111111111111111111111"

// lpBurnedPct estimates the burned/locked share of the LP supply. A supply of
// zero means every LP token was burned; otherwise tokens parked at the system
// incinerator count as burned.
func (s *ChainSafety) lpBurnedPct(ctx context.Context, lpMint string) (float64, error) {
	info, err := s.reader.MintInfo(ctx, lpMint)
	if err != nil {
		return 0, err
	}
	if info.Supply <= 0 {
		return 100, nil
	}
	holders, err := s.reader.LargestHolders(ctx, lpMint)
	if err != nil {
		return 0, err
	}
	burned := 0.0
	for _, h := range holders {
		if h.Address == incineratorAddress {
			burned += h.Pct
		}
	}
	return burned, nil
}
