package filter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ryabkov/solsniper/internal/domain"
)

// RouteGateConfig holds the route-viability parameters.
type RouteGateConfig struct {
	// QuoteMint is the input mint for the probe quote (wrapped SOL).
	QuoteMint string
	// NotionalLamports is the probe size in lamports, normally the configured
	// buy notional.
	NotionalLamports uint64
	// MaxPriceImpactPct rejects pools where the probe's estimated price
	// impact exceeds this percentage.
	MaxPriceImpactPct float64
	// Timeout bounds one quote call.
	Timeout time.Duration
}

// RouteGate rejects candidates for which no viable exchange route exists, or
// whose estimated price impact for the configured notional is too high. It is
// the cheapest stage and runs first.
type RouteGate struct {
	cfg    RouteGateConfig
	quoter domain.RouteQuoter
}

// NewRouteGate creates a RouteGate backed by the given quoter.
func NewRouteGate(cfg RouteGateConfig, quoter domain.RouteQuoter) *RouteGate {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &RouteGate{cfg: cfg, quoter: quoter}
}

func (g *RouteGate) Name() string { return "route_gate" }

// Check probes a quote for the configured notional. Upstream timeouts and
// missing routes fold into a failed round.
func (g *RouteGate) Check(ctx context.Context, cand domain.PoolCandidate) Result {
	qctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	quote, err := g.quoter.Quote(qctx, g.cfg.QuoteMint, cand.BaseMint, g.cfg.NotionalLamports)
	if err != nil {
		if errors.Is(err, domain.ErrNoRoute) {
			return Fail("no viable route")
		}
		return Fail(fmt.Sprintf("quote failed: %v", err))
	}

	if quote.PriceImpactPct > g.cfg.MaxPriceImpactPct {
		return Fail(fmt.Sprintf("price impact %.2f%% exceeds %.2f%%",
			quote.PriceImpactPct, g.cfg.MaxPriceImpactPct))
	}
	if quote.OutAmount == 0 {
		return Fail("route returned zero out amount")
	}
	return Pass()
}
