package filter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ryabkov/solsniper/internal/domain"
)

type fakeQuoter struct {
	quote domain.RouteQuote
	err   error
}

func (f *fakeQuoter) Quote(ctx context.Context, in, out string, amount uint64) (domain.RouteQuote, error) {
	return f.quote, f.err
}

func TestRouteGate(t *testing.T) {
	cfg := RouteGateConfig{
		QuoteMint:         "So11111111111111111111111111111111111111112",
		NotionalLamports:  100_000_000,
		MaxPriceImpactPct: 10,
	}
	cand := domain.PoolCandidate{BaseMint: "mintA"}

	tests := []struct {
		name   string
		quoter *fakeQuoter
		wantOk bool
		reason string
	}{
		{"viable route", &fakeQuoter{quote: domain.RouteQuote{OutAmount: 5000, PriceImpactPct: 1.5}}, true, ""},
		{"no route", &fakeQuoter{err: domain.ErrNoRoute}, false, "no viable route"},
		{"upstream error", &fakeQuoter{err: errors.New("connect refused")}, false, "quote failed"},
		{"impact too high", &fakeQuoter{quote: domain.RouteQuote{OutAmount: 5000, PriceImpactPct: 25}}, false, "price impact"},
		{"zero out amount", &fakeQuoter{quote: domain.RouteQuote{OutAmount: 0}}, false, "zero out amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewRouteGate(cfg, tt.quoter).Check(context.Background(), cand)
			if res.Ok != tt.wantOk {
				t.Fatalf("Ok = %v, want %v (reason %q)", res.Ok, tt.wantOk, res.Reason)
			}
			if !tt.wantOk && !strings.Contains(res.Reason, tt.reason) {
				t.Errorf("reason %q does not contain %q", res.Reason, tt.reason)
			}
		})
	}
}

// fakeReader serves canned answers per address.
type fakeReader struct {
	mints    map[string]domain.MintInfo
	meta     map[string]domain.TokenMetadata
	balances map[string]float64
	holders  map[string][]domain.HolderBalance
	lamports uint64
	err      error
}

func (f *fakeReader) MintInfo(ctx context.Context, mint string) (domain.MintInfo, error) {
	if f.err != nil {
		return domain.MintInfo{}, f.err
	}
	info, ok := f.mints[mint]
	if !ok {
		return domain.MintInfo{}, domain.ErrNotFound
	}
	return info, nil
}

func (f *fakeReader) TokenMetadata(ctx context.Context, mint string) (domain.TokenMetadata, error) {
	meta, ok := f.meta[mint]
	if !ok {
		return domain.TokenMetadata{}, domain.ErrNotFound
	}
	return meta, nil
}

func (f *fakeReader) Balance(ctx context.Context, address string) (uint64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.lamports, nil
}

func (f *fakeReader) TokenAccountBalance(ctx context.Context, account string) (float64, error) {
	bal, ok := f.balances[account]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return bal, nil
}

func (f *fakeReader) TokenSupply(ctx context.Context, mint string) (float64, error) {
	info, ok := f.mints[mint]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return info.Supply, nil
}

func (f *fakeReader) LargestHolders(ctx context.Context, mint string) ([]domain.HolderBalance, error) {
	holders, ok := f.holders[mint]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return holders, nil
}

func safeMint() domain.MintInfo {
	return domain.MintInfo{Supply: 1_000_000, Decimals: 9}
}

func TestChainSafety(t *testing.T) {
	cand := domain.PoolCandidate{
		BaseMint:   "mintA",
		QuoteVault: "vaultQ",
		LpMint:     "lpMint",
	}
	cfg := ChainSafetyConfig{
		CheckMintRenounced:     true,
		CheckFreezeRevoked:     true,
		CheckMetadataImmutable: true,
		ExcludeToken2022:       true,
		MinPoolSizeSOL:         5,
		MaxPoolSizeSOL:         1000,
		MinLpBurnedPct:         80,
	}

	base := func() *fakeReader {
		return &fakeReader{
			mints: map[string]domain.MintInfo{
				"mintA":  safeMint(),
				"lpMint": {Supply: 0},
			},
			meta:     map[string]domain.TokenMetadata{"mintA": {Symbol: "TOKA"}},
			balances: map[string]float64{"vaultQ": 50},
		}
	}

	t.Run("all checks pass", func(t *testing.T) {
		res := NewChainSafety(cfg, base()).Check(context.Background(), cand)
		if !res.Ok {
			t.Fatalf("expected pass, got %q", res.Reason)
		}
	})

	t.Run("mint authority present", func(t *testing.T) {
		r := base()
		r.mints["mintA"] = domain.MintInfo{HasMintAuthority: true, Supply: 1}
		res := NewChainSafety(cfg, r).Check(context.Background(), cand)
		if res.Ok || !strings.Contains(res.Reason, "mint authority") {
			t.Fatalf("got Ok=%v reason=%q", res.Ok, res.Reason)
		}
	})

	t.Run("freeze authority present", func(t *testing.T) {
		r := base()
		r.mints["mintA"] = domain.MintInfo{HasFreezeAuthority: true, Supply: 1}
		res := NewChainSafety(cfg, r).Check(context.Background(), cand)
		if res.Ok || !strings.Contains(res.Reason, "freeze authority") {
			t.Fatalf("got Ok=%v reason=%q", res.Ok, res.Reason)
		}
	})

	t.Run("token-2022 excluded", func(t *testing.T) {
		r := base()
		r.mints["mintA"] = domain.MintInfo{Token2022: true, Supply: 1}
		res := NewChainSafety(cfg, r).Check(context.Background(), cand)
		if res.Ok || !strings.Contains(res.Reason, "token-2022") {
			t.Fatalf("got Ok=%v reason=%q", res.Ok, res.Reason)
		}
	})

	t.Run("mutable metadata", func(t *testing.T) {
		r := base()
		r.meta["mintA"] = domain.TokenMetadata{Symbol: "TOKA", Mutable: true}
		res := NewChainSafety(cfg, r).Check(context.Background(), cand)
		if res.Ok || !strings.Contains(res.Reason, "mutable") {
			t.Fatalf("got Ok=%v reason=%q", res.Ok, res.Reason)
		}
	})

	t.Run("pool too small", func(t *testing.T) {
		r := base()
		r.balances["vaultQ"] = 1
		res := NewChainSafety(cfg, r).Check(context.Background(), cand)
		if res.Ok || !strings.Contains(res.Reason, "below minimum") {
			t.Fatalf("got Ok=%v reason=%q", res.Ok, res.Reason)
		}
	})

	t.Run("pool too large", func(t *testing.T) {
		r := base()
		r.balances["vaultQ"] = 5000
		res := NewChainSafety(cfg, r).Check(context.Background(), cand)
		if res.Ok || !strings.Contains(res.Reason, "above maximum") {
			t.Fatalf("got Ok=%v reason=%q", res.Ok, res.Reason)
		}
	})

	t.Run("lp held outside incinerator", func(t *testing.T) {
		r := base()
		r.mints["lpMint"] = domain.MintInfo{Supply: 100}
		r.holders = map[string][]domain.HolderBalance{
			"lpMint": {{Address: "someWallet", Pct: 100}},
		}
		res := NewChainSafety(cfg, r).Check(context.Background(), cand)
		if res.Ok || !strings.Contains(res.Reason, "lp burned") {
			t.Fatalf("got Ok=%v reason=%q", res.Ok, res.Reason)
		}
	})

	t.Run("lp parked at incinerator counts as burned", func(t *testing.T) {
		r := base()
		r.mints["lpMint"] = domain.MintInfo{Supply: 100}
		r.holders = map[string][]domain.HolderBalance{
			"lpMint": {
				{Address: incineratorAddress, Pct: 95},
				{Address: "someWallet", Pct: 5},
			},
		}
		res := NewChainSafety(cfg, r).Check(context.Background(), cand)
		if !res.Ok {
			t.Fatalf("expected pass, got %q", res.Reason)
		}
	})

	t.Run("missing account fails, never panics", func(t *testing.T) {
		res := NewChainSafety(cfg, &fakeReader{}).Check(context.Background(), cand)
		if res.Ok {
			t.Fatal("expected failure for missing mint account")
		}
	})
}

func TestHolderSpread(t *testing.T) {
	cand := domain.PoolCandidate{BaseMint: "mintA", BaseVault: "vaultB"}
	reader := &fakeReader{
		holders: map[string][]domain.HolderBalance{
			"mintA": {
				{Address: "vaultB", Pct: 90}, // pool vault, exempt
				{Address: "whale", Pct: 8},
			},
		},
	}

	stage := &HolderSpread{MaxTopHolderPct: 10, Reader: reader}
	if res := stage.Check(context.Background(), cand); !res.Ok {
		t.Fatalf("expected pass when only the pool vault is concentrated, got %q", res.Reason)
	}

	reader.holders["mintA"] = []domain.HolderBalance{
		{Address: "vaultB", Pct: 60},
		{Address: "whale", Pct: 35},
	}
	if res := stage.Check(context.Background(), cand); res.Ok {
		t.Fatal("expected failure for a concentrated non-vault holder")
	}

	disabled := &HolderSpread{MaxTopHolderPct: 0, Reader: reader}
	if res := disabled.Check(context.Background(), cand); !res.Ok {
		t.Fatal("disabled stage must pass unconditionally")
	}
}

func TestPoolAge(t *testing.T) {
	stage := &PoolAge{MinAge: 10 * time.Second}

	young := domain.PoolCandidate{DetectedAt: time.Now()}
	if res := stage.Check(context.Background(), young); res.Ok {
		t.Fatal("expected failure for a just-detected pool")
	}

	old := domain.PoolCandidate{DetectedAt: time.Now().Add(-time.Minute)}
	if res := stage.Check(context.Background(), old); !res.Ok {
		t.Fatalf("expected pass for an aged pool, got %q", res.Reason)
	}

	unstamped := domain.PoolCandidate{}
	if res := stage.Check(context.Background(), unstamped); !res.Ok {
		t.Fatal("missing timestamp must pass permissively")
	}
}

// pollingAggregator is not-found for the first n calls, then returns the
// profile.
type pollingAggregator struct {
	notFoundCalls int
	profile       domain.TokenProfile
	calls         int
}

func (f *pollingAggregator) Profile(ctx context.Context, mint string) (domain.TokenProfile, error) {
	f.calls++
	if f.calls <= f.notFoundCalls {
		return domain.TokenProfile{}, domain.ErrNotFound
	}
	return f.profile, nil
}

func TestSocialPollsUntilIndexed(t *testing.T) {
	agg := &pollingAggregator{
		notFoundCalls: 3,
		profile:       domain.TokenProfile{LogoPresent: true, Socials: []string{"https://x.com/toka"}},
	}
	stage := NewSocial(SocialConfig{
		RequireLogo:    true,
		RequireSocials: true,
		MaxWait:        100 * time.Millisecond,
		PollInterval:   time.Millisecond,
	}, agg)

	res := stage.Check(context.Background(), domain.PoolCandidate{BaseMint: "mintA"})
	if !res.Ok {
		t.Fatalf("expected pass once aggregator indexes the token, got %q", res.Reason)
	}
	if agg.calls != 4 {
		t.Errorf("aggregator called %d times, want 4", agg.calls)
	}
}

func TestSocialFailsAtDeadline(t *testing.T) {
	agg := &pollingAggregator{notFoundCalls: 1 << 30}
	stage := NewSocial(SocialConfig{
		RequireLogo:  true,
		MaxWait:      10 * time.Millisecond,
		PollInterval: 2 * time.Millisecond,
	}, agg)

	res := stage.Check(context.Background(), domain.PoolCandidate{BaseMint: "mintA"})
	if res.Ok {
		t.Fatal("expected timeout failure for a never-indexed token")
	}
	if !strings.Contains(res.Reason, "not complete within") {
		t.Errorf("reason %q, want deadline message", res.Reason)
	}
}

func TestSocialIncompleteProfileKeepsPolling(t *testing.T) {
	// Indexed immediately but without socials; requirements never met.
	agg := &pollingAggregator{profile: domain.TokenProfile{LogoPresent: true}}
	stage := NewSocial(SocialConfig{
		RequireLogo:    true,
		RequireSocials: true,
		MaxWait:        10 * time.Millisecond,
		PollInterval:   2 * time.Millisecond,
	}, agg)

	res := stage.Check(context.Background(), domain.PoolCandidate{BaseMint: "mintA"})
	if res.Ok {
		t.Fatal("expected failure when socials never appear")
	}
	if agg.calls < 2 {
		t.Errorf("aggregator called %d times, want repeated polling", agg.calls)
	}
}
