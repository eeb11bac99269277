package filter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ryabkov/solsniper/internal/domain"
)

// SocialConfig holds the social/metadata presence requirements.
type SocialConfig struct {
	// RequireLogo and RequireSocials control which aggregator fields must be
	// present.
	RequireLogo    bool
	RequireSocials bool
	// MaxWait bounds how long the stage polls the aggregator before giving
	// up with a timeout failure.
	MaxWait time.Duration
	// PollInterval is the pause between aggregator lookups.
	PollInterval time.Duration
}

// Social polls the off-chain aggregator until the token's logo and social
// links are visible or MaxWait elapses. Fresh tokens take a while to be
// indexed, so not-found responses mean "keep polling", not failure; only the
// stage's own deadline turns them into a failed round.
type Social struct {
	cfg SocialConfig
	agg domain.TokenAggregator
}

// NewSocial creates a Social stage backed by the given aggregator.
func NewSocial(cfg SocialConfig, agg domain.TokenAggregator) *Social {
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Social{cfg: cfg, agg: agg}
}

func (s *Social) Name() string { return "social_metadata" }

// Check polls the aggregator until the requirements are met or MaxWait
// elapses. It returns fail-with-timeout rather than blocking indefinitely.
func (s *Social) Check(ctx context.Context, cand domain.PoolCandidate) Result {
	deadline := time.Now().Add(s.cfg.MaxWait)

	for {
		profile, err := s.agg.Profile(ctx, cand.BaseMint)
		switch {
		case err == nil:
			if res := s.evaluate(profile); res.Ok {
				return res
			}
			// Indexed but incomplete; keep polling until the deadline.
		case errors.Is(err, domain.ErrNotFound):
			// Not indexed yet; keep polling.
		default:
			return Fail(fmt.Sprintf("aggregator lookup: %v", err))
		}

		if time.Now().Add(s.cfg.PollInterval).After(deadline) {
			return Fail(fmt.Sprintf("social metadata not complete within %s", s.cfg.MaxWait))
		}
		select {
		case <-ctx.Done():
			return Fail("cancelled while polling aggregator")
		case <-time.After(s.cfg.PollInterval):
		}
	}
}

func (s *Social) evaluate(p domain.TokenProfile) Result {
	if s.cfg.RequireLogo && !p.LogoPresent {
		return Fail("logo missing")
	}
	if s.cfg.RequireSocials && len(p.Socials) == 0 {
		return Fail("no social links")
	}
	return Pass()
}
