package filter

import (
	"context"
	"log/slog"
	"time"

	"github.com/ryabkov/solsniper/internal/domain"
)

// PipelineConfig holds the debounce parameters.
type PipelineConfig struct {
	// RepeatCount is the number of consecutive all-pass rounds required for
	// admission.
	RepeatCount int
	// RepeatInterval is the pause between rounds.
	RepeatInterval time.Duration
	// RepeatTimeout bounds the whole admission attempt; the number of rounds
	// is ceil(RepeatTimeout / RepeatInterval).
	RepeatTimeout time.Duration
}

// Pipeline runs an ordered list of stages against a candidate pool with a
// debounced consecutive-match protocol. Newly created pools have volatile
// on-chain and off-chain state (metadata still propagating, first trades
// still settling), so a single clean round is not trusted: the candidate must
// pass every stage RepeatCount rounds in a row.
//
// Stage order is a design parameter: cheapest and fastest stages go first so
// a failing round short-circuits before hitting slower or rate-limited
// upstreams.
type Pipeline struct {
	cfg    PipelineConfig
	stages []Stage
	logger *slog.Logger
}

// NewPipeline creates a Pipeline over the given stages, evaluated in order.
func NewPipeline(cfg PipelineConfig, stages []Stage, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		stages: stages,
		logger: logger.With(slog.String("component", "filter_pipeline")),
	}
}

// maxAttempts returns ceil(RepeatTimeout / RepeatInterval), minimum 1.
func (p *Pipeline) maxAttempts() int {
	if p.cfg.RepeatInterval <= 0 {
		return 1
	}
	n := int((p.cfg.RepeatTimeout + p.cfg.RepeatInterval - 1) / p.cfg.RepeatInterval)
	if n < 1 {
		n = 1
	}
	return n
}

// Decide runs the admission protocol for one candidate and returns true when
// the pool is admitted. The consecutive-pass counter is strict: any failing
// round resets it to zero, so admission requires a contiguous run of clean
// rounds, not a cumulative count. Decision state is ephemeral and lives only
// for the duration of this call.
func (p *Pipeline) Decide(ctx context.Context, cand domain.PoolCandidate) bool {
	maxAttempts := p.maxAttempts()
	log := p.logger.With(slog.String("mint", cand.BaseMint))

	consecutive := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if p.runRound(ctx, cand, log) {
			consecutive++
			log.Debug("filter round passed",
				slog.Int("attempt", attempt),
				slog.Int("consecutive", consecutive),
			)
			if consecutive >= p.cfg.RepeatCount {
				log.Info("candidate admitted",
					slog.Int("attempts", attempt),
				)
				return true
			}
		} else {
			// One bad round invalidates prior consecutive passes.
			consecutive = 0
		}

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			log.Debug("admission cancelled", slog.String("error", ctx.Err().Error()))
			return false
		case <-time.After(p.cfg.RepeatInterval):
		}
	}

	log.Info("candidate rejected",
		slog.Int("attempts", maxAttempts),
		slog.Int("required", p.cfg.RepeatCount),
	)
	return false
}

// runRound evaluates every stage sequentially, short-circuiting on the first
// failure.
func (p *Pipeline) runRound(ctx context.Context, cand domain.PoolCandidate, log *slog.Logger) bool {
	for _, stage := range p.stages {
		res := stage.Check(ctx, cand)
		if !res.Ok {
			log.Debug("filter stage failed",
				slog.String("stage", stage.Name()),
				slog.String("reason", res.Reason),
			)
			return false
		}
	}
	return true
}
