// Package filter implements the admission pipeline that gates pool
// acquisition. Individual stages evaluate one predicate each; the pipeline
// orders them and applies a debounced consecutive-match protocol so that a
// pool must look clean across several rounds before it is admitted.
package filter

import (
	"context"

	"github.com/ryabkov/solsniper/internal/domain"
)

// Result is a single stage's verdict on a candidate pool.
type Result struct {
	Ok bool
	// Reason is a human-readable explanation, set on failure and optionally
	// on success.
	Reason string
}

// Pass returns a passing Result.
func Pass() Result {
	return Result{Ok: true}
}

// Fail returns a failing Result with the given reason.
func Fail(reason string) Result {
	return Result{Ok: false, Reason: reason}
}

// Stage evaluates one acceptance predicate against a candidate pool. A stage
// that cannot complete its check (upstream timeout, missing account) must
// return a failing Result rather than panic or propagate an error: transient
// outages degrade the admission rate, they never crash the pipeline.
type Stage interface {
	Name() string
	Check(ctx context.Context, cand domain.PoolCandidate) Result
}
