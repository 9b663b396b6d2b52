package coordinator

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// waitPolicy returns a bounded, jittered backoff used between Phase-B
// polls. Each step is capped at cfg.RetrySleep so the iteration count
// still bounds elapsed time the way MAX_RETRIES x RETRY_SLEEP describes,
// while avoiding every coordinator waiting on the same peer job polling
// in lockstep.
//
// Grounded on Nuulab-GoFlow's TryAcquire backoff loop (doubling backoff
// capped at a ceiling), reimplemented over the pack's backoff library
// rather than hand-rolled doubling.
func waitPolicy(ctx context.Context, cfg Config) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.RetrySleep / 4
	if b.InitialInterval <= 0 {
		b.InitialInterval = 100 * time.Millisecond
	}
	// Jitter spreads each step up to RandomizationFactor above the
	// current interval, so the interval itself stops that far below
	// RetrySleep.
	b.MaxInterval = time.Duration(float64(cfg.RetrySleep) / (1 + b.RandomizationFactor))
	b.MaxElapsedTime = 0 // bounded by MAX_RETRIES iterations, not elapsed time
	return backoff.WithContext(b, ctx)
}
