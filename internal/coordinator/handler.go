package coordinator

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"jobcoordinator/internal/blobcache"
	"jobcoordinator/internal/lockstore"
)

// Toucher is the upstream capability the handler depends on — satisfied
// by *router.Client in production and by a fake in tests.
type Toucher interface {
	Touch(ctx context.Context, path string) (status int, body []byte, err error)
}

// Handler drives a single chain to completion. One Handler is shared
// across every Handle call; each call tracks the locks *it* acquired in
// a local slice rather than relying on the store to remember ownership,
// so that Phase D only ever releases this invocation's own locks even
// though the underlying lockstore.Store connection is shared by many
// concurrently-running chains.
type Handler struct {
	Lock     lockstore.Store
	Cache    blobcache.Cache
	Upstream Toucher
	Config   Config
	Log      *zap.Logger
}

// New returns a Handler with the given collaborators. A nil Log installs
// a no-op logger.
func New(lock lockstore.Store, cache blobcache.Cache, upstream Toucher, cfg Config, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Lock: lock, Cache: cache, Upstream: upstream, Config: cfg, Log: log}
}

// Handle drives chain (leaf first, root last, the output of
// jobpath.Chain) to completion. It returns nothing meaningful to the
// caller by contract — every outcome is observable via cache writes,
// error flags, and lock state — but a RunReport is returned for logging
// and tests.
func (h *Handler) Handle(ctx context.Context, chain []string) *RunReport {
	report := newRunReport(chain)

	for {
		owned, todo, pending, hasPending, err := h.phaseA(ctx, chain, report)
		if err != nil {
			h.Log.Error("phase A transport error", zap.Error(err))
			h.cleanup(ctx, owned)
			report.Outcome = "transport-error"
			return report
		}

		if hasPending {
			if len(todo) == 0 {
				// Another coordinator owns the next dependency and
				// there is nothing useful we can do concurrently.
				h.cleanup(ctx, owned)
				report.Outcome = "peer-held-no-todo"
				return report
			}

			resumed, abandoned := h.awaitPeer(ctx, pending, report)
			if abandoned {
				h.cleanup(ctx, owned)
				report.Outcome = "abandoned"
				return report
			}
			if resumed {
				// The peer's cache entry appeared: release what we
				// hold (Phase A will re-examine and find it cached on
				// the next loop iteration) and re-run from the top.
				h.cleanup(ctx, owned)
				continue
			}
		}

		failedJob, err := h.phaseC(ctx, todo, report)
		if err != nil {
			h.Log.Error("phase C transport error", zap.Error(err))
		}
		h.cleanup(ctx, owned)
		if err != nil {
			report.Outcome = "transport-error"
		} else if failedJob != "" {
			report.Outcome = "upstream-error"
		} else {
			report.Outcome = "done"
		}
		return report
	}
}

// phaseA is the root-toward-leaf lock-acquisition scan. owned is every
// job this call itself locked and still holds (a lock taken on a job
// found cached is released before phaseA returns) (in
// acquisition order, i.e. root-to-leaf — cleanup doesn't care about
// order). todo is the contiguous leaf-side prefix this call must
// execute, in leaf-to-root order.
func (h *Handler) phaseA(ctx context.Context, chain []string, report *RunReport) (owned, todo []string, pending string, hasPending bool, err error) {
	for i := len(chain) - 1; i >= 0; i-- {
		job := chain[i]

		cached, cacheErr := h.Cache.Exists(ctx, job)
		if cacheErr != nil {
			return owned, nil, "", false, cacheErr
		}

		locked, lockErr := h.Lock.TryLock(ctx, job, h.Config.JobExpiry)
		if lockErr != nil {
			return owned, nil, "", false, lockErr
		}
		if locked {
			owned = append(owned, job)
		}

		switch {
		case cached:
			report.States[job] = StateCached
			if locked {
				// Nothing at or below a cached job needs doing: give
				// back the lock just taken on it right away.
				if unlockErr := h.Lock.Unlock(ctx, job); unlockErr != nil {
					return owned, nil, "", false, unlockErr
				}
				owned = owned[:len(owned)-1]
			}
			return owned, todo, "", false, nil

		case !locked:
			report.States[job] = StatePeerHeld
			return owned, todo, job, true, nil

		default:
			report.States[job] = StateOwned
			todo = append([]string{job}, todo...)
		}
	}

	return owned, todo, "", false, nil
}

// awaitPeer is Phase B: poll for the pending job to become cached,
// bailing out on a peer error flag or after MAX_RETRIES iterations.
// resumed=true means the caller should re-run Phase A from the top;
// abandoned=true means give up on the whole chain — a peer failure and
// a peer timeout are treated identically: no new error flag, just stop.
func (h *Handler) awaitPeer(ctx context.Context, pending string, report *RunReport) (resumed, abandoned bool) {
	report.States[pending] = StateAwaited
	bo := waitPolicy(ctx, h.Config)

	for i := 1; i <= h.Config.MaxRetries; i++ {
		d := bo.NextBackOff()
		if d == backoff.Stop {
			break
		}
		select {
		case <-ctx.Done():
			return false, true
		case <-time.After(d):
		}

		exists, err := h.Cache.Exists(ctx, pending)
		if err != nil {
			h.Log.Warn("await peer: cache check failed", zap.String("job", pending), zap.Error(err))
		} else if exists {
			return true, false
		}

		if i%h.Config.CheckErrorsEvery == 0 {
			jobErr, err := h.Lock.GetError(ctx, pending)
			if err != nil {
				h.Log.Warn("await peer: error check failed", zap.String("job", pending), zap.Error(err))
			} else if jobErr != nil {
				h.Log.Debug("await peer: peer failed", zap.String("job", pending))
				return false, true
			}
		}
	}

	h.Log.Debug("await peer: exceeded max retries", zap.String("job", pending))
	return false, true
}

// phaseC executes todo leaf-to-root, stopping at the first non-200
// response. It returns the job that failed, if any.
func (h *Handler) phaseC(ctx context.Context, todo []string, report *RunReport) (failedJob string, err error) {
	for _, job := range todo {
		report.States[job] = StateOwned

		status, body, touchErr := h.Upstream.Touch(ctx, job)
		if touchErr != nil {
			return "", touchErr
		}

		if status == http.StatusOK {
			if putErr := h.Cache.Put(ctx, job, body); putErr != nil {
				return "", putErr
			}
			report.States[job] = StateDone
			report.Touched = append(report.Touched, job)
			continue
		}

		if setErr := h.Lock.SetError(ctx, job, status, string(body)); setErr != nil {
			return "", setErr
		}
		report.States[job] = StateFailed
		report.Touched = append(report.Touched, job)
		return job, nil
	}
	return "", nil
}

// cleanup is Phase D: release every lock this call acquired, on every
// exit path.
func (h *Handler) cleanup(ctx context.Context, owned []string) {
	for _, job := range owned {
		if err := h.Lock.Unlock(ctx, job); err != nil && !errors.Is(err, context.Canceled) {
			h.Log.Warn("cleanup: failed to release lock", zap.String("job", job), zap.Error(err))
		}
	}
}
