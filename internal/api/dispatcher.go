// Package api translates inbound HTTP requests into dispatcher
// decisions: a cache hit answers synchronously, a parse failure or a
// live error flag short-circuits, and everything else is handed to the
// coordinator pool and acknowledged with 202 before the chain finishes.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"jobcoordinator/internal/blobcache"
	"jobcoordinator/internal/coordinator"
	"jobcoordinator/internal/jobpath"
	"jobcoordinator/internal/lockstore"
)

// Result is a dispatch outcome: an HTTP status paired with a body. Body
// is nil for 202/204 responses.
type Result struct {
	Status int
	Body   []byte
}

// Dispatcher implements the request-dispatcher contract over a Cache, a
// Store, and a coordinator Pool running Handler.Handle in the
// background.
type Dispatcher struct {
	Cache   blobcache.Cache
	Lock    lockstore.Store
	Handler *coordinator.Handler
	Pool    *coordinator.Pool
	Log     *zap.Logger
	Metrics *Metrics
}

// DispatchJob implements §4.6: try the cache for the full requested
// path, then parse, then check every chain element's error flag, then
// enqueue a background handler run.
func (d *Dispatcher) DispatchJob(ctx context.Context, path string) Result {
	if body, err := d.Cache.Get(ctx, path); err == nil {
		d.Metrics.cacheHits.Inc()
		return Result{Status: http.StatusOK, Body: body}
	} else if !errors.Is(err, blobcache.ErrNotCached) {
		d.Log.Error("cache unreachable", zap.String("path", path), zap.Error(err))
		return Result{Status: http.StatusServiceUnavailable, Body: []byte("cache unavailable")}
	}

	chain, err := jobpath.ParseChain(path)
	if err != nil {
		return Result{Status: http.StatusNotFound, Body: []byte(err.Error())}
	}

	for _, job := range chain {
		jobErr, err := d.Lock.GetError(ctx, job)
		if err != nil {
			d.Log.Error("lock store unreachable", zap.String("job", job), zap.Error(err))
			return Result{Status: http.StatusServiceUnavailable, Body: []byte("lock store unavailable")}
		}
		if jobErr != nil {
			msg := fmt.Sprintf("%s returned %s", job, jobErr.Message)
			return Result{Status: jobErr.Status, Body: []byte(msg)}
		}
	}

	d.Metrics.chainLength.Observe(float64(len(chain)))

	accepted := d.Pool.Submit(context.Background(), func() {
		report := d.Handler.Handle(context.Background(), chain)
		d.Metrics.observeOutcome(report.Outcome)
	})
	if !accepted {
		return Result{Status: http.StatusServiceUnavailable, Body: []byte("job queue full")}
	}
	return Result{Status: http.StatusAccepted}
}

// ListJobs implements `GET /job/`.
func (d *Dispatcher) ListJobs(ctx context.Context) ([]string, error) {
	return d.Lock.Jobs(ctx)
}

// ListErrors implements `GET /errors/`.
func (d *Dispatcher) ListErrors(ctx context.Context) (map[string]lockstore.JobError, error) {
	return d.Lock.Errors(ctx)
}

// PurgeErrors implements `POST /errors/purge/`.
func (d *Dispatcher) PurgeErrors(ctx context.Context) error {
	return d.Lock.ClearErrors(ctx)
}
