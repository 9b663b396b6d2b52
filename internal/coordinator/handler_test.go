package coordinator

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"jobcoordinator/internal/blobcache"
	"jobcoordinator/internal/jobpath"
	"jobcoordinator/internal/lockstore"
)

// fakeToucher answers Touch from a per-job script, recording every call
// it receives so tests can assert on call order and on which jobs were
// actually reached.
type fakeToucher struct {
	mu     sync.Mutex
	status map[string]int
	body   map[string][]byte
	calls  []string
}

func newFakeToucher() *fakeToucher {
	return &fakeToucher{status: map[string]int{}, body: map[string][]byte{}}
}

func (f *fakeToucher) Touch(_ context.Context, path string) (int, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, path)
	status, ok := f.status[path]
	if !ok {
		status = http.StatusOK
	}
	return status, f.body[path], nil
}

func fastConfig() Config {
	return Config{
		JobExpiry:        time.Minute,
		ErrorExpiry:      time.Minute,
		MaxRetries:       4,
		RetrySleep:       20 * time.Millisecond,
		CheckErrorsEvery: 2,
	}
}

// waitingConfig gives Phase B enough headroom (in iteration count, not
// just per-step duration) that a slow CI box won't race past
// MAX_RETRIES before the test's simulated peer acts.
func waitingConfig() Config {
	cfg := fastConfig()
	cfg.MaxRetries = 50
	return cfg
}

func chainFor(t *testing.T, path string) []string {
	t.Helper()
	chain, err := jobpath.ParseChain(path)
	if err != nil {
		t.Fatalf("ParseChain(%q): %v", path, err)
	}
	return chain
}

func TestHandle_HappyPathTwoTaskChain(t *testing.T) {
	lock := lockstore.NewInMemoryStore()
	cache := blobcache.NewInMemoryCache()
	upstream := newFakeToucher()
	upstream.body["geo/parse/world"] = []byte("leaf-result")
	upstream.body["geo/parse/world/geo/merge/all"] = []byte("root-result")

	h := New(lock, cache, upstream, fastConfig(), nil)
	chain := chainFor(t, "geo/parse/world/geo/merge/all")

	report := h.Handle(context.Background(), chain)

	if report.Outcome != "done" {
		t.Fatalf("outcome = %q, want done", report.Outcome)
	}
	wantCalls := []string{"geo/parse/world", "geo/parse/world/geo/merge/all"}
	if len(upstream.calls) != len(wantCalls) {
		t.Fatalf("calls = %v, want %v", upstream.calls, wantCalls)
	}
	for i, c := range wantCalls {
		if upstream.calls[i] != c {
			t.Fatalf("call[%d] = %q, want %q", i, upstream.calls[i], c)
		}
	}
	for _, job := range chain {
		if ok, _ := cache.Exists(context.Background(), job); !ok {
			t.Errorf("job %q not cached after done", job)
		}
		if jobs, _ := lock.Jobs(context.Background()); contains(jobs, job) {
			t.Errorf("job %q still locked after cleanup", job)
		}
	}
}

func TestHandle_PartialCacheSkipsLeaf(t *testing.T) {
	lock := lockstore.NewInMemoryStore()
	cache := blobcache.NewInMemoryCache()
	chain := chainFor(t, "geo/parse/world/geo/merge/all")
	cache.Seed(chain[0], []byte("already-done"))

	upstream := newFakeToucher()
	h := New(lock, cache, upstream, fastConfig(), nil)

	report := h.Handle(context.Background(), chain)

	if report.Outcome != "done" {
		t.Fatalf("outcome = %q, want done", report.Outcome)
	}
	if len(upstream.calls) != 1 || upstream.calls[0] != chain[1] {
		t.Fatalf("calls = %v, want only root touched", upstream.calls)
	}
	if report.States[chain[0]] != StateCached {
		t.Errorf("leaf state = %v, want CACHED", report.States[chain[0]])
	}
}

func TestHandle_UpstreamFailureSetsErrorAndStops(t *testing.T) {
	lock := lockstore.NewInMemoryStore()
	cache := blobcache.NewInMemoryCache()
	chain := chainFor(t, "geo/parse/world/geo/merge/all")

	upstream := newFakeToucher()
	upstream.status[chain[0]] = http.StatusInternalServerError
	upstream.body[chain[0]] = []byte("boom")

	h := New(lock, cache, upstream, fastConfig(), nil)
	report := h.Handle(context.Background(), chain)

	if report.Outcome != "upstream-error" {
		t.Fatalf("outcome = %q, want upstream-error", report.Outcome)
	}
	if len(upstream.calls) != 1 {
		t.Fatalf("calls = %v, want only the leaf touched before stopping", upstream.calls)
	}
	if ok, _ := cache.Exists(context.Background(), chain[0]); ok {
		t.Errorf("failed job must not be cached")
	}
	jobErr, err := lock.GetError(context.Background(), chain[0])
	if err != nil || jobErr == nil {
		t.Fatalf("GetError = %v, %v, want a recorded error", jobErr, err)
	}
	if jobErr.Status != http.StatusInternalServerError {
		t.Errorf("recorded status = %d, want 500", jobErr.Status)
	}
	// Phase D still released the lock even though the job failed.
	jobs, _ := lock.Jobs(context.Background())
	if contains(jobs, chain[0]) {
		t.Errorf("failed job's lock was not released")
	}
}

func TestHandle_PeerHeldWithNoTodoReturnsImmediately(t *testing.T) {
	shared := lockstore.NewInMemoryStore()
	cache := blobcache.NewInMemoryCache()
	chain := chainFor(t, "geo/parse/world/geo/merge/all")

	// A peer holds the leaf. Given the full two-task chain the handler
	// would lock the root and wait on the leaf, so the test below hands
	// it the leaf alone.
	locked, err := shared.TryLock(context.Background(), chain[0], time.Minute)
	if err != nil || !locked {
		t.Fatalf("setup: TryLock = %v, %v", locked, err)
	}

	upstream := newFakeToucher()
	h := New(shared, cache, upstream, fastConfig(), nil)

	// Root is a single-task chain identical to the leaf, so the loop
	// examines only the held job and has no owned prefix to execute.
	oneChain := []string{chain[0]}
	report := h.Handle(context.Background(), oneChain)

	if report.Outcome != "peer-held-no-todo" {
		t.Fatalf("outcome = %q, want peer-held-no-todo", report.Outcome)
	}
	if len(upstream.calls) != 0 {
		t.Fatalf("upstream should never be touched: calls = %v", upstream.calls)
	}
}

// TestHandle_WaitsForPeerThenResumesFromCache covers the case where this
// handler owns the root (useful work to do) while a peer holds the
// leaf, the root's only dependency: it must wait rather than touch the
// root early, then resume and finish once the peer's result lands in
// cache.
func TestHandle_WaitsForPeerThenResumesFromCache(t *testing.T) {
	shared := lockstore.NewInMemoryStore()
	cache := blobcache.NewInMemoryCache()
	chain := chainFor(t, "geo/parse/world/geo/merge/all")

	locked, err := shared.TryLock(context.Background(), chain[0], time.Minute)
	if err != nil || !locked {
		t.Fatalf("setup: TryLock(leaf) = %v, %v", locked, err)
	}

	upstream := newFakeToucher()
	h := New(shared, cache, upstream, waitingConfig(), nil)

	done := make(chan *RunReport, 1)
	go func() {
		done <- h.Handle(context.Background(), chain)
	}()

	// Give the handler time to reach Phase B, then simulate the peer
	// finishing the leaf and releasing its lock.
	time.Sleep(30 * time.Millisecond)
	cache.Seed(chain[0], []byte("peer-finished"))
	if err := shared.Unlock(context.Background(), chain[0]); err != nil {
		t.Fatalf("simulate peer release: %v", err)
	}

	select {
	case report := <-done:
		if report.Outcome != "done" {
			t.Fatalf("outcome = %q, want done", report.Outcome)
		}
		if len(upstream.calls) != 1 || upstream.calls[0] != chain[1] {
			t.Fatalf("calls = %v, want only the root touched (leaf resolved by peer)", upstream.calls)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not resume after peer finished")
	}
}

func TestHandle_AbandonsAfterPeerFailure(t *testing.T) {
	shared := lockstore.NewInMemoryStore()
	cache := blobcache.NewInMemoryCache()
	chain := chainFor(t, "geo/parse/world/geo/merge/all")

	locked, err := shared.TryLock(context.Background(), chain[0], time.Minute)
	if err != nil || !locked {
		t.Fatalf("setup: TryLock(leaf) = %v, %v", locked, err)
	}
	if err := shared.SetError(context.Background(), chain[0], http.StatusBadGateway, "upstream down"); err != nil {
		t.Fatalf("setup: SetError: %v", err)
	}

	upstream := newFakeToucher()
	h := New(shared, cache, upstream, fastConfig(), nil)

	report := h.Handle(context.Background(), chain)

	if report.Outcome != "abandoned" {
		t.Fatalf("outcome = %q, want abandoned", report.Outcome)
	}
	if len(upstream.calls) != 0 {
		t.Fatalf("upstream must never be touched once abandoned: calls = %v", upstream.calls)
	}
	// The root's lock, the only one this handler itself acquired, must
	// still be released even though the chain was abandoned.
	jobs, _ := shared.Jobs(context.Background())
	if contains(jobs, chain[1]) {
		t.Errorf("root lock not released on abandonment: %v", jobs)
	}
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
