package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter wires the full inbound HTTP surface onto an
// httprouter.Router: the job dispatch endpoint, the admin listing and
// purge endpoints, and the ambient health/metrics endpoints.
func NewRouter(d *Dispatcher) *httprouter.Router {
	r := httprouter.New()

	// The catch-all also matches "/job/" itself (httprouter does not
	// allow a separate "/job/" route beside it); handleJob serves the
	// job listing for an empty path.
	r.GET("/job/*path", d.handleJob)
	r.GET("/errors/", d.handleListErrors)
	r.POST("/errors/purge/", d.handlePurgeErrors)
	r.GET("/healthz", d.handleHealthz)
	r.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

func (d *Dispatcher) handleJob(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	path := strings.TrimPrefix(ps.ByName("path"), "/")
	if path == "" {
		d.handleListJobs(w, r, ps)
		return
	}

	result := d.DispatchJob(r.Context(), path)
	if result.Body == nil {
		w.WriteHeader(result.Status)
		return
	}
	w.WriteHeader(result.Status)
	_, _ = w.Write(result.Body)
}

func (d *Dispatcher) handleListJobs(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	jobs, err := d.ListJobs(r.Context())
	if err != nil {
		d.Log.Error("list jobs", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "lock store unavailable"})
		return
	}
	if jobs == nil {
		jobs = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"jobs": jobs})
}

func (d *Dispatcher) handleListErrors(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	errs, err := d.ListErrors(r.Context())
	if err != nil {
		d.Log.Error("list errors", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "lock store unavailable"})
		return
	}

	out := make(map[string]map[string]interface{}, len(errs))
	for job, e := range errs {
		out[job] = map[string]interface{}{"code": e.Status, "message": e.Message}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"errors": out})
}

func (d *Dispatcher) handlePurgeErrors(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := d.PurgeErrors(r.Context()); err != nil {
		d.Log.Error("purge errors", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "lock store unavailable"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d *Dispatcher) handleHealthz(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if _, err := d.Lock.Jobs(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "lock store unreachable"})
		return
	}
	if _, err := d.Cache.Exists(r.Context(), "healthz"); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "cache unreachable"})
		return
	}
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
