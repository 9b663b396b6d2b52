// Package router wraps the upstream computation service (the router):
// one request per "touch", never raising on a non-2xx response. A
// timeout surfaces as a synthetic 503 so the caller can treat it exactly
// like any other upstream error.
package router
