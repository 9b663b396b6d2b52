package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrTransport wraps a failure that prevented any response from being
// obtained at all (as opposed to a non-2xx response, which Touch reports
// through its return values rather than an error).
var ErrTransport = errors.New("upstream transport error")

// Client issues "touch" requests to the router.
type Client struct {
	base   string
	client *http.Client
}

// New returns a Client pointed at baseURL, bounding every request to
// timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base:   strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// Touch issues one request to <base>/<path>?touch=true and returns the
// raw status and body. It never returns an error for a non-2xx response.
// A context deadline or client-side timeout is converted into a
// synthetic 503 with a descriptive body rather than propagated as an
// error — the job handler treats both identically via the returned
// status.
func (c *Client) Touch(ctx context.Context, path string) (status int, body []byte, err error) {
	u := c.base + "/" + escapeSegments(path) + "?touch=true"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: building request: %v", ErrTransport, err)
	}

	resp, doErr := c.client.Do(req)
	if doErr != nil {
		if isTimeout(doErr) {
			return http.StatusServiceUnavailable, []byte(path + " timed out"), nil
		}
		return 0, nil, fmt.Errorf("%w: touch %q: %v", ErrTransport, path, doErr)
	}
	defer resp.Body.Close()

	b, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return 0, nil, fmt.Errorf("%w: reading touch %q response: %v", ErrTransport, path, readErr)
	}

	return resp.StatusCode, b, nil
}

// escapeSegments percent-encodes each "/"-delimited segment of path
// independently and rejoins them with "/", so the path's own segment
// separators survive (url.PathEscape on the whole path would encode
// them as %2F, and every job path has at least four segments).
func escapeSegments(path string) string {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
