package blobcache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPCache talks to a REST profile: HEAD/GET/POST on <base>/<key>. A
// non-2xx on GET other than 404 is a transport error, never treated as a
// miss.
type HTTPCache struct {
	base   string
	client *http.Client
}

// NewHTTPCache returns a Cache backed by a remote file service at base.
func NewHTTPCache(base string, timeout time.Duration) *HTTPCache {
	return &HTTPCache{
		base:   strings.TrimSuffix(base, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// keyURL percent-encodes each "/"-delimited segment of key independently
// and rejoins them with "/" — url.PathEscape on the whole key would
// encode its own segment separators as %2F, and every job path has at
// least four segments.
func (c *HTTPCache) keyURL(key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return c.base + "/" + strings.Join(segs, "/")
}

func (c *HTTPCache) Exists(ctx context.Context, key string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.keyURL(key), nil)
	if err != nil {
		return false, fmt.Errorf("%w: building HEAD request: %v", ErrTransport, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: HEAD %s: %v", ErrTransport, key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("%w: HEAD %s: status %d", ErrTransport, key, resp.StatusCode)
	}
	return true, nil
}

func (c *HTTPCache) Get(ctx context.Context, key string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.keyURL(key), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building GET request: %v", ErrTransport, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrTransport, key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotCached
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: GET %s: status %d", ErrTransport, key, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading GET %s body: %v", ErrTransport, key, err)
	}
	return body, nil
}

func (c *HTTPCache) Put(ctx context.Context, key string, body []byte) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", key)
	if err != nil {
		return fmt.Errorf("%w: building multipart body: %v", ErrTransport, err)
	}
	if _, err := part.Write(body); err != nil {
		return fmt.Errorf("%w: writing multipart body: %v", ErrTransport, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: closing multipart writer: %v", ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.keyURL(key), &buf)
	if err != nil {
		return fmt.Errorf("%w: building POST request: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: POST %s: %v", ErrTransport, key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: POST %s: status %d", ErrTransport, key, resp.StatusCode)
	}
	return nil
}
