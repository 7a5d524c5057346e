// Package httpds reads report input over HTTP(S). The Department of Labor
// publishes disclosure files at stable URLs, so a run can point straight at
// the published file instead of a local download.
package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"h1b/internal/datasource"
)

// Config tunes the client. Zero values pick the defaults noted per field.
type Config struct {
	// Timeout bounds one whole request including the body (default 5m; the
	// larger disclosure files run to hundreds of megabytes).
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt for
	// transport errors, 429 and 5xx (default 0).
	MaxRetries int

	// InitialBackoff doubles per retry up to MaxBackoff (defaults 500ms, 10s).
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Transport overrides http.DefaultTransport, mainly for tests.
	Transport http.RoundTripper
}

// Remote is a datasource.Source backed by a URL.
type Remote struct {
	url    string
	client *http.Client

	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

var _ datasource.Source = (*Remote)(nil)

// IsURL reports whether path names an http or https resource.
func IsURL(path string) bool {
	p := strings.ToLower(path)
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

// NewRemote returns a Source that GETs url on Open.
func NewRemote(url string, cfg Config) *Remote {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	return &Remote{
		url:            url,
		client:         &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
	}
}

// Open issues the GET and returns the response body. Non-2xx responses that
// are not retryable fail immediately.
func (r *Remote) Open(ctx context.Context) (io.ReadCloser, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, backoff(r.initialBackoff, attempt-1, r.maxBackoff)); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
		if err != nil {
			return nil, fmt.Errorf("httpds: build request: %w", err)
		}
		resp, err := r.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("httpds: get %s: %w", r.url, err)
			continue
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp.Body, nil
		}
		_ = resp.Body.Close()
		lastErr = fmt.Errorf("httpds: get %s: status %d", r.url, resp.StatusCode)
		if !retryable(resp.StatusCode) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

// backoff returns initial * 2^retry clamped to max.
func backoff(initial time.Duration, retry int, max time.Duration) time.Duration {
	d := initial << retry
	if d <= 0 || d > max {
		return max
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
