package probe

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/netlabgo/netmeter/internal/config"
)

// Checker validates candidate resources with HEAD requests, resolving
// redirects and dropping anything that answers 400 or worse.
//
// Design decision: Check never returns an error, only an absence flag,
// because targets come from unreliable third-party pages. A dead
// resource is an expected data point to discard, not a reason to abort
// the run.
type Checker struct {
	// client never follows redirects itself; a 3xx answer carries the
	// new location the caller should adopt.
	client *http.Client

	userAgent string
	logger    *slog.Logger
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithCheckTimeout sets the per-request timeout.
func WithCheckTimeout(timeout time.Duration) CheckerOption {
	return func(c *Checker) {
		c.client.Timeout = timeout
	}
}

// WithCheckUserAgent sets a custom User-Agent header.
func WithCheckUserAgent(ua string) CheckerOption {
	return func(c *Checker) {
		c.userAgent = ua
	}
}

// WithCheckLogger sets a custom logger.
func WithCheckLogger(logger *slog.Logger) CheckerOption {
	return func(c *Checker) {
		c.logger = logger
	}
}

// NewChecker creates a Checker with the default timeout.
func NewChecker(opts ...CheckerOption) *Checker {
	c := &Checker{
		client: &http.Client{
			Timeout: config.DefaultTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent: config.DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Check issues a HEAD request for scheme://host/resource and classifies
// the answer:
//
//   - 200 through 206: the original triple is kept, with the reported
//     Content-Length.
//   - 300 through 307: the Location header is split into a new
//     (host, path, scheme) triple and that target is returned instead.
//   - 400 and above, or any transport failure: logged and absent; the
//     caller must drop the candidate.
//
// An empty scheme defaults to "http" and the resource is normalized to
// start with "/".
func (c *Checker) Check(ctx context.Context, host, resource, scheme string) (Target, bool) {
	if scheme == "" {
		scheme = "http"
	}
	if !strings.HasPrefix(resource, "/") {
		resource = "/" + resource
	}

	target := Target{Host: host, Path: resource, Scheme: scheme, Size: -1}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target.URL(), nil)
	if err != nil {
		c.logger.Error("failed to build check request", "url", target.URL(), "error", err)
		return Target{}, false
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("check transport failure", "url", target.URL(), "error", err)
		return Target{}, false
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusOK && resp.StatusCode <= http.StatusPartialContent:
		target.Size = resp.ContentLength
		return target, true

	case resp.StatusCode >= http.StatusMultipleChoices && resp.StatusCode <= http.StatusTemporaryRedirect:
		c.logger.Warn("check redirected", "status", resp.StatusCode, "url", target.URL())
		return c.redirectTarget(resp, target)

	default:
		// 404s, 5xx and the rest. Not found is not a fault worth keeping.
		c.logger.Error("check rejected", "status", resp.StatusCode, "url", target.URL())
		return Target{}, false
	}
}

// redirectTarget re-splits the Location header into a new target,
// falling back to the original host and scheme for relative locations.
func (c *Checker) redirectTarget(resp *http.Response, original Target) (Target, bool) {
	location := resp.Header.Get("Location")
	u, err := url.Parse(location)
	if err != nil {
		c.logger.Error("unparseable redirect location", "location", location, "error", err)
		return Target{}, false
	}

	target := Target{
		Host:   u.Host,
		Path:   u.Path,
		Scheme: u.Scheme,
		Size:   resp.ContentLength,
	}
	if target.Host == "" {
		target.Host = original.Host
	}
	if target.Scheme == "" {
		target.Scheme = original.Scheme
	}
	if !strings.HasPrefix(target.Path, "/") {
		target.Path = "/" + target.Path
	}
	return target, true
}
