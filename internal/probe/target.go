package probe

import (
	"net/url"
	"strings"
	"time"
)

// Target identifies an HTTP resource that has passed an existence
// check and is a candidate for latency measurement.
type Target struct {
	// Host is the server FQDN or IP address, with optional port.
	Host string

	// Path is the resource path on the server, always starting with "/".
	Path string

	// Scheme is "http" or "https".
	Scheme string

	// Size is the Content-Length reported by the existence check, or -1
	// when the server did not report one.
	Size int64
}

// URL renders the target as a fetchable URL string.
func (t Target) URL() string {
	u := url.URL{
		Scheme: t.Scheme,
		Host:   t.Host,
		Path:   t.Path,
	}
	return u.String()
}

// Result is the outcome of timing a single target.
type Result struct {
	Target

	// ResponseTime is the wall-clock time from issuing the request to
	// finishing the body read. For an IO-bound transfer this is the
	// download time.
	ResponseTime time.Duration

	// Overhead is the process CPU time consumed during the same window.
	// It approximates the measurement error introduced by the prober
	// itself rather than the network.
	Overhead time.Duration
}

// splitURL breaks a URL string into the (host, path, scheme) triple the
// checker works with. Relative references keep empty host and scheme so
// the checker can fall back to its root.
func splitURL(raw string) (host, path, scheme string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", "", err
	}
	return u.Host, u.Path, u.Scheme, nil
}
