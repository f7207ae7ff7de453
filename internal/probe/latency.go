package probe

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sys/unix"

	"github.com/netlabgo/netmeter/internal/config"
)

// Prober measures how long targets take to download.
type Prober struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithProbeTimeout sets the per-request timeout. There is no other
// cancellation of an in-flight probe.
func WithProbeTimeout(timeout time.Duration) ProberOption {
	return func(p *Prober) {
		p.client.Timeout = timeout
	}
}

// WithProbeUserAgent sets a custom User-Agent header.
func WithProbeUserAgent(ua string) ProberOption {
	return func(p *Prober) {
		p.userAgent = ua
	}
}

// WithProbeLogger sets a custom logger.
func WithProbeLogger(logger *slog.Logger) ProberOption {
	return func(p *Prober) {
		p.logger = logger
	}
}

// NewProber creates a Prober with the default timeout.
func NewProber(opts ...ProberOption) *Prober {
	p := &Prober{
		client:    &http.Client{Timeout: config.DefaultTimeout},
		userAgent: config.DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Latency downloads the target with method and times it. Both timers
// bracket the request and the full body read: the wall-clock delta is
// the response time of an IO-bound transfer, and the CPU-time delta is
// the prober's own overhead, reported as the measurement error term.
//
// A 2xx or 3xx answer produces a Result whose Size is the byte count
// actually read. Timeouts, transport failures and 4xx/5xx answers are
// logged and absent; the sample is discarded rather than recorded as an
// outlier.
func (p *Prober) Latency(ctx context.Context, target Target, method string) (Result, bool) {
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, target.URL(), nil)
	if err != nil {
		p.logger.Error("failed to build probe request", "url", target.URL(), "error", err)
		return Result{}, false
	}
	req.Header.Set("User-Agent", p.userAgent)

	startCPU := processCPUTime()
	startWall := time.Now()

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("probe transport failure", "url", target.URL(), "error", err)
		return Result{}, false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.logger.Warn("probe body read failure", "url", target.URL(), "error", err)
		return Result{}, false
	}

	responseTime := time.Since(startWall)
	overhead := processCPUTime() - startCPU

	if resp.StatusCode >= http.StatusBadRequest {
		p.logger.Error("probe rejected", "status", resp.StatusCode, "url", target.URL())
		return Result{}, false
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		p.logger.Warn("probe redirected", "status", resp.StatusCode, "url", target.URL())
	}

	target.Size = int64(len(body))
	return Result{
		Target:       target,
		ResponseTime: responseTime,
		Overhead:     overhead,
	}, true
}

// LatencyAll times every target with up to n concurrent workers and
// returns the successful results in completion order.
func (p *Prober) LatencyAll(ctx context.Context, targets []Target, n int) []Result {
	p.logger.Info("probing targets", "targets", len(targets), "workers", n)

	results := drain(ctx, n, targets, func(ctx context.Context, t Target) (Result, bool) {
		return p.Latency(ctx, t, http.MethodGet)
	})

	p.logger.Info("probe run complete", "results", len(results))
	return results
}

// processCPUTime returns the CPU time (user plus system) consumed by
// this process so far. Failure degrades the overhead term to zero
// rather than the measurement to absent.
func processCPUTime() time.Duration {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	return time.Duration(ru.Utime.Nano() + ru.Stime.Nano())
}
