package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/netlabgo/netmeter/internal/config"
)

// iperfKillCmd takes down stray iperf processes when a polite stop is
// not enough.
const iperfKillCmd = `killall -q -r ".*iperf*"`

// IperfServer manages an iperf server process on a host. Traffic flows
// from clients to servers, so servers run on the receiving end of the
// path under test.
type IperfServer struct {
	runner Runner
	logger *slog.Logger

	// waitTime is the settle pause after starting the server so clients
	// do not race it.
	waitTime time.Duration

	// pkt is the MSS in bytes, 0 for the iperf default.
	pkt int

	// interval is seconds between bandwidth reports, 0 to disable.
	interval int

	handle *Handle
	data   string
}

// IperfServerOption configures an IperfServer.
type IperfServerOption func(*IperfServer)

// WithIperfServerWait sets the settle pause after start.
func WithIperfServerWait(d time.Duration) IperfServerOption {
	return func(s *IperfServer) {
		s.waitTime = d
	}
}

// WithIperfServerMSS sets the maximum segment size in bytes.
func WithIperfServerMSS(pkt int) IperfServerOption {
	return func(s *IperfServer) {
		s.pkt = pkt
	}
}

// WithIperfServerInterval sets seconds between bandwidth reports.
func WithIperfServerInterval(seconds int) IperfServerOption {
	return func(s *IperfServer) {
		s.interval = seconds
	}
}

// WithIperfServerLogger sets a custom logger.
func WithIperfServerLogger(logger *slog.Logger) IperfServerOption {
	return func(s *IperfServer) {
		s.logger = logger
	}
}

// NewIperfServer creates an iperf server wrapper on the given host.
func NewIperfServer(r Runner, opts ...IperfServerOption) *IperfServer {
	s := &IperfServer{
		runner:   r,
		waitTime: config.DefaultWaitTime,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// command assembles the iperf server invocation.
func (s *IperfServer) command(udp bool) string {
	args := []string{"-s"}
	if udp {
		args = append(args, "-u")
	}
	if s.pkt > 0 {
		args = append(args, fmt.Sprintf("-M %d", s.pkt))
	}
	if s.interval > 0 {
		args = append(args, fmt.Sprintf("-i %d", s.interval))
	}
	return "iperf " + strings.Join(args, " ")
}

// Start launches the server and pauses for the settle time. Starting a
// server that is already running is a no-op.
func (s *IperfServer) Start(ctx context.Context, udp bool) error {
	if s.handle != nil {
		return nil
	}
	if s.data != "" {
		s.logger.Warn("overwriting previous results", "host", s.runner.Host())
	}

	handle, err := s.runner.Start(ctx, s.command(udp))
	if err != nil {
		return err
	}
	s.handle = handle

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.waitTime):
	}
	return nil
}

// Stop kills the server and collects its output. Stopping a server that
// is not running is a no-op.
func (s *IperfServer) Stop(ctx context.Context) error {
	if s.handle == nil {
		return nil
	}

	// A server never exits on its own; kill it, sweeping stragglers with
	// killall, then join for the output.
	if _, err := s.runner.Run(ctx, iperfKillCmd); err != nil {
		s.logger.Warn("iperf killall failed", "host", s.runner.Host(), "error", err)
	}
	_ = s.handle.Kill() //nolint:errcheck // Already killed via killall; this is belt and braces.

	out, _ := s.handle.Wait() //nolint:errcheck // A killed iperf reports a non-zero exit.
	s.data = out
	s.handle = nil
	return nil
}

// Restart stops the server if needed and starts it again.
func (s *IperfServer) Restart(ctx context.Context, udp bool) error {
	if err := s.Stop(ctx); err != nil {
		return err
	}
	return s.Start(ctx, udp)
}

// Results returns the raw iperf output collected by Stop.
func (s *IperfServer) Results() string {
	return s.data
}

// TrafficSpec describes one iperf client run. Rate selects UDP, Window
// selects TCP; setting both is an error, setting neither runs TCP with
// defaults.
type TrafficSpec struct {
	// Length is the transmit duration in seconds; 0 runs until Stop.
	Length int

	// Rate is a UDP target bandwidth such as "10M" or "1G".
	Rate string

	// Window is a TCP window size in bytes.
	Window int

	// Blocking makes Start wait for the transmit to finish. Requires
	// Length.
	Blocking bool
}

// IperfClient manages an iperf client process on a host, sending
// traffic at a destination server.
type IperfClient struct {
	runner Runner
	dst    string
	logger *slog.Logger

	pkt      int
	interval int

	handle *Handle
	data   string
	length int
}

// IperfClientOption configures an IperfClient.
type IperfClientOption func(*IperfClient)

// WithIperfClientMSS sets the maximum segment size in bytes.
func WithIperfClientMSS(pkt int) IperfClientOption {
	return func(c *IperfClient) {
		c.pkt = pkt
	}
}

// WithIperfClientInterval sets seconds between bandwidth reports.
func WithIperfClientInterval(seconds int) IperfClientOption {
	return func(c *IperfClient) {
		c.interval = seconds
	}
}

// WithIperfClientLogger sets a custom logger.
func WithIperfClientLogger(logger *slog.Logger) IperfClientOption {
	return func(c *IperfClient) {
		c.logger = logger
	}
}

// NewIperfClient creates an iperf client wrapper on the given host,
// aimed at the dst server address.
func NewIperfClient(r Runner, dst string, opts ...IperfClientOption) *IperfClient {
	c := &IperfClient{
		runner: r,
		dst:    dst,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// command assembles the iperf client invocation for spec.
func (c *IperfClient) command(spec TrafficSpec) (string, error) {
	if spec.Rate != "" && spec.Window > 0 {
		return "", ErrConflictingTraffic
	}

	args := []string{fmt.Sprintf("-c %s", c.dst)}
	if spec.Length > 0 {
		args = append(args, fmt.Sprintf("-t %d", spec.Length))
	}
	if c.pkt > 0 {
		args = append(args, fmt.Sprintf("-M %d", c.pkt))
	}
	if c.interval > 0 {
		args = append(args, fmt.Sprintf("-i %d", c.interval))
	}

	if spec.Rate != "" {
		args = append(args, fmt.Sprintf("-b %s", spec.Rate))
		return "iperf -u " + strings.Join(args, " "), nil
	}
	if spec.Window > 0 {
		args = append(args, fmt.Sprintf("-w %d", spec.Window))
	}
	return "iperf " + strings.Join(args, " "), nil
}

// Start launches the client. With spec.Blocking and a Length it waits
// for the transmit to finish and Results is valid immediately;
// otherwise the client runs until Stop.
func (c *IperfClient) Start(ctx context.Context, spec TrafficSpec) error {
	if c.handle != nil {
		return nil
	}
	if c.data != "" {
		c.logger.Warn("overwriting previous results", "host", c.runner.Host())
	}

	cmd, err := c.command(spec)
	if err != nil {
		return err
	}
	c.length = spec.Length

	if spec.Length > 0 && spec.Blocking {
		out, err := c.runner.Run(ctx, cmd)
		if err != nil {
			return err
		}
		c.data = out
		return nil
	}

	handle, err := c.runner.Start(ctx, cmd)
	if err != nil {
		return err
	}
	c.handle = handle
	return nil
}

// Stop collects the client's output, killing it first only when it was
// started without a length and so would never exit on its own.
func (c *IperfClient) Stop(ctx context.Context) error {
	if c.handle == nil {
		return nil
	}

	if c.length == 0 {
		if _, err := c.runner.Run(ctx, iperfKillCmd); err != nil {
			c.logger.Warn("iperf killall failed", "host", c.runner.Host(), "error", err)
		}
		_ = c.handle.Kill() //nolint:errcheck // Already killed via killall; this is belt and braces.
	}

	out, _ := c.handle.Wait() //nolint:errcheck // A killed iperf reports a non-zero exit.
	c.data = out
	c.handle = nil
	return nil
}

// Restart stops the client if needed and starts it again with spec.
func (c *IperfClient) Restart(ctx context.Context, spec TrafficSpec) error {
	if err := c.Stop(ctx); err != nil {
		return err
	}
	return c.Start(ctx, spec)
}

// Results returns the raw iperf output.
func (c *IperfClient) Results() string {
	return c.data
}
