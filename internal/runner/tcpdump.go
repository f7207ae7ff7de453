package runner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// tcpdump defaults.
const (
	tcpdumpBin     = "sudo tcpdump"
	tcpdumpKillCmd = `sudo killall -q -r ".*tcpdump*"`

	// DefaultSnapLen is how many bytes to sample from each packet.
	// Headers fit comfortably; payloads are not our business.
	DefaultSnapLen = 96

	// DefaultInterface is the capture interface when none is given.
	DefaultInterface = "eth0"

	// DefaultCaptureCount bounds a capture when no count is given.
	DefaultCaptureCount = 100
)

// CaptureSpec describes one tcpdump capture.
type CaptureSpec struct {
	// Src filters on this source address; optional.
	Src string

	// Dst filters on this destination address; optional.
	Dst string

	// Interface to listen on; DefaultInterface when empty.
	Interface string

	// Count stops the capture after this many packets; 0 captures until
	// Stop, which leans on the kill string.
	Count int
}

// TCPDump manages a packet capture on a host. Packets are written to a
// temporary dump file during the capture and parsed off-line at Stop,
// keeping the capture-time load on the host down.
type TCPDump struct {
	runner  Runner
	logger  *slog.Logger
	snaplen int

	tmpFile string
	handle  *Handle
	count   int
	data    string
}

// TCPDumpOption configures a TCPDump.
type TCPDumpOption func(*TCPDump)

// WithSnapLen sets how many bytes to sample from each packet.
func WithSnapLen(snaplen int) TCPDumpOption {
	return func(d *TCPDump) {
		d.snaplen = snaplen
	}
}

// WithTCPDumpLogger sets a custom logger.
func WithTCPDumpLogger(logger *slog.Logger) TCPDumpOption {
	return func(d *TCPDump) {
		d.logger = logger
	}
}

// NewTCPDump creates a capture wrapper on the given host, reserving a
// temporary dump file there.
func NewTCPDump(ctx context.Context, r Runner, opts ...TCPDumpOption) (*TCPDump, error) {
	d := &TCPDump{
		runner:  r,
		snaplen: DefaultSnapLen,
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.logger == nil {
		d.logger = slog.Default()
	}

	out, err := r.Run(ctx, "mktemp -t tcpdump.dat.XXXXXXXXXX")
	if err != nil {
		return nil, fmt.Errorf("failed to reserve dump file: %w", err)
	}
	d.tmpFile = strings.TrimSpace(out)
	return d, nil
}

// captureCommand assembles the tcpdump invocation for spec.
func (d *TCPDump) captureCommand(spec CaptureSpec) string {
	iface := spec.Interface
	if iface == "" {
		iface = DefaultInterface
	}

	args := []string{
		fmt.Sprintf("-i %s", iface),
		fmt.Sprintf("-w %s", d.tmpFile),
		fmt.Sprintf("-s %d", d.snaplen),
	}
	if spec.Count > 0 {
		args = append(args, fmt.Sprintf("-c %d", spec.Count))
	}
	if spec.Src != "" {
		args = append(args, fmt.Sprintf("ip src %s", spec.Src))
		if spec.Dst != "" {
			args = append(args, fmt.Sprintf("and dst %s", spec.Dst))
		}
	} else if spec.Dst != "" {
		args = append(args, fmt.Sprintf("ip dst %s", spec.Dst))
	}

	return fmt.Sprintf("%s %s", tcpdumpBin, strings.Join(args, " "))
}

// readCommand assembles the off-line parse of the dump file.
func (d *TCPDump) readCommand() string {
	return fmt.Sprintf("%s -tt -v -n -S -r %s", tcpdumpBin, d.tmpFile)
}

// Start begins capturing packets per spec.
func (d *TCPDump) Start(ctx context.Context, spec CaptureSpec) error {
	if d.handle != nil {
		return ErrCaptureRunning
	}

	d.count = spec.Count
	handle, err := d.runner.Start(ctx, d.captureCommand(spec))
	if err != nil {
		return err
	}
	d.handle = handle
	return nil
}

// Stop ends the capture and parses the dump file into Results. A
// counted capture is joined as-is; an unbounded one is killed first.
func (d *TCPDump) Stop(ctx context.Context) error {
	if d.handle == nil {
		return nil
	}

	if d.count == 0 {
		if _, err := d.runner.Run(ctx, tcpdumpKillCmd); err != nil {
			d.logger.Warn("tcpdump killall failed", "host", d.runner.Host(), "error", err)
		}
		_ = d.handle.Kill() //nolint:errcheck // Already killed via killall; this is belt and braces.
	}
	_, _ = d.handle.Wait() //nolint:errcheck // A killed tcpdump reports a non-zero exit.
	d.handle = nil

	out, err := d.runner.Run(ctx, d.readCommand())
	if err != nil {
		return fmt.Errorf("failed to parse capture: %w", err)
	}
	d.data = out
	return nil
}

// Restart stops any running capture and starts a new one per spec.
func (d *TCPDump) Restart(ctx context.Context, spec CaptureSpec) error {
	if err := d.Stop(ctx); err != nil {
		return err
	}
	return d.Start(ctx, spec)
}

// Results returns the parsed capture text collected by Stop.
func (d *TCPDump) Results() string {
	return d.data
}

// Close removes the temporary dump file. Call it when the capture
// wrapper is no longer needed.
func (d *TCPDump) Close(ctx context.Context) error {
	if d.tmpFile == "" {
		return nil
	}
	_, err := d.runner.Run(ctx, fmt.Sprintf("rm -f %s", d.tmpFile))
	d.tmpFile = ""
	return err
}
