package runner

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
)

// Local runs commands on this machine through the shell. Commands are
// strings rather than argv slices because the wrappers built on top
// assemble pipelines and quoted filters the way an operator would type
// them.
type Local struct {
	logger *slog.Logger
}

// LocalOption configures a Local runner.
type LocalOption func(*Local)

// WithLocalLogger sets a custom logger.
func WithLocalLogger(logger *slog.Logger) LocalOption {
	return func(l *Local) {
		l.logger = logger
	}
}

// NewLocal creates a runner for this machine.
func NewLocal(opts ...LocalOption) *Local {
	l := &Local{}

	for _, opt := range opts {
		opt(l)
	}

	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Host returns this machine's hostname.
func (l *Local) Host() string {
	name, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return name
}

// Run executes cmd and returns its combined output.
func (l *Local) Run(ctx context.Context, cmd string) (string, error) {
	l.logger.Info("run", "host", l.Host(), "cmd", cmd)

	out, err := exec.CommandContext(ctx, "sh", "-c", cmd).CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("command %q failed: %w", cmd, err)
	}
	return string(out), nil
}

// Start executes cmd in the background and returns a handle to it.
func (l *Local) Start(ctx context.Context, cmd string) (*Handle, error) {
	l.logger.Info("start", "host", l.Host(), "cmd", cmd)

	c := exec.CommandContext(ctx, "sh", "-c", cmd)
	var buf bytes.Buffer
	c.Stdout = &buf
	c.Stderr = &buf

	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %q: %w", cmd, err)
	}

	return &Handle{
		wait:   c.Wait,
		kill:   func() error { return c.Process.Kill() },
		output: buf.String,
	}, nil
}
