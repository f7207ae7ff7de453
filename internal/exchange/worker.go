package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"time"
)

// Worker readiness polling. The spawned process needs a moment to parse
// its seed and bind the listener; the manager polls the port rather
// than sleeping a fixed interval.
const (
	readyPollInterval = 100 * time.Millisecond
	readyTimeout      = 10 * time.Second
)

// ExecWorker runs the exchange server by re-executing the current
// binary in serve --worker mode. The seed travels over the child's
// stdin, so no state touches the filesystem and the child needs no
// flags beyond its listen address.
type ExecWorker struct {
	addr   string
	binary string
	logger *slog.Logger

	cmd *exec.Cmd
	// done receives the child's exit status from the Wait goroutine.
	done chan error
}

// ExecWorkerOption configures an ExecWorker.
type ExecWorkerOption func(*ExecWorker)

// WithBinary overrides the executable used to spawn the worker.
// Defaults to the current binary.
func WithBinary(path string) ExecWorkerOption {
	return func(w *ExecWorker) {
		w.binary = path
	}
}

// WithExecLogger sets a custom logger.
func WithExecLogger(logger *slog.Logger) ExecWorkerOption {
	return func(w *ExecWorker) {
		w.logger = logger
	}
}

// NewExecWorker creates an ExecWorker that will listen on addr.
func NewExecWorker(addr string, opts ...ExecWorkerOption) *ExecWorker {
	w := &ExecWorker{addr: addr}

	for _, opt := range opts {
		opt(w)
	}

	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Start spawns the worker process and blocks until its listener
// answers or the readiness timeout expires.
func (w *ExecWorker) Start(ctx context.Context, seed Seed) error {
	binary := w.binary
	if binary == "" {
		self, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to locate own binary: %w", err)
		}
		binary = self
	}

	seedJSON, err := json.Marshal(seed)
	if err != nil {
		return fmt.Errorf("failed to encode worker seed: %w", err)
	}

	//nolint:gosec // The binary path is our own executable or an explicit override.
	cmd := exec.Command(binary, "serve", "--worker", "--addr", seed.Addr)
	cmd.Stdin = bytes.NewReader(seedJSON)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to spawn worker: %w", err)
	}

	w.cmd = cmd
	w.done = make(chan error, 1)
	go func() {
		w.done <- cmd.Wait()
	}()

	w.logger.Info("spawned exchange worker", "pid", cmd.Process.Pid, "addr", seed.Addr)

	if err := w.awaitReady(ctx, seed.Addr); err != nil {
		if w.cmd != nil {
			_ = w.Stop(time.Second) //nolint:errcheck // Best effort cleanup of a broken child
		}
		return err
	}
	return nil
}

// Stop signals the worker to exit, waits up to grace, then kills it.
// A worker that ignores the grace period loses whatever it received
// after the last drain; the caller logs that as a warning.
func (w *ExecWorker) Stop(grace time.Duration) error {
	if w.cmd == nil || w.cmd.Process == nil {
		return nil
	}

	if err := w.cmd.Process.Signal(os.Interrupt); err != nil {
		w.logger.Debug("failed to signal worker, killing", "error", err)
	}

	select {
	case <-w.done:
	case <-time.After(grace):
		w.logger.Warn("worker unresponsive after grace period, killing", "pid", w.cmd.Process.Pid, "grace", grace)
		if err := w.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("failed to kill worker: %w", err)
		}
		<-w.done
	}

	w.cmd = nil
	return nil
}

// awaitReady polls the worker's listen address until a TCP connection
// succeeds, the child exits, or the timeout expires.
func (w *ExecWorker) awaitReady(ctx context.Context, addr string) error {
	deadline := time.Now().Add(readyTimeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-w.done:
			// The child is already gone; there is nothing left to stop.
			w.cmd = nil
			return fmt.Errorf("%w: worker exited during startup: %v", ErrWorkerNotReady, err)
		case <-time.After(readyPollInterval):
		}

		conn, err := net.DialTimeout("tcp", addr, readyPollInterval)
		if err == nil {
			_ = conn.Close() //nolint:errcheck // Probe connection only
			return nil
		}
	}
	return ErrWorkerNotReady
}
