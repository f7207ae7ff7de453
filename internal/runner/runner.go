package runner

import (
	"context"
)

// Runner executes shell commands on some host, local or remote. The
// command wrappers in this package are written against this interface
// so an iperf flow or a packet capture reads the same whichever side of
// an SSH connection it runs on.
type Runner interface {
	// Run executes cmd, waits for it, and returns the combined output.
	Run(ctx context.Context, cmd string) (string, error)

	// Start executes cmd without waiting and returns a handle to join
	// or kill it later.
	Start(ctx context.Context, cmd string) (*Handle, error)

	// Host returns the name of the host commands run on, for logging.
	Host() string
}

// Handle is a started command. Output is valid only after Wait has
// returned.
type Handle struct {
	wait   func() error
	kill   func() error
	output func() string
}

// Wait joins the command and returns its combined output.
func (h *Handle) Wait() (string, error) {
	err := h.wait()
	return h.output(), err
}

// Kill terminates the command. The usual sequence is Kill then Wait to
// collect whatever output the command produced before dying.
func (h *Handle) Kill() error {
	return h.kill()
}
