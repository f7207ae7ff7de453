package runner

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"

	"golang.org/x/crypto/ssh"
)

// defaultSSHPort is used when the target hostname carries no port.
const defaultSSHPort = "22"

// SSH runs commands on a remote machine over a single SSH connection,
// one session per command.
type SSH struct {
	host   string
	client *ssh.Client
	logger *slog.Logger
}

// SSHOption configures an SSH runner.
type SSHOption func(*SSH)

// WithSSHLogger sets a custom logger.
func WithSSHLogger(logger *slog.Logger) SSHOption {
	return func(s *SSH) {
		s.logger = logger
	}
}

// DialSSH connects to hostname (port 22 unless one is given) with the
// supplied client configuration. The caller owns key material and host
// key policy; this package never reads ~/.ssh itself.
func DialSSH(hostname string, cfg *ssh.ClientConfig, opts ...SSHOption) (*SSH, error) {
	addr := hostname
	if _, _, err := net.SplitHostPort(hostname); err != nil {
		addr = net.JoinHostPort(hostname, defaultSSHPort)
	}

	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	s := &SSH{host: hostname, client: client}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Host returns the remote hostname.
func (s *SSH) Host() string {
	return s.host
}

// Close tears down the SSH connection.
func (s *SSH) Close() error {
	return s.client.Close()
}

// Run executes cmd on the remote host and returns its combined output.
// A cancelled context closes the session, which terminates the remote
// command.
func (s *SSH) Run(ctx context.Context, cmd string) (string, error) {
	s.logger.Info("run", "host", s.host, "cmd", cmd)

	session, err := s.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to open session on %s: %w", s.host, err)
	}
	defer session.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			session.Close()
		case <-done:
		}
	}()

	out, err := session.CombinedOutput(cmd)
	if err != nil {
		return string(out), fmt.Errorf("command %q failed on %s: %w", cmd, s.host, err)
	}
	return string(out), nil
}

// Start executes cmd on the remote host without waiting.
func (s *SSH) Start(ctx context.Context, cmd string) (*Handle, error) {
	s.logger.Info("start", "host", s.host, "cmd", cmd)

	session, err := s.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to open session on %s: %w", s.host, err)
	}

	var buf bytes.Buffer
	session.Stdout = &buf
	session.Stderr = &buf

	if err := session.Start(cmd); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to start %q on %s: %w", cmd, s.host, err)
	}

	return &Handle{
		wait: func() error {
			defer session.Close()
			return session.Wait()
		},
		kill: func() error {
			// Remote processes do not reliably see session signals, so the
			// wrappers pair this with an explicit killall command.
			return session.Signal(ssh.SIGKILL)
		},
		output: buf.String,
	}, nil
}
