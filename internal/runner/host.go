package runner

import (
	"net"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"
)

// NewHost returns a Runner for hostname: the local runner when the name
// refers to this machine, an SSH runner otherwise. cfg is only consulted
// for remote hosts.
func NewHost(hostname string, cfg *ssh.ClientConfig, opts ...SSHOption) (Runner, error) {
	if isLocalhost(hostname) {
		return NewLocal(), nil
	}
	return DialSSH(hostname, cfg, opts...)
}

// isLocalhost reports whether hostname names this machine: empty,
// loopback, or matching our own hostname.
func isLocalhost(hostname string) bool {
	host := hostname
	if h, _, err := net.SplitHostPort(hostname); err == nil {
		host = h
	}

	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}

	self, err := os.Hostname()
	if err != nil {
		return false
	}
	return strings.EqualFold(host, self) ||
		strings.EqualFold(strings.Split(host, ".")[0], strings.Split(self, ".")[0])
}
