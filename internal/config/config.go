package config

import (
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These mirror the conventions of typical measurement deployments: a
// non-privileged data port, conservative per-request timeouts, and a
// worker count that keeps probe traffic close to what a real browser
// generates.
const (
	// DefaultDataPort is the port the exchange server listens on.
	// An arbitrary non-privileged port; every worker host must be able
	// to reach the controller on it.
	DefaultDataPort = 50007

	// LocalLoopback is the address used for the drain step. The drain
	// request is always issued against the worker process on the same
	// machine, so the loopback interface is the only correct target.
	LocalLoopback = "127.0.0.1"

	// DefaultTimeout is the per-request connection timeout for probes
	// and exchange calls. Ten seconds tolerates slow origins without
	// stalling a whole measurement run on one dead host.
	DefaultTimeout = 10 * time.Second

	// DefaultDrainGrace is how long Stop waits for the isolated server
	// process to exit after the drain request before force-killing it.
	DefaultDrainGrace = 1 * time.Second

	// DefaultMaxWorkers is the probe pool concurrency cap. Around eight
	// parallel fetches approximates modern browser behavior; higher
	// values start to distort latency measurements.
	DefaultMaxWorkers = 8

	// DefaultWaitTime is the pause used by command wrappers (iperf,
	// tcpdump) to let a freshly started remote process settle before
	// traffic is generated against it.
	DefaultWaitTime = 5 * time.Second

	// DefaultUserAgent identifies netmeter in HTTP requests so that
	// origin operators can recognize measurement traffic in their logs.
	DefaultUserAgent = "netmeter/0.1"

	// AppName is the application name used for XDG directory paths.
	AppName = "netmeter"
)

// DefaultBannedHosts are ad and tracking hosts excluded from scraped
// target lists when no host override is given. Probing them measures
// the ad network, not the page under study.
var DefaultBannedHosts = []string{
	"ad.doubleclick.net",
	"fls.doubleclick.net",
	"b.scorecardresearch.com",
}

// Config holds all configuration options for netmeter.
// It is populated from CLI flags and an optional YAML file and passed
// through the application via dependency injection rather than global
// state.
type Config struct {
	// DataHost is the interface the exchange server binds to.
	// Empty means all interfaces.
	DataHost string

	// DataPort is the port the exchange server listens on.
	DataPort int

	// Timeout is the per-request timeout for probe and exchange calls.
	Timeout time.Duration

	// DrainGrace bounds how long Stop waits for the isolated server
	// process to exit before forcibly terminating it.
	DrainGrace time.Duration

	// MaxWorkers caps probe pool concurrency.
	MaxWorkers int

	// WaitTime is the settle pause used by command wrappers.
	WaitTime time.Duration

	// BannedHosts are hosts dropped from scraped target lists.
	BannedHosts []string

	// UserAgent is sent with every outbound HTTP request.
	UserAgent string

	// Verbose enables slog.LevelDebug output.
	Verbose bool

	// Email holds status-report mail settings. A zero value disables
	// email reporting.
	Email EmailConfig
}

// EmailConfig holds SMTP settings for status reports.
type EmailConfig struct {
	// From is the sender address. Empty disables email reporting.
	From string `yaml:"from"`

	// To is the recipient address. Defaults to From when empty.
	To string `yaml:"to"`

	// SMTPAddr is the mail server in "host:port" format.
	SMTPAddr string `yaml:"smtp_addr"`

	// Password enables SMTP PLAIN auth when non-empty.
	Password string `yaml:"password"`

	// Subject is the default subject line for status mails.
	Subject string `yaml:"subject"`
}

// NewConfig creates a Config with default values.
// Many defaults are non-zero (port, timeout, worker cap), so relying on
// zero values would produce a broken configuration; the constructor also
// documents what the defaults are.
func NewConfig() *Config {
	return &Config{
		DataPort:    DefaultDataPort,
		Timeout:     DefaultTimeout,
		DrainGrace:  DefaultDrainGrace,
		MaxWorkers:  DefaultMaxWorkers,
		WaitTime:    DefaultWaitTime,
		BannedHosts: append([]string(nil), DefaultBannedHosts...),
		UserAgent:   DefaultUserAgent,
	}
}

// Validate checks the configuration for values that would make a run
// fail in confusing ways later. It returns the first problem found.
func (c *Config) Validate() error {
	if c.DataPort < 1 || c.DataPort > 65535 {
		return ErrInvalidPort
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxWorkers < 1 {
		return ErrInvalidMaxWorkers
	}
	if c.DrainGrace <= 0 {
		return ErrInvalidDrainGrace
	}
	return nil
}

// DataAddr returns the exchange server listen address in "host:port"
// format.
func (c *Config) DataAddr() string {
	return net.JoinHostPort(c.DataHost, strconv.Itoa(c.DataPort))
}

// LoopbackAddr returns the loopback address of the exchange server,
// used by the drain step.
func (c *Config) LoopbackAddr() string {
	return net.JoinHostPort(LocalLoopback, strconv.Itoa(c.DataPort))
}

// IsBannedHost reports whether host is on the banned list.
func (c *Config) IsBannedHost(host string) bool {
	for _, banned := range c.BannedHosts {
		if host == banned {
			return true
		}
	}
	return false
}

// XDGDataDir returns the XDG data directory for netmeter, used as the
// default location for report output.
// On Linux: ~/.local/share/netmeter
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}
