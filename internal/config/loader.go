package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".netmeter"

// File is the YAML representation of a netmeter configuration file.
// Every field is optional; omitted fields keep their defaults.
type File struct {
	// DataHost overrides the exchange server bind interface.
	DataHost string `yaml:"data_host"`

	// DataPort overrides the exchange server port.
	DataPort int `yaml:"data_port"`

	// TimeoutSeconds overrides the per-request timeout.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// MaxWorkers overrides the probe pool concurrency cap.
	MaxWorkers int `yaml:"max_workers"`

	// BannedHosts replaces the default banned-host list.
	BannedHosts []string `yaml:"banned_hosts"`

	// UserAgent overrides the outbound User-Agent header.
	UserAgent string `yaml:"user_agent"`

	// Email configures status-report mail.
	Email EmailConfig `yaml:"email"`
}

// LoadConfigFile loads settings from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound. Callers
// should handle this based on whether the path was explicitly given
// by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .netmeter in the current directory
// 3. Look for .netmeter in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}

// Apply merges the file settings into cfg. Zero values in the file are
// treated as "not set" and leave the existing value alone.
func (f *File) Apply(cfg *Config) {
	if f.DataHost != "" {
		cfg.DataHost = f.DataHost
	}
	if f.DataPort != 0 {
		cfg.DataPort = f.DataPort
	}
	if f.TimeoutSeconds != 0 {
		cfg.Timeout = time.Duration(f.TimeoutSeconds) * time.Second
	}
	if f.MaxWorkers != 0 {
		cfg.MaxWorkers = f.MaxWorkers
	}
	if f.BannedHosts != nil {
		cfg.BannedHosts = append([]string(nil), f.BannedHosts...)
	}
	if f.UserAgent != "" {
		cfg.UserAgent = f.UserAgent
	}
	if f.Email.From != "" {
		cfg.Email = f.Email
		if cfg.Email.To == "" {
			cfg.Email.To = cfg.Email.From
		}
	}
}
