package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected
// default values. Changes to defaults should be intentional; these tests
// serve as living documentation.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default DataPort is 50007", func(t *testing.T) {
		t.Parallel()
		if cfg.DataPort != 50007 {
			t.Errorf("expected DataPort to be 50007, got %d", cfg.DataPort)
		}
	})

	t.Run("default Timeout is 10 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 10*time.Second {
			t.Errorf("expected Timeout to be 10s, got %v", cfg.Timeout)
		}
	})

	t.Run("default MaxWorkers is 8", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxWorkers != 8 {
			t.Errorf("expected MaxWorkers to be 8, got %d", cfg.MaxWorkers)
		}
	})

	t.Run("default DrainGrace is 1 second", func(t *testing.T) {
		t.Parallel()
		if cfg.DrainGrace != time.Second {
			t.Errorf("expected DrainGrace to be 1s, got %v", cfg.DrainGrace)
		}
	})

	t.Run("default banned hosts are set", func(t *testing.T) {
		t.Parallel()
		if len(cfg.BannedHosts) == 0 {
			t.Error("expected default banned hosts to be non-empty")
		}
	})
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "valid defaults",
			mutate:  func(*Config) {},
			wantErr: nil,
		},
		{
			name:    "zero port",
			mutate:  func(c *Config) { c.DataPort = 0 },
			wantErr: ErrInvalidPort,
		},
		{
			name:    "port too large",
			mutate:  func(c *Config) { c.DataPort = 70000 },
			wantErr: ErrInvalidPort,
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Timeout = -time.Second },
			wantErr: ErrInvalidTimeout,
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.MaxWorkers = 0 },
			wantErr: ErrInvalidMaxWorkers,
		},
		{
			name:    "zero drain grace",
			mutate:  func(c *Config) { c.DrainGrace = 0 },
			wantErr: ErrInvalidDrainGrace,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigAddrs(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	cfg.DataHost = "0.0.0.0"
	cfg.DataPort = 50007

	if got := cfg.DataAddr(); got != "0.0.0.0:50007" {
		t.Errorf("expected data addr '0.0.0.0:50007', got %q", got)
	}
	if got := cfg.LoopbackAddr(); got != "127.0.0.1:50007" {
		t.Errorf("expected loopback addr '127.0.0.1:50007', got %q", got)
	}
}

func TestIsBannedHost(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	if !cfg.IsBannedHost("ad.doubleclick.net") {
		t.Error("expected ad.doubleclick.net to be banned")
	}
	if cfg.IsBannedHost("example.com") {
		t.Error("expected example.com to not be banned")
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("loads and applies settings", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		content := `
data_port: 6000
max_workers: 4
banned_hosts:
  - spam.example.com
email:
  from: probe@example.com
  smtp_addr: smtp.example.com:587
`
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		f, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cfg := NewConfig()
		f.Apply(cfg)

		if cfg.DataPort != 6000 {
			t.Errorf("expected port 6000, got %d", cfg.DataPort)
		}
		if cfg.MaxWorkers != 4 {
			t.Errorf("expected 4 workers, got %d", cfg.MaxWorkers)
		}
		if !cfg.IsBannedHost("spam.example.com") {
			t.Error("expected spam.example.com to be banned")
		}
		if cfg.IsBannedHost("ad.doubleclick.net") {
			t.Error("expected banned list to be replaced, not merged")
		}
		if cfg.Email.To != "probe@example.com" {
			t.Errorf("expected To to default to From, got %q", cfg.Email.To)
		}
	})

	t.Run("invalid yaml returns error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte("data_port: [not a port"), 0o600); err != nil {
			t.Fatal(err)
		}

		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected error for invalid yaml")
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit path that exists", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
			t.Fatal(err)
		}

		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
	})

	t.Run("explicit path that does not exist", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile(filepath.Join(t.TempDir(), "nope")); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}
