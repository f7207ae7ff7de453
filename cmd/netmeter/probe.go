package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/netlabgo/netmeter/internal/config"
	"github.com/netlabgo/netmeter/internal/log"
	"github.com/netlabgo/netmeter/internal/probe"
	"github.com/netlabgo/netmeter/internal/report"
)

// NewProbeCmd creates the probe command.
func NewProbeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe <page-url>",
		Short: "Measure the resources sourced by a web page",
		Long: `Probe scrapes a page for the files it sources, validates each one
with a HEAD check (following redirects, dropping dead links), then
downloads the survivors and reports per-resource response times along
with a CPU-time overhead term bounding the measurement error.

Checks and downloads run through a bounded pool of concurrent workers,
approximating how a real browser loads the page.

Examples:
  # Probe a page with the default worker count
  netmeter probe http://www.example.com

  # Probe with more workers and write a Markdown report
  netmeter probe -w 16 --markdown -o report.md http://www.example.com

  # Probe a mirror of the page rehosted under another server
  netmeter probe --host mirror.example.net --prefix archive http://www.example.com

  # Mail the results when the run finishes (requires email settings
  # in the configuration file)
  netmeter probe --email http://www.example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runProbeCmd,
	}

	cmd.Flags().IntP("workers", "w", config.DefaultMaxWorkers,
		"Number of concurrent probe workers")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Connection timeout for each request")
	cmd.Flags().String("host", "",
		"Check candidates against this host instead of their native hosts")
	cmd.Flags().String("prefix", "",
		"Path prefix on the override host (requires --host)")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .netmeter in current or home directory)")

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("email", false,
		"Mail the report when the run finishes")

	return cmd
}

// probeOptions holds the parsed probe command flags.
type probeOptions struct {
	pageURL  string
	workers  int
	timeout  time.Duration
	host     string
	prefix   string
	json     bool
	markdown bool
	output   string
	email    bool
}

// parseProbeFlags reads and validates probe command flags.
func parseProbeFlags(cmd *cobra.Command, args []string) (*probeOptions, error) {
	opts := &probeOptions{pageURL: args[0]}
	var err error

	if opts.workers, err = cmd.Flags().GetInt("workers"); err != nil {
		return nil, err
	}
	if opts.timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return nil, err
	}
	if opts.host, err = cmd.Flags().GetString("host"); err != nil {
		return nil, err
	}
	if opts.prefix, err = cmd.Flags().GetString("prefix"); err != nil {
		return nil, err
	}
	if opts.json, err = cmd.Flags().GetBool("json"); err != nil {
		return nil, err
	}
	if opts.markdown, err = cmd.Flags().GetBool("markdown"); err != nil {
		return nil, err
	}
	if opts.output, err = cmd.Flags().GetString("output"); err != nil {
		return nil, err
	}
	if opts.email, err = cmd.Flags().GetBool("email"); err != nil {
		return nil, err
	}

	if opts.json && opts.markdown {
		return nil, errors.New("--json and --markdown are mutually exclusive")
	}
	if opts.prefix != "" && opts.host == "" {
		return nil, errors.New("--prefix requires --host")
	}
	if opts.workers < 1 {
		return nil, errors.New("--workers must be at least 1")
	}
	return opts, nil
}

// runProbeCmd executes the probe command.
func runProbeCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseProbeFlags(cmd, args)
	if err != nil {
		return err
	}

	cfg := config.NewConfig()
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	if err := applyConfigFile(cfg, configPath); err != nil {
		return err
	}
	cfg.Timeout = opts.timeout
	cfg.MaxWorkers = opts.workers
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewLogger(os.Stderr, log.RoleController, getVerboseFlag(cmd))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	run, err := executeRun(ctx, cfg, opts, logger)
	if err != nil {
		return err
	}
	return writeRun(cmd, cfg, opts, run)
}

// executeRun scrapes, validates, and times the page's resources.
func executeRun(ctx context.Context, cfg *config.Config, opts *probeOptions, logger *slog.Logger) (*report.Run, error) {
	scraper, err := probe.NewScraper(ctx, opts.pageURL,
		probe.WithScrapeTimeout(cfg.Timeout),
		probe.WithBannedHosts(cfg.BannedHosts),
		probe.WithScraperLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	run := report.NewRun(opts.pageURL, cfg.MaxWorkers)

	var targets []probe.Target
	if opts.host != "" {
		// Rehosted candidates go through the sequential path; the mirror
		// layout depends on the original host staying in the URL.
		targets = scraper.GenURLList(ctx, opts.host, opts.prefix)
	} else {
		targets = scraper.GenURLListThreaded(ctx, cfg.MaxWorkers)
	}

	prober := probe.NewProber(
		probe.WithProbeTimeout(cfg.Timeout),
		probe.WithProbeUserAgent(cfg.UserAgent),
		probe.WithProbeLogger(logger),
	)
	run.Finish(prober.LatencyAll(ctx, targets, cfg.MaxWorkers))
	return run, nil
}

// writeRun renders the finished run to the selected destinations.
func writeRun(cmd *cobra.Command, cfg *config.Config, opts *probeOptions, run *report.Run) error {
	var writer report.Writer
	switch {
	case opts.markdown:
		writer = report.NewMarkdownWriter(cmd.OutOrStdout())
	case opts.json:
		writer = report.NewJSONWriter(cmd.OutOrStdout())
	default:
		writer = report.NewJSONWriter(cmd.OutOrStdout(), report.WithPrettyPrint())
	}

	if opts.output != "" {
		if err := os.MkdirAll(filepath.Dir(opts.output), 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()

		var fileWriter report.Writer
		if opts.markdown {
			fileWriter = report.NewMarkdownWriter(f)
		} else {
			fileWriter = report.NewJSONWriter(f, report.WithPrettyPrint())
		}
		writer = report.NewMultiWriter(writer, fileWriter)
	}

	if _, err := writer.Write(run); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if opts.email {
		return mailRun(cfg, run)
	}
	return nil
}

// mailRun sends the run as a JSON attachment on a status mail.
func mailRun(cfg *config.Config, run *report.Run) error {
	var buf bytes.Buffer
	if _, err := report.NewJSONWriter(&buf, report.WithPrettyPrint()).Write(run); err != nil {
		return err
	}

	emailer := report.NewEmailer(cfg.Email)
	subject := fmt.Sprintf("netmeter run %s finished", run.RunID)
	msg := fmt.Sprintf("Measured %d targets in %s.", len(run.Results), run.Duration())
	return emailer.SendData(subject, msg, fmt.Sprintf("run-%s.json", run.RunID), buf.Bytes())
}
