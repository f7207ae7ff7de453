package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/netlabgo/netmeter/internal/config"
	"github.com/netlabgo/netmeter/internal/exchange"
	"github.com/netlabgo/netmeter/internal/log"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the data exchange service",
		Long: `Serve runs the key/value data exchange service in the foreground.

Remote measurement workers GET experiment inputs from it and POST their
results back; posted values land under "<path>_<clientAddress>" and are
retrieved as a whole through the drain key.

With --worker the process acts as the isolated server a controller
spawned: it reads its seed state as JSON from stdin and exits on the
controller's signal. This mode exists for the controller's re-exec and
is not useful interactively.

Examples:
  # Serve on the default port
  netmeter serve

  # Serve on a specific interface and port
  netmeter serve --addr 10.0.0.1:50007`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("addr", "a", "",
		"Listen address as host:port (default: all interfaces on the data port)")
	cmd.Flags().Bool("worker", false,
		"Run as a controller-spawned worker: seed state is read as JSON from stdin")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .netmeter in current or home directory)")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := serveConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	worker, err := cmd.Flags().GetBool("worker")
	if err != nil {
		return err
	}

	addr, err := cmd.Flags().GetString("addr")
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.DataAddr()
	}

	role := log.RoleController
	if worker {
		role = log.RoleWorker
	}
	logger := log.NewLogger(os.Stderr, role, getVerboseFlag(cmd))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, stopping...")
		cancel()
	}()

	store := exchange.NewStore(exchange.WithStoreLogger(logger))

	if worker {
		// The controller hands over its distributable state on stdin.
		var seed exchange.Seed
		if err := json.NewDecoder(os.Stdin).Decode(&seed); err != nil {
			return fmt.Errorf("failed to read seed state: %w", err)
		}
		store.Seed(seed.Broadcast, seed.ByAddress)
		if seed.Addr != "" {
			addr = seed.Addr
		}
	}

	srv := exchange.NewServer(store, addr, exchange.WithServerLogger(logger))
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start exchange server: %w", err)
	}
	logger.Info("exchange service listening", "addr", srv.Addr())

	<-ctx.Done()
	return srv.Shutdown()
}

// serveConfig builds a Config for the serve command from flags and the
// optional configuration file.
func serveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if err := applyConfigFile(cfg, configPath); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyConfigFile merges the configuration file into cfg. An explicitly
// named file must exist; the default search may come up empty.
func applyConfigFile(cfg *config.Config, configPath string) error {
	explicit := configPath != ""
	found := config.FindConfigFile(configPath)

	if found == "" {
		if explicit {
			return fmt.Errorf("configuration file not found: %s", configPath)
		}
		return nil
	}

	file, err := config.LoadConfigFile(found)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", found, err)
	}
	file.Apply(cfg)
	return nil
}

// getVerboseFlag retrieves the verbose flag from the command or its
// parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}
