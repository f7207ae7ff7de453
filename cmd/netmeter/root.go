// Package main provides the entry point for the netmeter CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for netmeter.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "netmeter",
		Short: "Distributed network measurement toolkit",
		Long: `netmeter runs distributed network-measurement experiments.

The probe command scrapes a page for the resources it sources, validates
them, and measures how long each takes to download with a bounded pool
of concurrent workers.

The serve command runs the data exchange service that remote measurement
workers fetch experiment inputs from and post their results back to.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewProbeCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
