// Package log provides structured logging for netmeter, built on top of
// the standard slog package.
//
// Two processes write interleaved output during an experiment: the
// controller and the isolated exchange server it spawns. The Handler in
// this package tags every record with the originating process role so
// the merged stream stays readable, and masks credential-like attribute
// values (SSH keys, SMTP passwords) before they reach the output.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, log.RoleController, verbose)
//	slog.SetDefault(logger)
package log
