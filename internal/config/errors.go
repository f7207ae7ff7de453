package config

import "errors"

// Configuration validation errors.
// Package-level sentinel errors allow callers to use errors.Is() for
// programmatic handling while still providing human-readable messages.
var (
	// ErrInvalidPort is returned when the data port is outside 1-65535.
	ErrInvalidPort = errors.New("invalid data port: must be between 1 and 65535")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	// A timeout of zero or negative would cause immediate request failures.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxWorkers is returned when the worker cap is not positive.
	// Zero workers would mean the probe pool can never make progress.
	ErrInvalidMaxWorkers = errors.New("invalid max workers: must be positive")

	// ErrInvalidDrainGrace is returned when the drain grace period is not
	// positive. Without a grace period the worker process would always be
	// killed before it can exit cleanly.
	ErrInvalidDrainGrace = errors.New("invalid drain grace: must be positive")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
