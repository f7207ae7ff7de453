package runner

import "errors"

var (
	// ErrConflictingTraffic is returned when a traffic spec asks for a
	// UDP rate and a TCP window at the same time.
	ErrConflictingTraffic = errors.New("runner: rate (UDP) and window (TCP) are mutually exclusive")

	// ErrCaptureRunning is returned when a capture is started while a
	// previous one has not been stopped.
	ErrCaptureRunning = errors.New("runner: capture already running")
)
