package exchange

import "errors"

// Exchange protocol errors.
var (
	// ErrReservedKey is returned when a caller tries to use the reserved
	// drain key as an ordinary broadcast path.
	ErrReservedKey = errors.New("path collides with the reserved drain key")

	// ErrBadAddData is returned when AddData is called with both a path
	// and a hostname, or with neither. Exactly one selects the store the
	// value goes into.
	ErrBadAddData = errors.New("AddData requires exactly one of path or hostname")

	// ErrNotRunning is returned when Stop is called on a manager whose
	// worker is not running.
	ErrNotRunning = errors.New("exchange server is not running")

	// ErrAlreadyRunning is returned when Start is called on a manager
	// whose worker is already running.
	ErrAlreadyRunning = errors.New("exchange server is already running")

	// ErrWorkerNotReady is returned when a spawned worker process never
	// starts answering on its listen address.
	ErrWorkerNotReady = errors.New("worker process did not become ready")
)
