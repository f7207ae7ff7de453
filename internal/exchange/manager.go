package exchange

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/netlabgo/netmeter/internal/codec"
)

// State is the lifecycle state of a managed exchange server process.
type State int

// Manager lifecycle states.
const (
	// StateStopped means no worker process exists.
	StateStopped State = iota

	// StateStarting means the worker process has been spawned but is not
	// yet answering requests.
	StateStarting

	// StateRunning means the worker process is serving.
	StateRunning

	// StateDraining means Stop is recovering the worker's received data
	// before tearing it down.
	StateDraining
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Seed is the state handed to a worker process at startup. The worker
// inherits the distributable maps and serves them; everything it
// receives afterwards lives only in its own memory until the drain.
type Seed struct {
	// Addr is the address the worker should listen on.
	Addr string `json:"addr"`

	// Broadcast seeds the worker's broadcast store.
	Broadcast map[string]codec.Payload `json:"broadcast"`

	// ByAddress seeds the worker's per-address store.
	ByAddress map[string]codec.Payload `json:"by_address"`
}

// Worker abstracts the isolated server process. The production
// implementation (ExecWorker) re-execs the netmeter binary; tests
// substitute an in-process server to exercise the drain protocol
// without spawning anything.
type Worker interface {
	// Start launches the server process with the given seed and returns
	// once it is answering requests.
	Start(ctx context.Context, seed Seed) error

	// Stop asks the process to exit and waits up to grace for it to do
	// so, forcibly terminating it afterwards. It returns an error only
	// when even forced termination failed.
	Stop(grace time.Duration) error
}

// Manager runs an exchange server in an isolated worker process and
// recovers the worker's received data before teardown.
//
// The worker has its own private copy of the store from the moment it
// starts; mutations inside it are invisible to the controller through
// memory. The stop sequence therefore drains the worker over the
// exchange protocol itself (a loopback GET of the reserved key) and
// merges the returned snapshot into the controller's store. That drain
// is the only synchronization point between the two address spaces.
type Manager struct {
	mu     sync.Mutex
	state  State
	store  *Store
	worker Worker
	addr   string
	grace  time.Duration
	logger *slog.Logger

	// drainClient issues the loopback drain GET. Rebuilt on every start
	// so a new worker address is picked up.
	drainClient *Client
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithWorker replaces the worker implementation. Tests use this to run
// the "isolated" server in-process.
func WithWorker(w Worker) ManagerOption {
	return func(m *Manager) {
		m.worker = w
	}
}

// WithDrainGrace sets how long Stop waits for the worker process to
// exit before force-killing it.
func WithDrainGrace(grace time.Duration) ManagerOption {
	return func(m *Manager) {
		m.grace = grace
	}
}

// WithManagerLogger sets a custom logger.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager that will serve store on addr
// ("host:port") from an isolated worker process.
func NewManager(store *Store, addr string, opts ...ManagerOption) *Manager {
	m := &Manager{
		state: StateStopped,
		store: store,
		addr:  addr,
		grace: time.Second,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.worker == nil {
		m.worker = NewExecWorker(m.addr, WithExecLogger(m.logger))
	}
	return m
}

// Start spawns the worker process seeded with the store's distributable
// state and waits until it answers.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateStopped {
		return ErrAlreadyRunning
	}
	m.state = StateStarting

	broadcast, byAddress := m.store.Distributable()
	seed := Seed{
		Addr:      m.addr,
		Broadcast: broadcast,
		ByAddress: byAddress,
	}

	if err := m.worker.Start(ctx, seed); err != nil {
		m.state = StateStopped
		return err
	}

	m.drainClient = NewClient(m.loopbackAddr(), WithClientLogger(m.logger))
	m.state = StateRunning
	m.logger.Info("exchange worker running", "addr", m.addr)
	return nil
}

// Stop drains the worker and tears it down:
//
//  1. a loopback GET of the reserved key retrieves the worker's
//     received-data snapshot;
//  2. the worker is joined with the configured grace period and
//     forcibly terminated if still alive;
//  3. the snapshot is merged into the controller's store, overwriting
//     on key collision.
//
// If the drain GET fails the merge is skipped with a warning: the
// controller keeps its last known state rather than failing the whole
// stop sequence. Stop on a manager that is not running is an error.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked(ctx)
}

func (m *Manager) stopLocked(ctx context.Context) error {
	if m.state != StateRunning {
		return ErrNotRunning
	}
	m.state = StateDraining

	snapshot, drained := m.drainClient.RecvSnapshot(ctx)
	if !drained {
		m.logger.Warn("drain failed; received data since the last drain is lost", "addr", m.addr)
	}

	if err := m.worker.Stop(m.grace); err != nil {
		m.logger.Error("failed to terminate worker", "error", err)
	}

	if drained {
		m.store.Merge(snapshot)
		m.logger.Info("drained worker state", "entries", len(snapshot))
	}

	m.state = StateStopped
	return nil
}

// Restart stops the worker if it is running, then starts a fresh one.
func (m *Manager) Restart(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateRunning {
		if err := m.stopLocked(ctx); err != nil {
			m.mu.Unlock()
			return err
		}
	}
	m.mu.Unlock()
	return m.Start(ctx)
}

// AddData stores a value for clients to fetch. Exactly one of path or
// hostname selects the store: path makes the value a broadcast
// retrievable by anyone, hostname scopes it to the client whose
// resolved address matches. Supplying both or neither is logged and
// rejected without mutating anything.
//
// The distributable stores are copied into the worker at start, so a
// running worker is transparently stopped, mutated, and restarted.
func (m *Manager) AddData(ctx context.Context, v any, path, hostname string) error {
	if (path == "") == (hostname == "") {
		m.logger.Error("AddData requires exactly one of path or hostname", "path", path, "hostname", hostname)
		return ErrBadAddData
	}

	m.mu.Lock()
	restart := m.state == StateRunning
	if restart {
		if err := m.stopLocked(ctx); err != nil {
			m.mu.Unlock()
			return err
		}
	}
	m.mu.Unlock()

	var err error
	if path != "" {
		err = m.store.SetBroadcast(path, v)
	} else {
		err = m.store.SetForHost(hostname, v)
	}
	if err != nil {
		return err
	}

	if restart {
		return m.Start(ctx)
	}
	return nil
}

// Results returns the decoded received-data store. Authoritative only
// after Stop has completed; reading while the worker is running returns
// a possibly incomplete view and logs a warning.
func (m *Manager) Results() map[string]any {
	m.mu.Lock()
	if m.state != StateStopped {
		m.logger.Warn("reading results from a running server may be incomplete", "state", m.state.String())
	}
	m.mu.Unlock()
	return m.store.Results()
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// loopbackAddr rewrites the listen address to the loopback interface,
// keeping the port. The drain always talks to the worker on the same
// machine.
func (m *Manager) loopbackAddr() string {
	_, port, err := net.SplitHostPort(m.addr)
	if err != nil {
		return m.addr
	}
	return net.JoinHostPort("127.0.0.1", port)
}
