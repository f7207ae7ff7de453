package exchange

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/netlabgo/netmeter/internal/codec"
)

// ReservedKey is the sentinel path that returns the entire received-data
// store. A random hex string keeps experiments from dumping their results
// by accidentally reusing it as an ordinary path.
const ReservedKey = "e3b7a0c154f29d8e6cf01b2a9d4471e5"

// Resolver turns a hostname into a numeric address. It is injectable so
// tests do not depend on real DNS.
type Resolver func(hostname string) (string, error)

// defaultResolver resolves via the system resolver and returns the first
// address.
func defaultResolver(hostname string) (string, error) {
	addrs, err := net.LookupHost(hostname)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", hostname, err)
	}
	return addrs[0], nil
}

// Store holds the three in-memory maps of the exchange protocol:
// broadcast values keyed by path, per-address values keyed by resolved
// IP, and received values keyed by "<path>_<address>".
//
// The store is owned by whichever server instance is currently exposing
// it; creation and teardown are explicit rather than ambient globals so
// the controller and its worker process each hold a clearly scoped copy.
type Store struct {
	mu        sync.RWMutex
	broadcast map[string]codec.Payload
	byAddress map[string]codec.Payload
	received  map[string]codec.Payload

	// ipCache caches hostname resolution for the store's lifetime.
	ipCache  map[string]string
	resolver Resolver

	logger *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithResolver replaces the hostname resolver. Used in tests and in
// deployments where worker addresses come from a private naming service.
func WithResolver(r Resolver) StoreOption {
	return func(s *Store) {
		s.resolver = r
	}
}

// WithStoreLogger sets a custom logger.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		broadcast: make(map[string]codec.Payload),
		byAddress: make(map[string]codec.Payload),
		received:  make(map[string]codec.Payload),
		ipCache:   make(map[string]string),
		resolver:  defaultResolver,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// SetBroadcast stores a value retrievable by any client that supplies
// path. The reserved key is rejected to keep it out of the broadcast
// namespace.
func (s *Store) SetBroadcast(path string, v any) error {
	if path == ReservedKey {
		return ErrReservedKey
	}
	payload, err := codec.Encode(v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.broadcast[path] = payload
	s.mu.Unlock()
	return nil
}

// SetForHost stores a value retrievable only by the client whose
// resolved address matches hostname. Resolution is cached per hostname
// for the store's lifetime.
func (s *Store) SetForHost(hostname string, v any) error {
	payload, err := codec.Encode(v)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	addr, ok := s.ipCache[hostname]
	if !ok {
		addr, err = s.resolver(hostname)
		if err != nil {
			return err
		}
		s.ipCache[hostname] = addr
	}
	s.byAddress[addr] = payload
	return nil
}

// Lookup resolves a GET request. Resolution order: the reserved key
// returns a snapshot of the received store; then a broadcast path match
// wins regardless of client address; then a per-address match; then
// absent.
func (s *Store) Lookup(address, path string) (codec.Payload, bool) {
	if path == ReservedKey {
		snapshot, err := codec.EncodeSnapshot(s.Snapshot())
		if err != nil {
			s.logger.Error("failed to encode received snapshot", "error", err)
			return codec.Payload{}, false
		}
		return snapshot, true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if payload, ok := s.broadcast[path]; ok {
		return payload, true
	}
	if payload, ok := s.byAddress[address]; ok {
		return payload, true
	}
	return codec.Payload{}, false
}

// Put resolves a POST request. The payload is stored in the received
// store under "<path>_<address>"; a second put with the same pair
// overwrites the first. Puts to the reserved key are rejected.
// The returned confirmation names the key and the payload length.
func (s *Store) Put(address, path string, payload codec.Payload) (string, bool) {
	if path == ReservedKey {
		s.logger.Error("refusing to store under the reserved key", "address", address)
		return "", false
	}

	key := CompositeKey(path, address)

	s.mu.Lock()
	s.received[key] = payload
	s.mu.Unlock()

	return fmt.Sprintf("%s = %d Bytes", key, payload.Len()), true
}

// CompositeKey builds the received-store key for a (path, address) pair.
func CompositeKey(path, address string) string {
	return path + "_" + address
}

// Snapshot returns a copy of the received store.
func (s *Store) Snapshot() map[string]codec.Payload {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]codec.Payload, len(s.received))
	for k, v := range s.received {
		snapshot[k] = v
	}
	return snapshot
}

// Merge copies every entry of snapshot into the received store,
// overwriting on key collision. Called by the drain step to fold the
// worker process's state back into the controller's.
func (s *Store) Merge(snapshot map[string]codec.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range snapshot {
		s.received[k] = v
	}
}

// Seed replaces the broadcast and per-address maps. Used by the worker
// process to take over the controller's state at startup.
func (s *Store) Seed(broadcast, byAddress map[string]codec.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.broadcast = make(map[string]codec.Payload, len(broadcast))
	for k, v := range broadcast {
		s.broadcast[k] = v
	}
	s.byAddress = make(map[string]codec.Payload, len(byAddress))
	for k, v := range byAddress {
		s.byAddress[k] = v
	}
}

// Distributable returns copies of the broadcast and per-address maps,
// the state a worker process needs at startup.
func (s *Store) Distributable() (broadcast, byAddress map[string]codec.Payload) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	broadcast = make(map[string]codec.Payload, len(s.broadcast))
	for k, v := range s.broadcast {
		broadcast[k] = v
	}
	byAddress = make(map[string]codec.Payload, len(s.byAddress))
	for k, v := range s.byAddress {
		byAddress[k] = v
	}
	return broadcast, byAddress
}

// Results decodes the received store into client-facing values:
// structured payloads come back as their decoded form, raw payloads as
// bytes. Entries that fail to decode are logged and skipped.
func (s *Store) Results() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make(map[string]any, len(s.received))
	for k, payload := range s.received {
		v, err := payload.Decode()
		if err != nil {
			s.logger.Error("failed to decode received payload", "key", k, "error", err)
			continue
		}
		results[k] = v
	}
	return results
}
