package exchange

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/netlabgo/netmeter/internal/codec"
)

// shutdownTimeout bounds the graceful drain of in-flight requests when
// the server is asked to stop.
const shutdownTimeout = 5 * time.Second

// maxRequestBody limits POST bodies to prevent memory exhaustion from a
// misbehaving client. Experiment payloads are result lists, not files.
const maxRequestBody = 32 << 20 // 32MB

// Exchanger is the strategy a Server delegates request resolution to.
// Store implements it; tests and special-purpose servers can supply
// their own.
type Exchanger interface {
	// Lookup resolves a GET: it returns the payload for the client's
	// address and requested path, or false when absent.
	Lookup(address, path string) (codec.Payload, bool)

	// Put resolves a POST: it stores the payload for the (address, path)
	// pair and returns a confirmation string, or false when rejected.
	Put(address, path string, payload codec.Payload) (string, bool)
}

// Server exposes an Exchanger over HTTP. GET reads, POST writes, any
// path. Requests are handled one at a time: the exchange protocol's
// consistency story is "one loop, no interleaving", and serializing the
// handler keeps that property on top of net/http's per-connection
// goroutines.
type Server struct {
	exchanger Exchanger
	addr      string
	logger    *slog.Logger

	// handleMu serializes request handling.
	handleMu sync.Mutex

	httpServer *http.Server
	listener   net.Listener
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets a custom logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a Server that will listen on addr ("host:port";
// port 0 picks a free port) and delegate to exchanger.
func NewServer(exchanger Exchanger, addr string, opts ...ServerOption) *Server {
	s := &Server{
		exchanger: exchanger,
		addr:      addr,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Start binds the listener and begins serving in a background
// goroutine. It returns once the listener is bound, so a subsequent
// Addr call always reflects a live port. The server shuts down
// gracefully when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.addr, err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	s.logger.Info("exchange server listening", "addr", ln.Addr().String())

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("exchange server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("exchange server shutdown error", "error", err)
		}
	}()

	return nil
}

// Shutdown stops the server, waiting up to shutdownTimeout for in-flight
// requests. Safe to call on a server that never started.
func (s *Server) Shutdown() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the bound listen address, or the configured address if
// the server has not started.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ServeHTTP dispatches GET and POST requests to the exchanger. Exported
// so tests can drive the handler through httptest without binding ports.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handleMu.Lock()
	defer s.handleMu.Unlock()

	address := clientAddress(r)
	path := strings.TrimPrefix(r.URL.Path, "/")

	switch r.Method {
	case http.MethodGet:
		s.handleGet(w, address, path)
	case http.MethodPost:
		s.handlePost(w, r, address, path)
	default:
		s.logger.Error("unsupported method", "method", r.Method, "address", address, "path", path)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleGet serves a lookup. Absent values become a 404, the protocol's
// only failure signal.
func (s *Server) handleGet(w http.ResponseWriter, address, path string) {
	payload, ok := s.exchanger.Lookup(address, path)
	if !ok {
		s.logger.Error("lookup miss", "address", address, "path", path)
		http.Error(w, path, http.StatusNotFound)
		return
	}

	s.logger.Info("lookup hit", "address", address, "path", path, "bytes", payload.Len())

	w.Header().Set("Content-Type", codec.ContentType)
	if payload.Structured {
		w.Header().Set(codec.EncodingHeader, codec.EncodingJSON)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload.Data); err != nil {
		s.logger.Error("failed to write response", "address", address, "path", path, "error", err)
	}
}

// handlePost stores a posted payload. Bodies with an unexpected content
// type are stored as empty, matching the protocol's lenient wire
// behavior; rejected puts become a 404.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request, address, path string) {
	var payload codec.Payload
	if r.Header.Get("Content-Type") == codec.ContentType {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
		if err != nil {
			s.logger.Error("failed to read request body", "address", address, "path", path, "error", err)
			http.Error(w, path, http.StatusNotFound)
			return
		}
		payload = codec.Payload{
			Data:       body,
			Structured: r.Header.Get(codec.EncodingHeader) != "",
		}
	}

	confirmation, ok := s.exchanger.Put(address, path, payload)
	if !ok {
		s.logger.Error("put rejected", "address", address, "path", path)
		http.Error(w, path, http.StatusNotFound)
		return
	}

	s.logger.Info("put stored", "address", address, "path", path, "bytes", payload.Len())

	w.Header().Set("Content-Type", codec.ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(confirmation)); err != nil {
		s.logger.Error("failed to write confirmation", "address", address, "path", path, "error", err)
	}
}

// clientAddress extracts the client IP from the request, dropping the
// ephemeral port. Per-address lookups key on the bare address.
func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
