package exchange

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/netlabgo/netmeter/internal/codec"
)

// freePort reserves a loopback port for a test server. The listener is
// closed immediately; the tiny race with other tests is acceptable.
func freePort(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Fatal(err)
	}
	return addr
}

// fakeWorker runs the "isolated" exchange server in-process so manager
// tests can exercise the drain protocol without spawning a child
// process. Its store is private to it, exactly like a real worker's
// copy-on-start state.
type fakeWorker struct {
	store   *Store
	srv     *Server
	cancel  context.CancelFunc
	started int
	stopped int
}

func (w *fakeWorker) Start(_ context.Context, seed Seed) error {
	w.store = NewStore()
	w.store.Seed(seed.Broadcast, seed.ByAddress)
	w.srv = NewServer(w.store, seed.Addr)

	srvCtx, cancel := context.WithCancel(context.Background())
	if err := w.srv.Start(srvCtx); err != nil {
		cancel()
		return err
	}
	w.cancel = cancel
	w.started++
	return nil
}

func (w *fakeWorker) Stop(time.Duration) error {
	w.stopped++
	if w.cancel != nil {
		w.cancel()
	}
	if w.srv != nil {
		return w.srv.Shutdown()
	}
	return nil
}

// deadWorker claims to start but never listens, so the drain GET fails.
type deadWorker struct{}

func (deadWorker) Start(context.Context, Seed) error { return nil }
func (deadWorker) Stop(time.Duration) error          { return nil }

func newManagerFixture(t *testing.T) (*Store, *Manager, *fakeWorker) {
	t.Helper()

	store := NewStore()
	worker := &fakeWorker{}
	mgr := NewManager(store, freePort(t),
		WithWorker(worker),
		WithDrainGrace(100*time.Millisecond),
	)
	t.Cleanup(func() {
		if mgr.State() == StateRunning {
			_ = mgr.Stop(context.Background()) //nolint:errcheck // Test cleanup
		}
	})
	return store, mgr, worker
}

func TestManagerLifecycle(t *testing.T) {
	t.Parallel()

	t.Run("stop without start is an error", func(t *testing.T) {
		t.Parallel()

		_, mgr, _ := newManagerFixture(t)
		if err := mgr.Stop(context.Background()); !errors.Is(err, ErrNotRunning) {
			t.Errorf("expected ErrNotRunning, got %v", err)
		}
	})

	t.Run("double start is an error", func(t *testing.T) {
		t.Parallel()

		_, mgr, _ := newManagerFixture(t)
		ctx := context.Background()

		if err := mgr.Start(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := mgr.Start(ctx); !errors.Is(err, ErrAlreadyRunning) {
			t.Errorf("expected ErrAlreadyRunning, got %v", err)
		}
	})

	t.Run("states transition through the machine", func(t *testing.T) {
		t.Parallel()

		_, mgr, _ := newManagerFixture(t)
		ctx := context.Background()

		if got := mgr.State(); got != StateStopped {
			t.Errorf("expected stopped, got %v", got)
		}
		if err := mgr.Start(ctx); err != nil {
			t.Fatal(err)
		}
		if got := mgr.State(); got != StateRunning {
			t.Errorf("expected running, got %v", got)
		}
		if err := mgr.Stop(ctx); err != nil {
			t.Fatal(err)
		}
		if got := mgr.State(); got != StateStopped {
			t.Errorf("expected stopped, got %v", got)
		}
	})
}

func TestManagerDrainCompleteness(t *testing.T) {
	t.Parallel()

	_, mgr, worker := newManagerFixture(t)
	ctx := context.Background()

	if err := mgr.AddData(ctx, map[string]any{"a": float64(1)}, "config", ""); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Start(ctx); err != nil {
		t.Fatal(err)
	}

	// Play the part of a remote measurement client.
	client := NewClient(worker.srv.Addr())

	v, ok := client.Recv(ctx, "config")
	if !ok {
		t.Fatal("expected broadcast value from worker")
	}
	if m, ok := v.(map[string]any); !ok || m["a"] != float64(1) {
		t.Errorf("unexpected broadcast value %v", v)
	}

	client.Send(ctx, map[string]any{"b": float64(2)}, "upload")

	if err := mgr.Stop(ctx); err != nil {
		t.Fatal(err)
	}

	results := mgr.Results()
	got, ok := results["upload_127.0.0.1"].(map[string]any)
	if !ok {
		t.Fatalf("expected drained result, got %v", results)
	}
	if got["b"] != float64(2) {
		t.Errorf("expected b=2, got %v", got["b"])
	}
}

func TestManagerDrainFailureKeepsState(t *testing.T) {
	t.Parallel()

	store := NewStore()
	if _, ok := store.Put("10.0.0.1", "earlier", codec.Payload{Data: []byte("kept")}); !ok {
		t.Fatal("expected put to succeed")
	}

	mgr := NewManager(store, freePort(t),
		WithWorker(deadWorker{}),
		WithDrainGrace(50*time.Millisecond),
	)
	ctx := context.Background()

	if err := mgr.Start(ctx); err != nil {
		t.Fatal(err)
	}
	// The worker never listens, so the drain GET fails. Stop must still
	// complete and the controller keeps its last known state.
	if err := mgr.Stop(ctx); err != nil {
		t.Fatal(err)
	}

	results := mgr.Results()
	b, ok := results["earlier_10.0.0.1"].([]byte)
	if !ok || string(b) != "kept" {
		t.Errorf("expected pre-existing state to survive a failed drain, got %v", results)
	}
}

func TestManagerAddData(t *testing.T) {
	t.Parallel()

	t.Run("both path and hostname rejected", func(t *testing.T) {
		t.Parallel()

		_, mgr, _ := newManagerFixture(t)
		err := mgr.AddData(context.Background(), "v", "path", "host.example.com")
		if !errors.Is(err, ErrBadAddData) {
			t.Errorf("expected ErrBadAddData, got %v", err)
		}
	})

	t.Run("neither path nor hostname rejected", func(t *testing.T) {
		t.Parallel()

		_, mgr, _ := newManagerFixture(t)
		err := mgr.AddData(context.Background(), "v", "", "")
		if !errors.Is(err, ErrBadAddData) {
			t.Errorf("expected ErrBadAddData, got %v", err)
		}
	})

	t.Run("write while running restarts the worker", func(t *testing.T) {
		t.Parallel()

		_, mgr, worker := newManagerFixture(t)
		ctx := context.Background()

		if err := mgr.Start(ctx); err != nil {
			t.Fatal(err)
		}
		if err := mgr.AddData(ctx, "late value", "late", ""); err != nil {
			t.Fatal(err)
		}

		if worker.started != 2 {
			t.Errorf("expected worker restart, started=%d", worker.started)
		}
		if mgr.State() != StateRunning {
			t.Errorf("expected running after transparent restart, got %v", mgr.State())
		}

		// The restarted worker serves the new broadcast.
		client := NewClient(worker.srv.Addr())
		v, ok := client.Recv(ctx, "late")
		if !ok {
			t.Fatal("expected late broadcast from restarted worker")
		}
		if b, ok := v.([]byte); !ok || string(b) != "late value" {
			t.Errorf("unexpected value %v", v)
		}
	})
}

func TestManagerRestart(t *testing.T) {
	t.Parallel()

	t.Run("restart from stopped just starts", func(t *testing.T) {
		t.Parallel()

		_, mgr, worker := newManagerFixture(t)
		if err := mgr.Restart(context.Background()); err != nil {
			t.Fatal(err)
		}
		if worker.started != 1 || worker.stopped != 0 {
			t.Errorf("expected plain start, started=%d stopped=%d", worker.started, worker.stopped)
		}
	})

	t.Run("restart from running drains first", func(t *testing.T) {
		t.Parallel()

		_, mgr, worker := newManagerFixture(t)
		ctx := context.Background()

		if err := mgr.Start(ctx); err != nil {
			t.Fatal(err)
		}

		client := NewClient(worker.srv.Addr())
		client.Send(ctx, []byte("before restart"), "partial")

		if err := mgr.Restart(ctx); err != nil {
			t.Fatal(err)
		}

		// The pre-restart post survived the worker swap via the drain.
		results := mgr.Results()
		if b, ok := results["partial_127.0.0.1"].([]byte); !ok || string(b) != "before restart" {
			t.Errorf("expected drained entry after restart, got %v", results)
		}
	})
}

// TestManagerEndToEnd walks the canonical experiment flow: seed a
// broadcast, let a client fetch it and post results, stop, read merged
// results.
func TestManagerEndToEnd(t *testing.T) {
	t.Parallel()

	_, mgr, worker := newManagerFixture(t)
	ctx := context.Background()

	if err := mgr.AddData(ctx, map[string]any{"a": float64(1)}, "config", ""); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Start(ctx); err != nil {
		t.Fatal(err)
	}

	client := NewClient(worker.srv.Addr())

	cfg, ok := client.Recv(ctx, "config")
	if !ok {
		t.Fatal("expected config")
	}
	if m := cfg.(map[string]any); m["a"] != float64(1) {
		t.Fatalf("unexpected config %v", cfg)
	}

	client.Send(ctx, map[string]any{"b": float64(2)}, "upload")

	if err := mgr.Stop(ctx); err != nil {
		t.Fatal(err)
	}

	results := mgr.Results()
	uploaded, ok := results["upload_127.0.0.1"].(map[string]any)
	if !ok {
		t.Fatalf("expected uploaded result, got %v", results)
	}
	if uploaded["b"] != float64(2) {
		t.Errorf("expected b=2, got %v", uploaded["b"])
	}
}
