package exchange

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
)

// newClientFixture starts an exchange server around a fresh store and
// returns a client pointed at it.
func newClientFixture(t *testing.T) (*Store, *Client) {
	t.Helper()

	store := NewStore()
	srv := NewServer(store, "127.0.0.1:0")
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	addr := strings.TrimPrefix(ts.URL, "http://")
	return store, NewClient(addr)
}

func TestClientRecv(t *testing.T) {
	t.Parallel()

	t.Run("structured value decodes", func(t *testing.T) {
		t.Parallel()

		store, client := newClientFixture(t)
		if err := store.SetBroadcast("config", map[string]any{"a": float64(1)}); err != nil {
			t.Fatal(err)
		}

		v, ok := client.Recv(context.Background(), "config")
		if !ok {
			t.Fatal("expected value")
		}
		m, ok := v.(map[string]any)
		if !ok {
			t.Fatalf("expected map, got %T", v)
		}
		if m["a"] != float64(1) {
			t.Errorf("expected a=1, got %v", m["a"])
		}
	})

	t.Run("raw value returns bytes", func(t *testing.T) {
		t.Parallel()

		store, client := newClientFixture(t)
		if err := store.SetBroadcast("blob", []byte("raw")); err != nil {
			t.Fatal(err)
		}

		v, ok := client.Recv(context.Background(), "blob")
		if !ok {
			t.Fatal("expected value")
		}
		b, ok := v.([]byte)
		if !ok {
			t.Fatalf("expected []byte, got %T", v)
		}
		if string(b) != "raw" {
			t.Errorf("expected 'raw', got %q", b)
		}
	})

	t.Run("miss returns absent without error", func(t *testing.T) {
		t.Parallel()

		_, client := newClientFixture(t)

		if _, ok := client.Recv(context.Background(), "nonexistent"); ok {
			t.Error("expected absent result")
		}
	})

	t.Run("unreachable server returns absent", func(t *testing.T) {
		t.Parallel()

		client := NewClient("127.0.0.1:1")
		if _, ok := client.Recv(context.Background(), "anything"); ok {
			t.Error("expected absent result for unreachable server")
		}
	})
}

func TestClientSend(t *testing.T) {
	t.Parallel()

	t.Run("stores under composite key", func(t *testing.T) {
		t.Parallel()

		store, client := newClientFixture(t)

		client.Send(context.Background(), map[string]int{"b": 2}, "upload")

		snapshot := store.Snapshot()
		payload, ok := snapshot["upload_127.0.0.1"]
		if !ok {
			t.Fatalf("expected composite key entry, got %v", snapshot)
		}
		if !payload.Structured {
			t.Error("expected structured payload")
		}
	})

	t.Run("send to reserved key is rejected silently", func(t *testing.T) {
		t.Parallel()

		store, client := newClientFixture(t)

		client.Send(context.Background(), "x", ReservedKey)

		if len(store.Snapshot()) != 0 {
			t.Error("expected no mutation")
		}
	})
}

func TestClientRecvSnapshot(t *testing.T) {
	t.Parallel()

	_, client := newClientFixture(t)
	client.Send(context.Background(), []byte("result"), "upload")

	snapshot, ok := client.RecvSnapshot(context.Background())
	if !ok {
		t.Fatal("expected snapshot")
	}
	if string(snapshot["upload_127.0.0.1"].Data) != "result" {
		t.Errorf("unexpected snapshot %v", snapshot)
	}
}
