package probe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestProberLatency(t *testing.T) {
	t.Parallel()

	t.Run("success records size and timings", func(t *testing.T) {
		t.Parallel()

		body := []byte("0123456789")
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(body) //nolint:errcheck // Test handler
		}))
		t.Cleanup(ts.Close)

		target := Target{Host: testHost(ts), Path: "/file", Scheme: "http"}
		result, ok := NewProber().Latency(context.Background(), target, http.MethodGet)
		if !ok {
			t.Fatal("expected result")
		}
		if result.Size != int64(len(body)) {
			t.Errorf("expected size %d, got %d", len(body), result.Size)
		}
		if result.ResponseTime <= 0 {
			t.Errorf("expected positive response time, got %v", result.ResponseTime)
		}
		if result.Overhead < 0 {
			t.Errorf("expected non-negative overhead, got %v", result.Overhead)
		}
	})

	t.Run("client error is absent", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.NotFoundHandler())
		t.Cleanup(ts.Close)

		target := Target{Host: testHost(ts), Path: "/gone", Scheme: "http"}
		if _, ok := NewProber().Latency(context.Background(), target, http.MethodGet); ok {
			t.Error("expected absent result for 404")
		}
	})

	t.Run("timeout is absent", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
		}))
		t.Cleanup(ts.Close)

		prober := NewProber(WithProbeTimeout(50 * time.Millisecond))
		target := Target{Host: testHost(ts), Path: "/slow", Scheme: "http"}
		if _, ok := prober.Latency(context.Background(), target, http.MethodGet); ok {
			t.Error("expected absent result on timeout")
		}
	})

	t.Run("unreachable host is absent", func(t *testing.T) {
		t.Parallel()

		target := Target{Host: "127.0.0.1:1", Path: "/any", Scheme: "http"}
		if _, ok := NewProber().Latency(context.Background(), target, http.MethodGet); ok {
			t.Error("expected absent result for refused connection")
		}
	})
}

func TestProberLatencyAll(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/dead" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, "payload")
	}))
	t.Cleanup(ts.Close)

	targets := make([]Target, 0, 10)
	for i := 0; i < 9; i++ {
		targets = append(targets, Target{Host: testHost(ts), Path: fmt.Sprintf("/file-%d", i), Scheme: "http"})
	}
	targets = append(targets, Target{Host: testHost(ts), Path: "/dead", Scheme: "http"})

	results := NewProber().LatencyAll(context.Background(), targets, 4)
	if len(results) != 9 { // the dead target is dropped
		t.Fatalf("expected 9 results, got %d", len(results))
	}

	seen := make(map[string]bool, len(results))
	for _, result := range results {
		if seen[result.Path] {
			t.Errorf("target %q measured twice", result.Path)
		}
		seen[result.Path] = true
	}
}
