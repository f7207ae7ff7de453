package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// testHost strips the scheme from an httptest server URL.
func testHost(ts *httptest.Server) string {
	return strings.TrimPrefix(ts.URL, "http://")
}

func TestCheckerCheck(t *testing.T) {
	t.Parallel()

	t.Run("success keeps the original triple", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodHead {
				t.Errorf("expected HEAD, got %s", r.Method)
			}
			w.Header().Set("Content-Length", "1234")
		}))
		t.Cleanup(ts.Close)

		target, ok := NewChecker().Check(context.Background(), testHost(ts), "/asset.js", "http")
		if !ok {
			t.Fatal("expected target")
		}
		if target.Host != testHost(ts) || target.Path != "/asset.js" || target.Scheme != "http" {
			t.Errorf("unexpected target %+v", target)
		}
		if target.Size != 1234 {
			t.Errorf("expected size 1234, got %d", target.Size)
		}
	})

	t.Run("missing leading slash is normalized", func(t *testing.T) {
		t.Parallel()

		var gotPath string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
		}))
		t.Cleanup(ts.Close)

		target, ok := NewChecker().Check(context.Background(), testHost(ts), "asset.js", "")
		if !ok {
			t.Fatal("expected target")
		}
		if gotPath != "/asset.js" {
			t.Errorf("expected normalized request path, got %q", gotPath)
		}
		if target.Scheme != "http" {
			t.Errorf("expected default scheme, got %q", target.Scheme)
		}
	})

	t.Run("redirect returns the new triple", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Location", "http://mirror.example.com/moved.js")
			w.WriteHeader(http.StatusMovedPermanently)
		}))
		t.Cleanup(ts.Close)

		target, ok := NewChecker().Check(context.Background(), testHost(ts), "/old.js", "http")
		if !ok {
			t.Fatal("expected redirect target")
		}
		if target.Host != "mirror.example.com" || target.Path != "/moved.js" {
			t.Errorf("expected re-split location, got %+v", target)
		}
	})

	t.Run("relative redirect keeps host and scheme", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Location", "/moved.js")
			w.WriteHeader(http.StatusFound)
		}))
		t.Cleanup(ts.Close)

		target, ok := NewChecker().Check(context.Background(), testHost(ts), "/old.js", "http")
		if !ok {
			t.Fatal("expected redirect target")
		}
		if target.Host != testHost(ts) || target.Path != "/moved.js" || target.Scheme != "http" {
			t.Errorf("expected original host and scheme, got %+v", target)
		}
	})

	t.Run("not found is absent", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.NotFoundHandler())
		t.Cleanup(ts.Close)

		if _, ok := NewChecker().Check(context.Background(), testHost(ts), "/gone.js", "http"); ok {
			t.Error("expected absent result for 404")
		}
	})

	t.Run("server error is absent", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		t.Cleanup(ts.Close)

		if _, ok := NewChecker().Check(context.Background(), testHost(ts), "/broken.js", "http"); ok {
			t.Error("expected absent result for 500")
		}
	})

	t.Run("transport failure is absent", func(t *testing.T) {
		t.Parallel()

		if _, ok := NewChecker().Check(context.Background(), "127.0.0.1:1", "/any.js", "http"); ok {
			t.Error("expected absent result for refused connection")
		}
	})
}
