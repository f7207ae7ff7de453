package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestHandlerTagsRole(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewLogger(&buf, RoleWorker, false)

	logger.Info("listening", "port", 50007)

	out := buf.String()
	if !strings.Contains(out, "role=worker") {
		t.Errorf("expected role attribute in output, got %q", out)
	}
	if !strings.Contains(out, "port=50007") {
		t.Errorf("expected port attribute in output, got %q", out)
	}
}

func TestHandlerMasksSensitiveKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  string
		want bool
	}{
		{name: "password is masked", key: "password", want: true},
		{name: "ssh key is masked", key: "ssh_key", want: true},
		{name: "mixed case is masked", key: "Authorization", want: true},
		{name: "plain key is kept", key: "path", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewLogger(&buf, RoleController, true)

			logger.Info("test", tt.key, "hunter2")

			masked := strings.Contains(buf.String(), MaskValue)
			if masked != tt.want {
				t.Errorf("key %q: masked=%v, want %v (output %q)", tt.key, masked, tt.want, buf.String())
			}
		})
	}
}

func TestHandlerMasksGroupedAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewLogger(&buf, RoleController, true)

	logger.Info("test", slog.Group("smtp", slog.String("password", "hunter2"), slog.String("addr", "smtp.example.com")))

	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Errorf("expected grouped password to be masked, got %q", out)
	}
	if !strings.Contains(out, "smtp.example.com") {
		t.Errorf("expected non-sensitive group member to survive, got %q", out)
	}
}

func TestHandlerVerboseLevels(t *testing.T) {
	t.Parallel()

	t.Run("debug suppressed by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewLogger(&buf, RoleController, false)
		logger.Debug("hidden")

		if buf.Len() != 0 {
			t.Errorf("expected no debug output, got %q", buf.String())
		}
	})

	t.Run("debug emitted when verbose", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewLogger(&buf, RoleController, true)
		logger.Debug("visible")

		if buf.Len() == 0 {
			t.Error("expected debug output in verbose mode")
		}
	})
}
