package log

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// RoleKey is the attribute key that carries the process role.
const RoleKey = "role"

// Process roles. The controller and the isolated exchange server write
// to the same terminal, so every record is tagged with the process it
// came from.
const (
	RoleController = "controller"
	RoleWorker     = "worker"
)

// sensitiveKeys contains attribute keys whose values are always masked.
// The exchange protocol carries arbitrary experiment payloads and the
// runner carries SSH material, either of which may end up in logs.
var sensitiveKeys = map[string]bool{
	"password":      true,
	"passwd":        true,
	"secret":        true,
	"token":         true,
	"authorization": true,
	"private_key":   true,
	"privatekey":    true,
	"ssh_key":       true,
	"smtp_password": true,
}

// Handler wraps an slog.Handler to tag every record with the process
// role and mask credential-like attribute values.
//
// A handler wrapper integrates with standard slog APIs and works with
// any underlying handler (text, JSON, etc.), so callers keep using
// plain *slog.Logger throughout the codebase.
type Handler struct {
	// handler is the underlying slog handler that receives tagged records.
	handler slog.Handler

	// role is added to every record as the "role" attribute.
	role string
}

// NewHandler creates a Handler wrapping the given handler.
// If handler is nil, slog.Default().Handler() is used.
func NewHandler(handler slog.Handler, role string) *Handler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &Handler{handler: handler, role: role}
}

// Enabled reports whether the handler handles records at the given level.
// It delegates to the underlying handler.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle tags the record with the process role, masks sensitive
// attributes, and passes it to the underlying handler.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	tagged := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	tagged.AddAttrs(slog.String(RoleKey, h.role))

	r.Attrs(func(a slog.Attr) bool {
		tagged.AddAttrs(maskAttr(a))
		return true
	})

	return h.handler.Handle(ctx, tagged)
}

// WithAttrs returns a new handler with the given attributes added.
// Attributes are masked before being added.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = maskAttr(a)
	}
	return &Handler{handler: h.handler.WithAttrs(masked), role: h.role}
}

// WithGroup returns a new handler with the given group name.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{handler: h.handler.WithGroup(name), role: h.role}
}

// maskAttr masks a single attribute, recursively handling groups.
func maskAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		masked := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			masked[i] = maskAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(masked...)}
	}

	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, MaskValue)
	}
	return a
}

// NewLogger creates a *slog.Logger that tags records with the given
// process role.
//
// Parameters:
//   - w: destination for log output (typically os.Stderr)
//   - role: RoleController or RoleWorker
//   - verbose: if true, sets log level to Debug; otherwise Info
func NewLogger(w io.Writer, role string, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	textHandler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewHandler(textHandler, role))
}
