// Package correlation tags units of background work with a short random ID
// that the logging handler injects into every record written under that
// context. Scheduler ticks, debounced reconciles, poll closure sweeps, and
// gateway events each mint one ID, so the log lines of a single pass can be
// pulled together afterwards.
package correlation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// idBytes is the entropy per ID. Six bytes keeps the hex form short in log
// lines while making collisions between concurrent passes unrealistic.
const idBytes = 6

type ctxKey struct{}

// NewID returns a fresh 12-character hex ID.
func NewID() string {
	buf := make([]byte, idBytes)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// Tag returns ctx carrying a freshly minted ID. Background loops call it
// once per unit of work.
func Tag(ctx context.Context) context.Context {
	return WithID(ctx, NewID())
}

// WithID returns ctx carrying the given ID.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// ID extracts the ID from ctx, returning ("", false) if absent.
func ID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Handler decorates records with the context's correlation_id attribute and
// delegates everything else to the wrapped handler.
type Handler struct {
	next slog.Handler
}

func NewHandler(next slog.Handler) *Handler {
	return &Handler{next: next}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, rec slog.Record) error {
	if id, ok := ID(ctx); ok {
		rec.AddAttrs(slog.String("correlation_id", id))
	}
	if err := h.next.Handle(ctx, rec); err != nil {
		return fmt.Errorf("failed to write log record: %w", err)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{next: h.next.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name)}
}
