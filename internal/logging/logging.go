// Package logging builds the host's slog loggers and carries profile and
// element correlation ids through contexts.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

type ctxKey int

const (
	profileKey ctxKey = iota
	elementKey
)

// New creates a logger writing to w. format is "json" or "text"; level is
// one of debug, info, warn, error.
func New(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	switch strings.ToLower(format) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	case "text", "":
		h = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("log format %q: want json or text", format)
	}
	return slog.New(NewCorrelationHandler(h)), nil
}

// WithProfile returns a context carrying the profile name.
func WithProfile(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, profileKey, name)
}

// WithElement returns a context carrying the element id.
func WithElement(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, elementKey, id)
}

// Profile extracts the profile name, "" if absent.
func Profile(ctx context.Context) string {
	v, _ := ctx.Value(profileKey).(string)
	return v
}

// Element extracts the element id, "" if absent.
func Element(ctx context.Context) string {
	v, _ := ctx.Value(elementKey).(string)
	return v
}

// CorrelationHandler adds the profile and element ids found in the record's
// context to every record.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps inner.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if v := Profile(ctx); v != "" {
		r.AddAttrs(slog.String("profile", v))
	}
	if v := Element(ctx); v != "" {
		r.AddAttrs(slog.String("element_id", v))
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
