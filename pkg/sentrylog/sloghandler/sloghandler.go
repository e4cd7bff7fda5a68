// Package sloghandler is a log/slog Handler that forwards records to a
// sentrylog Transport.
//
// Attributes become record fields. A group named "tags" or "user" becomes
// the tags or user mapping:
//
//	logger := slog.New(sloghandler.New(t))
//	logger.Error("charge failed",
//	    slog.Any("error", err),
//	    slog.Group("tags", "service", "billing"),
//	)
package sloghandler

import (
	"context"
	"log/slog"
	"slices"

	"github.com/crimson-sun/sentrylog/pkg/sentrylog"
)

// Transport is the part of *sentrylog.Transport the handler uses.
type Transport interface {
	Log(sentrylog.Record) sentrylog.Action
}

// Handler implements slog.Handler.
type Handler struct {
	t         Transport
	level     slog.Leveler
	levelName func(slog.Level) string
	fields    map[string]any
	groups    []string
}

// Option configures a Handler.
type Option func(*Handler)

// WithLevel sets the minimum level handled. Default: slog.LevelInfo.
func WithLevel(l slog.Leveler) Option {
	return func(h *Handler) { h.level = l }
}

// WithLevelNames sets how slog levels are named for the level mapping.
// The default names each level after the nearest standard level at or
// below it: "debug", "info", "warn" or "error".
func WithLevelNames(f func(slog.Level) string) Option {
	return func(h *Handler) { h.levelName = f }
}

// New creates a Handler reporting through t.
func New(t Transport, opts ...Option) *Handler {
	h := &Handler{
		t:         t,
		level:     slog.LevelInfo,
		levelName: LevelName,
		fields:    map[string]any{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// LevelName is the default level naming.
func LevelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "error"
	case l >= slog.LevelWarn:
		return "warn"
	case l >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

// Enabled reports whether l is at or above the handler's minimum level.
func (h *Handler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

// Handle turns r into a record and logs it. It never returns an error.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	fields := cloneMap(h.fields)
	if r.NumAttrs() > 0 {
		target := walk(fields, h.groups)
		r.Attrs(func(a slog.Attr) bool {
			addAttr(target, a)
			return true
		})
	}
	fields[sentrylog.MessageKey] = r.Message

	h.t.Log(sentrylog.Record{Level: h.levelName(r.Level), Fields: fields})
	return nil
}

// WithAttrs returns a handler that adds attrs under the current group.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	h2.fields = cloneMap(h.fields)
	target := walk(h2.fields, h2.groups)
	for _, a := range attrs {
		addAttr(target, a)
	}
	return &h2
}

// WithGroup returns a handler that nests later attributes under name.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups = append(slices.Clip(h.groups), name)
	return &h2
}

// walk returns the map at path below m, creating missing levels.
func walk(m map[string]any, path []string) map[string]any {
	for _, g := range path {
		next, ok := m[g].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[g] = next
		}
		m = next
	}
	return m
}

func addAttr(m map[string]any, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		if len(attrs) == 0 {
			return
		}
		if a.Key != "" {
			m = walk(m, []string{a.Key})
		}
		for _, ga := range attrs {
			addAttr(m, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	m[a.Key] = a.Value.Any()
}

// cloneMap copies m along with every nested group map.
func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			v = cloneMap(sub)
		}
		out[k] = v
	}
	return out
}

var _ slog.Handler = (*Handler)(nil)
