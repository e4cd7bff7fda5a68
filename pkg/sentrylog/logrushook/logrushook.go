// Package logrushook forwards logrus entries to a sentrylog Transport.
//
//	t, _ := sentrylog.New(sentrylog.WithLevels(logrushook.Levels()))
//	logrus.AddHook(logrushook.New(t))
package logrushook

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/crimson-sun/sentrylog/pkg/sentrylog"
)

// Transport is the part of *sentrylog.Transport the hook uses.
type Transport interface {
	Log(sentrylog.Record) sentrylog.Action
	Close(context.Context) error
}

// Hook is a logrus.Hook.
//
// logrus names its levels "trace", "debug", "info", "warning", "error",
// "fatal" and "panic". The default mapping lacks trace, warning, fatal and
// panic, so records at those levels are captured as messages with no
// severity unless the Transport was built with sentrylog.WithLevels(Levels()).
type Hook struct {
	t            Transport
	levels       []logrus.Level
	flushTimeout time.Duration
}

// Option configures a Hook.
type Option func(*Hook)

// WithLevels restricts the logrus levels the hook fires for. Default: all.
func WithLevels(levels ...logrus.Level) Option {
	return func(h *Hook) { h.levels = levels }
}

// WithFatalFlushTimeout bounds the flush done before logrus exits on a
// fatal entry. Default: 2s.
func WithFatalFlushTimeout(d time.Duration) Option {
	return func(h *Hook) { h.flushTimeout = d }
}

// New creates a Hook reporting through t. Build t with
// sentrylog.WithLevels(Levels()) so every logrus level is mapped.
func New(t Transport, opts ...Option) *Hook {
	h := &Hook{
		t:            t,
		levels:       logrus.AllLevels,
		flushTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Levels implements logrus.Hook.
func (h *Hook) Levels() []logrus.Level {
	return h.levels
}

// Fire implements logrus.Hook. Entry data becomes the record's fields; an
// error under logrus.ErrorKey is captured as the exception. Fatal entries
// close the transport, since logrus exits right after its hooks run.
func (h *Hook) Fire(e *logrus.Entry) error {
	fields := make(sentrylog.Fields, len(e.Data)+1)
	for k, v := range e.Data {
		fields[k] = plain(v)
	}
	fields[sentrylog.MessageKey] = e.Message

	h.t.Log(sentrylog.Record{Level: e.Level.String(), Fields: fields})

	if e.Level == logrus.FatalLevel {
		ctx, cancel := context.WithTimeout(context.Background(), h.flushTimeout)
		defer cancel()
		return h.t.Close(ctx)
	}
	return nil
}

// plain turns logrus.Fields, at any depth, into map[string]any so nested
// tags and user mappings are recognised.
func plain(v any) any {
	f, ok := v.(logrus.Fields)
	if !ok {
		return v
	}
	if f == nil {
		return nil
	}
	m := make(map[string]any, len(f))
	for k, sub := range f {
		m[k] = plain(sub)
	}
	return m
}

// Levels returns overlays for logrus level names missing from the default
// mapping. Pass it to sentrylog.WithLevels.
func Levels() map[string]sentrylog.Level {
	return map[string]sentrylog.Level{
		logrus.TraceLevel.String(): sentrylog.LevelDebug,
		logrus.WarnLevel.String():  sentrylog.LevelWarning,
		logrus.FatalLevel.String(): sentrylog.LevelFatal,
		logrus.PanicLevel.String(): sentrylog.LevelFatal,
	}
}
