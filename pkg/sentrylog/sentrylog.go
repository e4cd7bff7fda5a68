package sentrylog

import (
	"context"
	"fmt"
	"sync"

	"github.com/getsentry/sentry-go"

	"github.com/crimson-sun/sentrylog/internal/model"
	"github.com/crimson-sun/sentrylog/internal/notify"
	"github.com/crimson-sun/sentrylog/internal/reporter"
	sentryreporter "github.com/crimson-sun/sentrylog/internal/reporter/sentry"
	"github.com/crimson-sun/sentrylog/internal/severity"
	"github.com/crimson-sun/sentrylog/internal/translate"
)

type (
	// Record is one structured log record. Level is the host framework's
	// level name; Fields carries message, tags, user and extras.
	Record = model.Record
	// Fields is a record's payload.
	Fields = model.Fields
	// RecordError is the error built for records that carry none.
	RecordError = model.RecordError
	// Level is a Sentry severity.
	Level = severity.Level
	// Action reports what Log did with a record.
	Action = translate.Action
	// Reporter receives captures. The default sends them to Sentry.
	Reporter = reporter.Reporter
	// Scope is the tags, extras and user context attached to a capture.
	Scope = reporter.Scope
	// Hint is the per-call context of an exception capture.
	Hint = reporter.Hint
)

const (
	LevelUndefined = severity.Undefined
	LevelDebug     = severity.Debug
	LevelLog       = severity.Log
	LevelInfo      = severity.Info
	LevelWarning   = severity.Warning
	LevelError     = severity.Error
	LevelFatal     = severity.Fatal
)

const (
	Suppressed        = translate.Suppressed
	MessageCaptured   = translate.MessageCaptured
	ExceptionCaptured = translate.ExceptionCaptured
)

// Field names with special meaning inside Record.Fields.
const (
	MessageKey = model.MessageKey
	TagsKey    = model.TagsKey
	UserKey    = model.UserKey
	NameKey    = model.NameKey
	StackKey   = model.StackKey
)

// DefaultLevels returns the built-in level mapping.
func DefaultLevels() map[string]Level {
	return severity.Defaults()
}

// Transport forwards log records to Sentry. Safe for concurrent use:
// records are translated one at a time.
type Transport struct {
	mu         sync.Mutex
	translator *translate.Translator
	levels     severity.Map
	reporter   Reporter
	hub        *sentry.Hub
	notifier   *notify.Dispatcher
	silent     bool

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// New creates a Transport. Unless WithSkipInit, WithHub or WithReporter is
// given, it initializes the global Sentry client.
func New(opts ...Option) (*Transport, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	hub := o.hub
	switch {
	case hub != nil:
	case o.reporter != nil:
	case o.skipInit:
		hub = sentry.CurrentHub()
	default:
		if err := sentry.Init(resolveClientOptions(o.clientOptions)); err != nil {
			return nil, fmt.Errorf("sentrylog: %w", err)
		}
		hub = sentry.CurrentHub()
	}

	rep := o.reporter
	if rep == nil {
		rep = sentryreporter.New(hub, sentryreporter.WithFlushTimeout(resolveFlushTimeout(o.flushTimeout)))
	}

	levels := severity.Build(o.levels...)
	n := notify.New()
	t := &Transport{
		translator: translate.New(levels, rep,
			translate.WithAutoClearScope(o.autoClearScope),
			translate.WithLevelKey(o.levelKey),
			translate.WithNotifier(n),
		),
		levels:   levels,
		reporter: rep,
		hub:      hub,
		notifier: n,
		silent:   o.silent,
		done:     make(chan struct{}),
	}
	return t, nil
}

// Log reports one record and returns once the capture call has been made.
// Listeners registered with OnLogged run afterwards, never inside Log.
func (t *Transport) Log(rec Record) Action {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.translator.Translate(rec, t.silent)
}

// OnLogged registers f to be called for every record Log processes,
// including suppressed ones.
func (t *Transport) OnLogged(f func(Record)) {
	t.notifier.Subscribe(f)
}

// Hub returns the Sentry hub captures go through. It is nil when a custom
// Reporter replaced Sentry.
func (t *Transport) Hub() *sentry.Hub {
	return t.hub
}

// Levels returns a copy of the effective level mapping.
func (t *Transport) Levels() map[string]Level {
	out := make(map[string]Level, len(t.levels))
	for k, v := range t.levels {
		out[k] = v
	}
	return out
}

// Done is closed once Close has flushed the reporter.
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

// Close flushes pending reports, then delivers outstanding logged
// notifications and closes Done. The flush is bounded only by ctx and the
// flush timeout. Later calls return the first result.
func (t *Transport) Close(ctx context.Context) error {
	t.closeOnce.Do(func() {
		if err := t.reporter.Flush(ctx); err != nil {
			t.closeErr = fmt.Errorf("sentrylog: flush: %w", err)
		}
		t.notifier.Close()
		close(t.done)
	})
	return t.closeErr
}
