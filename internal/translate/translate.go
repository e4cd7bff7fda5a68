// Package translate turns log records into scope mutations and capture
// calls against a reporter.
package translate

import (
	"github.com/crimson-sun/sentrylog/internal/model"
	"github.com/crimson-sun/sentrylog/internal/reporter"
	"github.com/crimson-sun/sentrylog/internal/severity"
)

// Action is what Translate did with a record.
type Action int

const (
	Suppressed Action = iota
	MessageCaptured
	ExceptionCaptured
)

func (a Action) String() string {
	switch a {
	case Suppressed:
		return "suppressed"
	case MessageCaptured:
		return "message"
	case ExceptionCaptured:
		return "exception"
	default:
		return "unknown"
	}
}

// Notifier receives a record once it has been processed.
type Notifier interface {
	Post(model.Record)
}

// Option configures a Translator.
type Option func(*Translator)

// WithAutoClearScope controls whether the scope is reset before each
// record. Default: true.
func WithAutoClearScope(on bool) Option {
	return func(t *Translator) { t.autoClear = on }
}

// WithLevelKey sets the field that may carry the level indicator inline.
// Default: "level".
func WithLevelKey(key string) Option {
	return func(t *Translator) { t.levelKey = key }
}

// WithNotifier sets where "logged" notifications are posted.
func WithNotifier(n Notifier) Option {
	return func(t *Translator) { t.notifier = n }
}

// Translator is not safe for concurrent use; callers serialize Translate.
type Translator struct {
	levels    severity.Map
	reporter  reporter.Reporter
	scope     *reporter.Scope
	autoClear bool
	levelKey  string
	notifier  Notifier
}

// New creates a Translator reporting to r with the given severity map.
func New(levels severity.Map, r reporter.Reporter, opts ...Option) *Translator {
	t := &Translator{
		levels:    levels,
		reporter:  r,
		scope:     reporter.NewScope(),
		autoClear: true,
		levelKey:  model.DefaultLevelKey,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate reports rec unless silent, then posts the logged notification.
func (t *Translator) Translate(rec model.Record, silent bool) Action {
	action := Suppressed
	if !silent {
		action = t.capture(rec)
	}
	if t.notifier != nil {
		t.notifier.Post(rec)
	}
	return action
}

func (t *Translator) capture(rec model.Record) Action {
	level, _ := t.levels.Resolve(rec.Level)

	if t.autoClear {
		t.scope.Clear()
	}

	tags, hasTags := rec.Tags()
	if hasTags {
		t.scope.SetTags(tags)
	}

	t.scope.SetExtras(t.extras(rec))

	if user, ok := rec.User(); ok {
		t.scope.SetUser(user)
	}

	if level.IsException() {
		hint := reporter.Hint{Level: level}
		if hasTags {
			hint.Tags = tags
		}
		t.reporter.CaptureException(model.ErrorOf(rec), hint, t.scope.Snapshot())
		return ExceptionCaptured
	}

	t.reporter.CaptureMessage(rec.Message(), level, t.scope.Snapshot())
	return MessageCaptured
}

// extras returns every field that is not message, tags, user, the level
// field, name or stack.
func (t *Translator) extras(rec model.Record) map[string]any {
	out := make(map[string]any, len(rec.Fields))
	for k, v := range rec.Fields {
		switch k {
		case model.MessageKey, model.TagsKey, model.UserKey, model.NameKey, model.StackKey, t.levelKey:
			continue
		}
		out[k] = v
	}
	return out
}
