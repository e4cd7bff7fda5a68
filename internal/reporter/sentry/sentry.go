package sentry

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"
	"golang.org/x/text/unicode/norm"

	"github.com/crimson-sun/sentrylog/internal/model"
	"github.com/crimson-sun/sentrylog/internal/reporter"
	"github.com/crimson-sun/sentrylog/internal/severity"
)

const (
	defaultFlushTimeout = 5 * time.Second
	maxTagValueRunes    = 200
)

// ErrFlushTimeout is returned when Sentry could not drain its queue in time.
var ErrFlushTimeout = errors.New("sentry: flush timed out")

// Option configures a Reporter.
type Option func(*Reporter)

// WithFlushTimeout sets how long Flush waits when the context carries no
// deadline. Default: 5s.
func WithFlushTimeout(d time.Duration) Option {
	return func(r *Reporter) { r.flushTimeout = d }
}

// Reporter sends captures through a sentry-go Hub. Each capture runs in its
// own pushed scope so nothing leaks into the hub's base scope.
type Reporter struct {
	hub          *sentry.Hub
	flushTimeout time.Duration
}

// New creates a Reporter on the given hub.
func New(hub *sentry.Hub, opts ...Option) *Reporter {
	r := &Reporter{hub: hub, flushTimeout: defaultFlushTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Hub returns the underlying hub.
func (r *Reporter) Hub() *sentry.Hub {
	return r.hub
}

// CaptureException sends err as an exception event with the scope and hint
// applied to a pushed scope.
func (r *Reporter) CaptureException(err error, hint reporter.Hint, scope *reporter.Scope) {
	r.hub.WithScope(func(s *sentry.Scope) {
		apply(s, scope)
		if len(hint.Tags) > 0 {
			s.SetTags(Tags(hint.Tags))
		}
		if hint.Level != severity.Undefined {
			s.SetLevel(sentry.Level(hint.Level))
		}
		var re *model.RecordError
		if errors.As(err, &re) {
			s.AddEventProcessor(describeRecordError(re))
		}
		r.hub.CaptureException(err)
	})
}

// CaptureMessage sends a message event at level. The undefined level leaves
// Sentry's default in place.
func (r *Reporter) CaptureMessage(message string, level severity.Level, scope *reporter.Scope) {
	r.hub.WithScope(func(s *sentry.Scope) {
		apply(s, scope)
		if level != severity.Undefined {
			s.SetLevel(sentry.Level(level))
		}
		r.hub.CaptureMessage(message)
	})
}

// Flush waits for queued events. The context deadline, when present,
// replaces the configured flush timeout.
func (r *Reporter) Flush(ctx context.Context) error {
	timeout := r.flushTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}

	done := make(chan bool, 1)
	go func() { done <- r.hub.Flush(timeout) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case ok := <-done:
		if !ok {
			return ErrFlushTimeout
		}
		return nil
	}
}

func apply(s *sentry.Scope, scope *reporter.Scope) {
	if scope == nil {
		return
	}
	if len(scope.Tags) > 0 {
		s.SetTags(Tags(scope.Tags))
	}
	if scope.Extras != nil {
		s.SetExtras(scope.Extras)
	}
	if scope.User != nil {
		s.SetUser(User(scope.User))
	}
}

// describeRecordError names the exception after the record's error name and
// keeps the record's stack text alongside it.
func describeRecordError(re *model.RecordError) sentry.EventProcessor {
	return func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
		if len(event.Exception) == 0 {
			return event
		}
		exc := &event.Exception[len(event.Exception)-1]
		exc.Type = re.Name
		if re.Stack != "" {
			if exc.Mechanism == nil {
				exc.Mechanism = &sentry.Mechanism{Type: "generic"}
			}
			if exc.Mechanism.Data == nil {
				exc.Mechanism.Data = map[string]interface{}{}
			}
			exc.Mechanism.Data["stack"] = re.Stack
		}
		return event
	}
}

// Tags stringifies tag values. Sentry tag values are NFC text capped at 200
// characters.
func Tags(tags map[string]any) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = tagValue(v)
	}
	return out
}

func tagValue(v any) string {
	s := norm.NFC.String(stringOf(v))
	if utf8.RuneCountInString(s) <= maxTagValueRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxTagValueRunes])
}

// User maps a user context onto sentry.User. Unknown keys land in Data.
func User(m map[string]any) sentry.User {
	var u sentry.User
	for k, v := range m {
		s := stringOf(v)
		switch k {
		case "id":
			u.ID = s
		case "email":
			u.Email = s
		case "username":
			u.Username = s
		case "ip_address", "ipAddress":
			u.IPAddress = s
		case "name":
			u.Name = s
		default:
			if u.Data == nil {
				u.Data = make(map[string]string)
			}
			u.Data[k] = s
		}
	}
	return u
}

func stringOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
