package reporter

import (
	"context"

	"github.com/crimson-sun/sentrylog/internal/severity"
)

// Reporter is the remote error tracker surface the translator drives.
// Every capture receives the scope snapshot it must attach.
type Reporter interface {
	CaptureException(err error, hint Hint, scope *Scope)
	CaptureMessage(message string, level severity.Level, scope *Scope)
	Flush(ctx context.Context) error
}

// Hint is the per-call context sent alongside an exception capture.
type Hint struct {
	Tags  map[string]any
	Level severity.Level
}

// Scope accumulates tags, extras and user context for the next capture.
type Scope struct {
	Tags   map[string]any
	Extras map[string]any
	User   map[string]any
}

// NewScope returns an empty scope.
func NewScope() *Scope {
	return &Scope{}
}

// Clear drops all accumulated context.
func (s *Scope) Clear() {
	s.Tags = nil
	s.Extras = nil
	s.User = nil
}

// SetTags merges tags into the scope.
func (s *Scope) SetTags(tags map[string]any) {
	s.Tags = merge(s.Tags, tags)
}

// SetExtras merges extras into the scope.
func (s *Scope) SetExtras(extras map[string]any) {
	s.Extras = merge(s.Extras, extras)
	if s.Extras == nil {
		s.Extras = map[string]any{}
	}
}

// SetUser replaces the user context.
func (s *Scope) SetUser(user map[string]any) {
	s.User = clone(user)
}

// Snapshot returns a copy that later mutations of s do not affect.
func (s *Scope) Snapshot() *Scope {
	return &Scope{
		Tags:   clone(s.Tags),
		Extras: clone(s.Extras),
		User:   clone(s.User),
	}
}

func merge(dst, src map[string]any) map[string]any {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func clone(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
