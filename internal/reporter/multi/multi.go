package multi

import (
	"context"
	"errors"

	"github.com/crimson-sun/sentrylog/internal/reporter"
	"github.com/crimson-sun/sentrylog/internal/severity"
)

// Multi fans captures out to several reporters in order. Each reporter
// gets its own scope snapshot so none can alter what the next one sees.
type Multi struct {
	reporters []reporter.Reporter
}

// New creates a Multi that fans out to the given reporters.
func New(reporters ...reporter.Reporter) *Multi {
	return &Multi{reporters: reporters}
}

// CaptureException forwards to every reporter in order.
func (m *Multi) CaptureException(err error, hint reporter.Hint, scope *reporter.Scope) {
	for _, r := range m.reporters {
		r.CaptureException(err, hint, snapshot(scope))
	}
}

// CaptureMessage forwards to every reporter in order.
func (m *Multi) CaptureMessage(message string, level severity.Level, scope *reporter.Scope) {
	for _, r := range m.reporters {
		r.CaptureMessage(message, level, snapshot(scope))
	}
}

// Flush flushes every wrapped reporter, collecting errors.
func (m *Multi) Flush(ctx context.Context) error {
	var errs []error
	for _, r := range m.reporters {
		if err := r.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func snapshot(s *reporter.Scope) *reporter.Scope {
	if s == nil {
		return nil
	}
	return s.Snapshot()
}
