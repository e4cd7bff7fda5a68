package stdout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/segmentio/encoding/json"

	"github.com/crimson-sun/sentrylog/internal/model"
	"github.com/crimson-sun/sentrylog/internal/reporter"
	"github.com/crimson-sun/sentrylog/internal/severity"
)

// Capture is one reported event as written by the Reporter.
type Capture struct {
	Kind     string         `json:"kind"` // "message" or "exception"
	Message  string         `json:"message"`
	Level    string         `json:"level,omitempty"`
	Error    *ErrorInfo     `json:"error,omitempty"`
	HintTags map[string]any `json:"hint_tags,omitempty"`
	Tags     map[string]any `json:"tags,omitempty"`
	Extras   map[string]any `json:"extras,omitempty"`
	User     map[string]any `json:"user,omitempty"`
}

// ErrorInfo describes the captured error.
type ErrorInfo struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Stack string `json:"stack,omitempty"`
}

// Reporter writes captures as JSON lines instead of sending them anywhere.
// Used for dry runs.
type Reporter struct {
	mu     sync.Mutex
	w      io.Writer
	pretty bool
	err    error
}

// New creates a Reporter writing to w, optionally pretty-printed.
func New(w io.Writer, pretty bool) *Reporter {
	return &Reporter{w: w, pretty: pretty}
}

// CaptureException writes an exception capture.
func (r *Reporter) CaptureException(err error, hint reporter.Hint, scope *reporter.Scope) {
	c := Capture{
		Kind:     "exception",
		Message:  err.Error(),
		Level:    string(hint.Level),
		Error:    describe(err),
		HintTags: hint.Tags,
	}
	r.write(c, scope)
}

// CaptureMessage writes a message capture.
func (r *Reporter) CaptureMessage(message string, level severity.Level, scope *reporter.Scope) {
	r.write(Capture{Kind: "message", Message: message, Level: string(level)}, scope)
}

// Flush reports the first write failure since the last Flush.
func (r *Reporter) Flush(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.err
	r.err = nil
	return err
}

func (r *Reporter) write(c Capture, scope *reporter.Scope) {
	if scope != nil {
		c.Tags = scope.Tags
		c.Extras = scope.Extras
		c.User = scope.User
	}

	data, err := r.marshal(c)
	if err != nil {
		r.fail(err)
		return
	}

	r.mu.Lock()
	_, err = r.w.Write(append(data, '\n'))
	r.mu.Unlock()
	if err != nil {
		r.fail(err)
	}
}

func (r *Reporter) marshal(c Capture) ([]byte, error) {
	if r.pretty {
		return json.MarshalIndent(c, "", "  ")
	}
	return json.Marshal(c)
}

// fail logs err and keeps the first one for Flush.
func (r *Reporter) fail(err error) {
	slog.Warn("stdout reporter write failed", "error", err)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = fmt.Errorf("stdout reporter: %w", err)
	}
}

func describe(err error) *ErrorInfo {
	var re *model.RecordError
	if errors.As(err, &re) {
		return &ErrorInfo{Type: re.Name, Value: re.Message, Stack: re.Stack}
	}
	return &ErrorInfo{Type: fmt.Sprintf("%T", err), Value: err.Error()}
}
