package model

import (
	"fmt"
	"sort"
)

// Well-known field names inside Record.Fields.
const (
	MessageKey = "message"
	TagsKey    = "tags"
	UserKey    = "user"
	NameKey    = "name"
	StackKey   = "stack"

	// DefaultLevelKey is where hosts that carry the level inline put it.
	DefaultLevelKey = "level"
)

// Fields is the free-form payload of a log record.
type Fields map[string]any

// Record is a single structured log record as handed over by the host
// logging framework. Level is the host's own severity name and travels
// out-of-band from Fields.
type Record struct {
	Level  string
	Fields Fields
}

// Message returns the record's primary text. A missing message yields "".
func (r Record) Message() string {
	v, ok := r.Fields[MessageKey]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Tags returns the tags field when it is a non-nil mapping.
func (r Record) Tags() (map[string]any, bool) {
	return AsMap(r.Fields[TagsKey])
}

// User returns the user field when it is a non-nil mapping.
func (r Record) User() (map[string]any, bool) {
	return AsMap(r.Fields[UserKey])
}

// Keys returns the field names in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AsMap normalizes the mapping shapes hosts produce into map[string]any.
// Anything that is not a non-nil mapping reports false.
func AsMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		if m == nil {
			return nil, false
		}
		return m, true
	case Fields:
		if m == nil {
			return nil, false
		}
		return map[string]any(m), true
	case map[string]string:
		if m == nil {
			return nil, false
		}
		out := make(map[string]any, len(m))
		for k, s := range m {
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}
