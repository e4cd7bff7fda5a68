package model

import "fmt"

// RecordError is the error synthesized from a record that carries no error
// value of its own.
type RecordError struct {
	Name    string
	Message string
	Stack   string // verbatim, only when the record's stack was a string
}

func (e *RecordError) Error() string {
	return e.Message
}

// FindError returns the first field value, in sorted key order, that
// implements error.
func (r Record) FindError() (error, bool) {
	for _, k := range r.Keys() {
		if err, ok := r.Fields[k].(error); ok && err != nil {
			return err, true
		}
	}
	return nil, false
}

// NewRecordError builds the fallback error from message, name and stack.
// It never fails: a missing or empty name becomes "Error", and a stack that
// is not a string is dropped.
func NewRecordError(r Record) *RecordError {
	e := &RecordError{Name: "Error", Message: r.Message()}
	switch n := r.Fields[NameKey].(type) {
	case nil:
	case string:
		if n != "" {
			e.Name = n
		}
	default:
		e.Name = fmt.Sprint(n)
	}
	if s, ok := r.Fields[StackKey].(string); ok {
		e.Stack = s
	}
	return e
}

// ErrorOf returns the record's own error, or a synthesized one.
func ErrorOf(r Record) error {
	if err, ok := r.FindError(); ok {
		return err
	}
	return NewRecordError(r)
}
