// Package severity maps host logging level names onto the remote
// error tracker's severity vocabulary.
package severity

// Level is a remote severity. The zero value is the undefined severity.
type Level string

const (
	Undefined Level = ""
	Debug     Level = "debug"
	Log       Level = "log"
	Info      Level = "info"
	Warning   Level = "warning"
	Error     Level = "error"
	Fatal     Level = "fatal"
)

// Valid reports whether l belongs to the closed remote vocabulary.
func (l Level) Valid() bool {
	switch l {
	case Debug, Log, Info, Warning, Error, Fatal:
		return true
	}
	return false
}

// IsException reports whether records at this level are captured as exceptions.
func (l Level) IsException() bool {
	return l == Error || l == Fatal
}

// Map resolves host level names. Keys are case-sensitive.
type Map map[string]Level

// Defaults returns a fresh copy of the default mapping.
func Defaults() Map {
	return Map{
		"silly":   Debug,
		"verbose": Debug,
		"info":    Info,
		"debug":   Debug,
		"warn":    Warning,
		"error":   Error,
	}
}

// Build starts from the defaults and overlays each custom map in order,
// later entries winning. Values are taken as given.
func Build(custom ...map[string]Level) Map {
	m := Defaults()
	for _, c := range custom {
		for k, v := range c {
			m[k] = v
		}
	}
	return m
}

// Resolve returns the remote severity for a host level name. Unknown names
// yield Undefined and false; callers forward Undefined as-is.
func (m Map) Resolve(name string) (Level, bool) {
	l, ok := m[name]
	return l, ok
}
