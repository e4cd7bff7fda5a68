package source

import (
	"context"
	"fmt"
	"sort"

	"github.com/crimson-sun/sentrylog/internal/model"
)

// Source produces log records for the forwarding pipeline.
type Source interface {
	// Stream sends records as they are read. The channel closes when the
	// input is exhausted, a read fails, or ctx is cancelled.
	Stream(ctx context.Context, cfg Config) (<-chan model.Record, error)

	// Err returns the read error that ended the last stream, if any. It is
	// valid once the stream's channel has been closed.
	Err() error
}

// Config holds input settings shared by all sources.
type Config struct {
	Provider string
	Path     string // "-" or empty reads stdin
	LevelKey string // field carrying the host level name
	Extra    map[string]string
}

// Constructor is a function that creates a new Source instance.
type Constructor func() Source

var registry = map[string]Constructor{}

// Register adds a source constructor under the given provider name.
func Register(name string, ctor Constructor) {
	registry[name] = ctor
}

// Get returns the source constructor for the given provider name.
func Get(name string) (Constructor, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown source provider: %s", name)
	}
	return ctor, nil
}

// Providers returns the names of all registered source providers, sorted.
func Providers() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
