package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crimson-sun/sentrylog/internal/model"
	"github.com/crimson-sun/sentrylog/internal/source"
	"github.com/crimson-sun/sentrylog/internal/translate"
)

// Sink consumes records. *sentrylog.Transport satisfies it.
type Sink interface {
	Log(model.Record) translate.Action
	Close(ctx context.Context) error
}

// Stats counts what the sink did with each record.
type Stats struct {
	Records    int
	Messages   int
	Exceptions int
	Suppressed int
}

func (s *Stats) add(a translate.Action) {
	s.Records++
	switch a {
	case translate.MessageCaptured:
		s.Messages++
	case translate.ExceptionCaptured:
		s.Exceptions++
	case translate.Suppressed:
		s.Suppressed++
	}
}

// Pipeline connects a source to a sink.
type Pipeline struct {
	source source.Source
	sink   Sink
}

// New creates a Pipeline from the given components.
func New(src source.Source, sink Sink) *Pipeline {
	return &Pipeline{
		source: src,
		sink:   sink,
	}
}

// Stream forwards records until the source is exhausted or ctx is
// cancelled. It returns ctx.Err() on cancellation, the source's read error
// when input ended early, and the counts so far.
func (p *Pipeline) Stream(ctx context.Context, cfg source.Config) (Stats, error) {
	var stats Stats
	ch, err := p.source.Stream(ctx, cfg)
	if err != nil {
		return stats, fmt.Errorf("pipeline stream: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case rec, ok := <-ch:
			if !ok {
				if err := p.source.Err(); err != nil {
					return stats, fmt.Errorf("pipeline source: %w", err)
				}
				return stats, nil
			}
			stats.add(p.sink.Log(rec))
			slog.Debug("record forwarded", "level", rec.Level, "records", stats.Records)
		}
	}
}

// Close flushes and shuts down the sink.
func (p *Pipeline) Close(ctx context.Context) error {
	return p.sink.Close(ctx)
}
