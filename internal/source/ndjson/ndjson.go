// Package ndjson reads newline-delimited JSON log records from a file or
// stdin. Gzip-compressed input is detected from its magic bytes.
package ndjson

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/segmentio/encoding/json"

	"github.com/crimson-sun/sentrylog/internal/model"
	"github.com/crimson-sun/sentrylog/internal/source"
)

const maxLineSize = 1 << 20

func init() {
	source.Register("ndjson", func() source.Source {
		return New(os.Stdin)
	})
}

// Source implements source.Source for NDJSON input.
//
// Recognised Extra keys: "gzip" ("true" forces decompression) and
// "use_number" ("true" keeps numbers as json.Number).
type Source struct {
	stdin io.Reader

	mu  sync.Mutex
	err error
}

// New creates a Source that reads stdin from r when the path is "-" or empty.
func New(stdin io.Reader) *Source {
	return &Source{stdin: stdin}
}

// Stream reads records until EOF, a read error or ctx cancellation.
// Blank, malformed and oversized lines are skipped with a warning.
func (s *Source) Stream(ctx context.Context, cfg source.Config) (<-chan model.Record, error) {
	in, closers, err := s.open(cfg)
	if err != nil {
		return nil, err
	}

	levelKey := cfg.LevelKey
	if levelKey == "" {
		levelKey = model.DefaultLevelKey
	}
	useNumber := cfg.Extra["use_number"] == "true"

	s.setErr(nil)
	ch := make(chan model.Record, 64)
	go func() {
		defer close(ch)
		defer closeAll(closers)

		br := bufio.NewReaderSize(in, 64*1024)
		var buf []byte
		for line := 1; ; line++ {
			var (
				tooLong bool
				readErr error
			)
			buf, tooLong, readErr = readLine(br, buf)
			b := bytes.TrimSpace(buf)
			switch {
			case tooLong:
				slog.Warn("skipping oversized line", "source", "ndjson", "line", line, "limit", maxLineSize)
			case len(b) > 0:
				rec, err := Decode(b, levelKey, useNumber)
				if err != nil {
					slog.Warn("skipping malformed line", "source", "ndjson", "line", line, "error", err)
					break
				}
				select {
				case ch <- rec:
				case <-ctx.Done():
					return
				}
			}

			if readErr == io.EOF {
				return
			}
			if readErr != nil {
				slog.Error("read failed", "source", "ndjson", "line", line, "error", readErr)
				s.setErr(fmt.Errorf("ndjson source: line %d: %w", line, readErr))
				return
			}
		}
	}()

	return ch, nil
}

// Err returns the read error that ended the last stream, if any.
func (s *Source) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Source) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// readLine reads one line into buf[:0]. A line longer than maxLineSize is
// consumed up to its newline and reported as tooLong with an empty buf.
func readLine(br *bufio.Reader, buf []byte) ([]byte, bool, error) {
	buf = buf[:0]
	tooLong := false
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > maxLineSize {
				tooLong = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return buf, tooLong, err
	}
}

func (s *Source) open(cfg source.Config) (io.Reader, []io.Closer, error) {
	var (
		raw     io.Reader
		closers []io.Closer
	)
	if cfg.Path == "" || cfg.Path == "-" {
		raw = s.stdin
	} else {
		f, err := os.Open(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("ndjson source: %w", err)
		}
		raw = f
		closers = append(closers, f)
	}

	br := bufio.NewReader(raw)
	if cfg.Extra["gzip"] == "true" || isGzip(br) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			closeAll(closers)
			return nil, nil, fmt.Errorf("ndjson source: %w", err)
		}
		return gz, append(closers, gz), nil
	}
	return br, closers, nil
}

func isGzip(br *bufio.Reader) bool {
	magic, err := br.Peek(2)
	return err == nil && magic[0] == 0x1f && magic[1] == 0x8b
}

// closeAll closes in reverse order of opening.
func closeAll(closers []io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i].Close()
	}
}

// Decode parses one JSON object into a Record. The level name is taken
// from levelKey when it holds a string and stays in the fields.
func Decode(line []byte, levelKey string, useNumber bool) (model.Record, error) {
	fields := model.Fields{}
	var err error
	if useNumber {
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		err = dec.Decode(&fields)
	} else {
		err = json.Unmarshal(line, &fields)
	}
	if err != nil {
		return model.Record{}, fmt.Errorf("decode record: %w", err)
	}
	if fields == nil {
		fields = model.Fields{}
	}
	level, _ := fields[levelKey].(string)
	return model.Record{Level: level, Fields: fields}, nil
}
