package ndjson

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/segmentio/encoding/json"

	"github.com/crimson-sun/sentrylog/internal/model"
	"github.com/crimson-sun/sentrylog/internal/source"
)

const sample = `{"level":"warn","message":"disk low"}

not json
{"level":"error","message":"boom","tags":{"service":"api"}}
{"message":"no level","count":3}
`

func collect(t *testing.T, ch <-chan model.Record) []model.Record {
	t.Helper()
	var out []model.Record
	timeout := time.After(2 * time.Second)
	for {
		select {
		case r, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, r)
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
}

func TestStreamStdin(t *testing.T) {
	s := New(strings.NewReader(sample))
	ch, err := s.Stream(context.Background(), source.Config{Path: "-"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recs := collect(t, ch)
	if len(recs) != 3 {
		t.Fatalf("expected 3 records (blank and malformed skipped), got %d", len(recs))
	}
	if recs[0].Level != "warn" || recs[0].Message() != "disk low" {
		t.Errorf("unexpected first record: %+v", recs[0])
	}
	if recs[1].Level != "error" {
		t.Errorf("expected level error, got %q", recs[1].Level)
	}
	tags, ok := recs[1].Tags()
	if !ok || tags["service"] != "api" {
		t.Errorf("expected tags service=api, got %v", recs[1].Fields["tags"])
	}
	if recs[2].Level != "" {
		t.Errorf("expected empty level, got %q", recs[2].Level)
	}
	if recs[2].Fields["count"] != float64(3) {
		t.Errorf("expected count float64(3), got %T %v", recs[2].Fields["count"], recs[2].Fields["count"])
	}
}

func TestStreamCustomLevelKey(t *testing.T) {
	s := New(strings.NewReader(`{"severity":"error","level":"ignored","message":"x"}`))
	ch, err := s.Stream(context.Background(), source.Config{LevelKey: "severity"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	recs := collect(t, ch)
	if len(recs) != 1 || recs[0].Level != "error" {
		t.Fatalf("expected one record at level error, got %+v", recs)
	}
}

func TestStreamGzipFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs.ndjson.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write([]byte(sample)); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	ch, err := New(nil).Stream(context.Background(), source.Config{Path: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recs := collect(t, ch); len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
}

func gzipBytes(t *testing.T, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestStreamTruncatedGzip(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString(`{"level":"info","message":"m` + strconv.Itoa(i) + `"}` + "\n")
	}
	data := gzipBytes(t, b.String())

	s := New(bytes.NewReader(data[:len(data)/2]))
	ch, err := s.Stream(context.Background(), source.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	collect(t, ch)

	if err := s.Err(); err == nil {
		t.Fatal("expected read error for truncated gzip")
	}
}

func TestStreamSkipsOversizedLine(t *testing.T) {
	huge := `{"level":"info","message":"` + strings.Repeat("x", maxLineSize+10) + `"}`
	input := `{"level":"info","message":"before"}` + "\n" + huge + "\n" +
		`{"level":"warn","message":"after"}` + "\n" + `{"level":"error","message":"last"}`

	s := New(strings.NewReader(input))
	ch, err := s.Stream(context.Background(), source.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	recs := collect(t, ch)

	if err := s.Err(); err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	var got []string
	for _, r := range recs {
		got = append(got, r.Message())
	}
	want := []string{"before", "after", "last"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got messages %v, want %v", got, want)
	}
}

func TestReadLineAtLimit(t *testing.T) {
	line := strings.Repeat("a", maxLineSize-1) + "\n"
	br := bufio.NewReaderSize(strings.NewReader(line+"b"), 16)

	got, tooLong, err := readLine(br, nil)
	if err != nil || tooLong || len(got) != maxLineSize {
		t.Fatalf("got len=%d tooLong=%v err=%v, want full line", len(got), tooLong, err)
	}
	got, tooLong, err = readLine(br, got)
	if err != io.EOF || tooLong || string(got) != "b" {
		t.Fatalf("got %q tooLong=%v err=%v, want final unterminated line", got, tooLong, err)
	}
}

func TestStreamMissingFile(t *testing.T) {
	_, err := New(nil).Stream(context.Background(), source.Config{Path: filepath.Join(t.TempDir(), "nope")})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestStreamForcedGzipOnPlainInput(t *testing.T) {
	_, err := New(strings.NewReader(sample)).Stream(context.Background(), source.Config{
		Extra: map[string]string{"gzip": "true"},
	})
	if err == nil {
		t.Fatal("expected gzip header error")
	}
}

func TestStreamStopsOnCancel(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 1000; i++ {
		b.WriteString(`{"level":"info","message":"m"}` + "\n")
	}
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := New(strings.NewReader(b.String())).Stream(ctx, source.Config{})
	if err != nil {
		t.Fatal(err)
	}
	<-ch
	cancel()
	// Channel must close without the remaining records being drained.
	collect(t, ch)
}

func TestDecodeUseNumber(t *testing.T) {
	rec, err := Decode([]byte(`{"id":12345678901234567890}`), "level", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, ok := rec.Fields["id"].(json.Number)
	if !ok {
		t.Fatalf("expected json.Number, got %T", rec.Fields["id"])
	}
	if n.String() != "12345678901234567890" {
		t.Errorf("got %s", n)
	}
}

func TestDecodeRejectsNonObject(t *testing.T) {
	for _, line := range []string{`[1,2]`, `"text"`, `{"a":`} {
		if _, err := Decode([]byte(line), "level", false); err == nil {
			t.Errorf("Decode(%s): expected error", line)
		}
	}
}

func TestDecodeNull(t *testing.T) {
	rec, err := Decode([]byte(`null`), "level", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Fields == nil {
		t.Fatal("expected non-nil fields")
	}
}

func TestDecodeNonStringLevel(t *testing.T) {
	rec, err := Decode([]byte(`{"level":50,"message":"m"}`), "level", false)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Level != "" {
		t.Errorf("expected empty level for numeric level field, got %q", rec.Level)
	}
}

func TestRegistered(t *testing.T) {
	ctor, err := source.Get("ndjson")
	if err != nil {
		t.Fatalf("ndjson not registered: %v", err)
	}
	if _, ok := ctor().(*Source); !ok {
		t.Fatalf("unexpected source type %T", ctor())
	}
}
