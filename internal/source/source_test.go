package source

import (
	"context"
	"slices"
	"testing"

	"github.com/crimson-sun/sentrylog/internal/model"
)

type stubSource struct{}

func (stubSource) Stream(context.Context, Config) (<-chan model.Record, error) {
	ch := make(chan model.Record)
	close(ch)
	return ch, nil
}

func (stubSource) Err() error { return nil }

func TestRegistry(t *testing.T) {
	Register("stub-b", func() Source { return stubSource{} })
	Register("stub-a", func() Source { return stubSource{} })

	ctor, err := Get("stub-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := ctor().(stubSource); !ok {
		t.Fatalf("unexpected type %T", ctor())
	}

	if _, err := Get("missing"); err == nil {
		t.Fatal("expected error for unknown provider")
	}

	names := Providers()
	if !slices.IsSorted(names) {
		t.Errorf("providers not sorted: %v", names)
	}
	if !slices.Contains(names, "stub-a") || !slices.Contains(names, "stub-b") {
		t.Errorf("missing registered providers: %v", names)
	}
}
