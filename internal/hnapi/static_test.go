package hnapi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/hnsearch/internal/model"
)

func TestStaticSource_ReturnsSampleStories(t *testing.T) {
	s := NewStaticSource(time.Millisecond, nil)

	got, err := s.Fetch(context.Background(), "ignored")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if diff := cmp.Diff(model.SampleStories(), got); diff != "" {
		t.Errorf("stories mismatch (-want +got):\n%s", diff)
	}
}

func TestStaticSource_ReturnsCopy(t *testing.T) {
	s := NewStaticSource(0, nil)

	first, _ := s.Fetch(context.Background(), "")
	first[0].Title = "mutated"

	second, _ := s.Fetch(context.Background(), "")
	if second[0].Title != "React" {
		t.Error("StaticSource leaked its backing slice")
	}
}

func TestStaticSource_ContextCanceled(t *testing.T) {
	s := NewStaticSource(time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Fetch(ctx, "u")
	var fe *FetchError
	if !errors.As(err, &fe) || !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want FetchError wrapping context.Canceled", err)
	}
}
