package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestMemoryStoreBatchDeletesBeforeSets(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	if err := s.Write(ctx, Batch{Set: []Slot{{Key: "a", Value: "old"}, {Key: "b", Value: "x"}}}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	err := s.Write(ctx, Batch{
		Delete: []string{"a", "b"},
		Set:    []Slot{{Key: "a", Value: "new"}},
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if v, ok, _ := s.Get(ctx, "a"); !ok || v != "new" {
		t.Fatalf("a = %q, %v; want new", v, ok)
	}
	if _, ok, _ := s.Get(ctx, "b"); ok {
		t.Fatal("b should be deleted")
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore(0)
	s.SetClock(func() time.Time { return now })

	if err := s.Write(ctx, Batch{Set: []Slot{{Key: "k", Value: "v"}}, MaxAge: time.Hour}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	now = now.Add(59 * time.Minute)
	if _, ok, _ := s.Get(ctx, "k"); !ok {
		t.Fatal("entry expired early")
	}
	now = now.Add(time.Minute)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatal("entry should have expired")
	}
	keys, _ := s.Keys(ctx)
	if len(keys) != 0 {
		t.Fatalf("keys = %v, want none", keys)
	}
}

func TestMemoryStoreRejectsOversizedBatchAtomically(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(4)
	err := s.Write(ctx, Batch{
		Delete: []string{"keep"},
		Set:    []Slot{{Key: "ok", Value: "1234"}, {Key: "big", Value: strings.Repeat("x", 5)}},
	})
	if !errors.Is(err, ErrValueTooLarge) {
		t.Fatalf("err = %v, want ErrValueTooLarge", err)
	}
	if _, ok, _ := s.Get(ctx, "ok"); ok {
		t.Fatal("partial batch applied")
	}
}
