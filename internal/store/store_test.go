package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

type testRecord struct {
	Name  string
	Count int
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New[testRecord](NewMemoryStorage(), "t:")

	want := testRecord{Name: "alpha", Count: 7}
	if err := s.Set(ctx, "k1", want, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := s.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	if err := s.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, "k1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStoreGetMissing(t *testing.T) {
	s := New[testRecord](NewMemoryStorage(), "t:")
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := New[testRecord](NewMemoryStorage(), "t:")
	if err := s.Set(ctx, "k1", testRecord{Name: "x"}, time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := s.Get(ctx, "k1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestPrefixIsolation(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	a := StorageWithPrefix(storage, "a:")
	b := StorageWithPrefix(storage, "b:")

	if err := a.Set(ctx, "k", testRecord{Name: "a"}, -1); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	var out testRecord
	if err := b.Get(ctx, "k", &out); !errors.Is(err, ErrNotFound) {
		t.Fatalf("prefix b must not see prefix a keys, got %v", err)
	}
}

func TestIncrAttr(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()

	for want := int64(1); want <= 3; want++ {
		got, err := storage.IncrAttr(ctx, "counter", "count", 1)
		if err != nil {
			t.Fatalf("IncrAttr failed: %v", err)
		}
		if got != want {
			t.Fatalf("IncrAttr = %d, want %d", got, want)
		}
	}

	count, err := storage.IncrAttr(ctx, "counter", "count", 0)
	if err != nil {
		t.Fatalf("IncrAttr failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
}
