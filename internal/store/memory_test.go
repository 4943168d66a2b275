package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Get / Set
// ---------------------------------------------------------------------------

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	if err := m.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	got, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got != "v" {
		t.Errorf("Get() = %q, want %q", got, "v")
	}
}

func TestMemoryTTLExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	if err := m.Set(ctx, "k", "v", time.Hour); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	if _, err := m.Get(ctx, "k"); err != nil {
		t.Fatalf("Get() before expiry error: %v", err)
	}

	clock = clock.Add(time.Hour + time.Second)
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after expiry error = %v, want ErrNotFound", err)
	}
}

func TestMemoryPersistRemovesTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	_ = m.Set(ctx, "k", "v", time.Minute)
	if err := m.Persist(ctx, "k"); err != nil {
		t.Fatalf("Persist() error: %v", err)
	}

	clock = clock.Add(24 * time.Hour)
	if _, err := m.Get(ctx, "k"); err != nil {
		t.Errorf("Get() after Persist error = %v, want nil", err)
	}
}

// ---------------------------------------------------------------------------
// SetNX
// ---------------------------------------------------------------------------

func TestMemorySetNX(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	ok, err := m.SetNX(ctx, "k", "first", 0)
	if err != nil || !ok {
		t.Fatalf("SetNX(first) = (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = m.SetNX(ctx, "k", "second", 0)
	if err != nil {
		t.Fatalf("SetNX(second) error: %v", err)
	}
	if ok {
		t.Error("SetNX on existing key reported success")
	}

	got, _ := m.Get(ctx, "k")
	if got != "first" {
		t.Errorf("value after losing SetNX = %q, want %q", got, "first")
	}
}

func TestMemorySetNXAfterExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	_, _ = m.SetNX(ctx, "k", "first", time.Minute)
	clock = clock.Add(2 * time.Minute)

	ok, err := m.SetNX(ctx, "k", "second", 0)
	if err != nil || !ok {
		t.Fatalf("SetNX after expiry = (%v, %v), want (true, nil)", ok, err)
	}
}

// ---------------------------------------------------------------------------
// Hashes
// ---------------------------------------------------------------------------

func TestMemoryHashOps(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	got, err := m.HGetAll(ctx, "missing")
	if err != nil {
		t.Fatalf("HGetAll(missing) error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("HGetAll(missing) = %v, want empty map", got)
	}

	if err := m.HSet(ctx, "h", map[string]string{"a": "1", "b": "2"}); err != nil {
		t.Fatalf("HSet() error: %v", err)
	}
	// Partial update merges, not replaces.
	if err := m.HSet(ctx, "h", map[string]string{"b": "3"}); err != nil {
		t.Fatalf("HSet() error: %v", err)
	}

	got, _ = m.HGetAll(ctx, "h")
	if got["a"] != "1" || got["b"] != "3" {
		t.Errorf("HGetAll() = %v, want a=1 b=3", got)
	}
}

func TestMemoryExpireOnHash(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	_ = m.HSet(ctx, "h", map[string]string{"a": "1"})
	if err := m.Expire(ctx, "h", time.Minute); err != nil {
		t.Fatalf("Expire() error: %v", err)
	}

	clock = clock.Add(2 * time.Minute)
	got, _ := m.HGetAll(ctx, "h")
	if len(got) != 0 {
		t.Errorf("HGetAll() after expiry = %v, want empty", got)
	}
}

func TestMemoryDel(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_ = m.Set(ctx, "a", "1", 0)
	_ = m.HSet(ctx, "b", map[string]string{"x": "1"})

	if err := m.Del(ctx, "a", "b"); err != nil {
		t.Fatalf("Del() error: %v", err)
	}
	if _, err := m.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Error("Del() did not remove plain value")
	}
	if got, _ := m.HGetAll(ctx, "b"); len(got) != 0 {
		t.Error("Del() did not remove hash")
	}
}
