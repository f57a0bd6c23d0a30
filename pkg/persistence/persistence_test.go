package persistence

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryGetSetRemove(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) = %v, want ErrNotFound", err)
	}

	if err := m.Set(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := m.Get(ctx, "k")
	if err != nil || string(got) != "v1" {
		t.Fatalf("Get(k) = %q, %v", got, err)
	}

	if err := m.Set(ctx, "k", []byte("v2")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	got, _ = m.Get(ctx, "k")
	if string(got) != "v2" {
		t.Errorf("Get after overwrite = %q, want v2", got)
	}

	if err := m.RemoveAll(ctx, "k", "never-existed"); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after remove = %v, want ErrNotFound", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d, want 0", m.Len())
	}
}

func TestMemoryCopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	in := []byte("original")
	m.Set(ctx, "k", in)
	in[0] = 'X'

	got, _ := m.Get(ctx, "k")
	if string(got) != "original" {
		t.Errorf("stored value aliased caller buffer: %q", got)
	}
	got[0] = 'Y'
	again, _ := m.Get(ctx, "k")
	if string(again) != "original" {
		t.Errorf("returned value aliased store: %q", again)
	}
}

func TestNamespacedIsolation(t *testing.T) {
	ctx := context.Background()
	shared := NewMemory()
	a := Namespaced(shared, "index")
	b := Namespaced(shared, "predictor")

	a.Set(ctx, "snapshot", []byte("index-data"))
	b.Set(ctx, "snapshot", []byte("predictor-data"))

	got, err := a.Get(ctx, "snapshot")
	if err != nil || string(got) != "index-data" {
		t.Fatalf("namespace a read %q, %v", got, err)
	}
	got, err = b.Get(ctx, "snapshot")
	if err != nil || string(got) != "predictor-data" {
		t.Fatalf("namespace b read %q, %v", got, err)
	}
	if shared.Len() != 2 {
		t.Errorf("shared store holds %d keys, want 2", shared.Len())
	}

	if err := a.RemoveAll(ctx, "snapshot"); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	if _, err := a.Get(ctx, "snapshot"); !errors.Is(err, ErrNotFound) {
		t.Errorf("namespace a still readable after remove: %v", err)
	}
	if _, err := b.Get(ctx, "snapshot"); err != nil {
		t.Errorf("remove in namespace a deleted namespace b's key: %v", err)
	}
}

func TestNamespacedCloseLeavesInnerOpen(t *testing.T) {
	ctx := context.Background()
	shared := NewMemory()
	wrapped := Namespaced(shared, "index")

	if err := wrapped.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := shared.Set(ctx, "k", []byte("v")); err != nil {
		t.Errorf("inner adapter unusable after wrapper close: %v", err)
	}
}
