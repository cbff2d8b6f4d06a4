package cache

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestInMemoryCache_SetAndGet(t *testing.T) {
	cache := NewInMemoryCache(1 * time.Second)
	ctx := context.Background()
	key := "foo"
	artifact := []byte("<svg/>")

	err := cache.Set(ctx, key, artifact)
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := cache.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, artifact) {
		t.Errorf("expected %q, got %q", artifact, got)
	}
}

func TestInMemoryCache_Expiration(t *testing.T) {
	cache := NewInMemoryCache(50 * time.Millisecond)
	ctx := context.Background()

	err := cache.Set(ctx, "baz", []byte("qux"))
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	time.Sleep(60 * time.Millisecond)
	_, err = cache.Get(ctx, "baz")
	if err == nil {
		t.Errorf("expected error for expired artifact, got nil")
	}
}

func TestInMemoryCache_Concurrency(t *testing.T) {
	cache := NewInMemoryCache(1 * time.Second)
	ctx := context.Background()
	key := "concurrent"
	artifact := []byte("val")
	setErr := make(chan error, 1)
	getErr := make(chan error, 1)

	go func() {
		setErr <- cache.Set(ctx, key, artifact)
	}()
	go func() {
		_, err := cache.Get(ctx, key)
		getErr <- err
	}()

	if err := <-setErr; err != nil {
		t.Errorf("Set failed: %v", err)
	}
	if err := <-getErr; err != nil && !strings.Contains(err.Error(), "not") {
		t.Errorf("unexpected Get error: %v", err)
	}
}

func TestFileCache_Persistence(t *testing.T) {
	path := t.TempDir() + "/render.cache"
	ctx := context.Background()

	first := NewFileCache(1*time.Hour, path, nil)
	if err := first.Set(ctx, "dot:abc", []byte("<svg>1</svg>")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	second := NewFileCache(1*time.Hour, path, nil)
	got, err := second.Get(ctx, "dot:abc")
	if err != nil {
		t.Fatalf("Get after reload failed: %v", err)
	}
	if string(got) != "<svg>1</svg>" {
		t.Errorf("expected persisted artifact, got %q", got)
	}
}
