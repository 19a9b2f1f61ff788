package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCacheSetGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("Get = %q, want v", got)
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	if _, err := c.Get(ctx, "absent"); err != ErrCacheMiss {
		t.Errorf("Get = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	if err := c.Set(ctx, "k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if _, err := c.Get(ctx, "k"); err != ErrCacheMiss {
		t.Errorf("expired Get = %v, want ErrCacheMiss", err)
	}
	if ok, _ := c.Exists(ctx, "k"); ok {
		t.Error("Exists reported an expired key")
	}
}

func TestMemoryCacheGetOrSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	computed := 0
	fn := func() ([]byte, error) {
		computed++
		return []byte("fresh"), nil
	}

	for i := 0; i < 3; i++ {
		got, err := c.GetOrSet(ctx, "k", time.Minute, fn)
		if err != nil {
			t.Fatalf("GetOrSet failed: %v", err)
		}
		if string(got) != "fresh" {
			t.Errorf("GetOrSet = %q", got)
		}
	}
	if computed != 1 {
		t.Errorf("compute ran %d times, want 1", computed)
	}
}

func TestMemoryCacheGetOrSetPropagatesError(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	wantErr := errors.New("upstream down")
	if _, err := c.GetOrSet(ctx, "k", time.Minute, func() ([]byte, error) {
		return nil, wantErr
	}); !errors.Is(err, wantErr) {
		t.Errorf("GetOrSet error = %v, want %v", err, wantErr)
	}

	// Nothing was cached on failure.
	if _, err := c.Get(ctx, "k"); err != ErrCacheMiss {
		t.Errorf("Get after failed compute = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCacheClear(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Set(ctx, "b", []byte("2"), time.Minute)

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if ok, _ := c.Exists(ctx, "a"); ok {
		t.Error("key survived Clear")
	}
}

func TestMemoryCacheCopiesValues(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	value := []byte("abc")
	c.Set(ctx, "k", value, time.Minute)
	value[0] = 'X'

	got, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "abc" {
		t.Errorf("stored value mutated: %q", got)
	}
}
