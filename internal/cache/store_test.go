package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

// Both Store implementations must agree on semantics, so the suite runs
// against each.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	redisStore := NewRedisStore(RedisConfig{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  redisStore,
	}
}

func TestStoreGetSetDel(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Get(ctx, "absent"); !errors.Is(err, ErrMiss) {
				t.Fatalf("expected ErrMiss, got %v", err)
			}
			if err := s.Set(ctx, "k", []byte("v"), 0); err != nil {
				t.Fatalf("Set: %v", err)
			}
			b, err := s.Get(ctx, "k")
			if err != nil || string(b) != "v" {
				t.Fatalf("Get: %q, %v", b, err)
			}
			if err := s.Del(ctx, "k"); err != nil {
				t.Fatalf("Del: %v", err)
			}
			if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
				t.Fatalf("expected ErrMiss after Del, got %v", err)
			}
		})
	}
}

func TestStoreSetNX(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ok, err := s.SetNX(ctx, "nx", []byte("first"), 0)
			if err != nil || !ok {
				t.Fatalf("first SetNX: ok=%v err=%v", ok, err)
			}
			ok, err = s.SetNX(ctx, "nx", []byte("second"), 0)
			if err != nil || ok {
				t.Fatalf("second SetNX should be skipped: ok=%v err=%v", ok, err)
			}
			b, err := s.Get(ctx, "nx")
			if err != nil || string(b) != "first" {
				t.Fatalf("SetNX overwrote value: %q, %v", b, err)
			}
		})
	}
}

func TestStoreIncr(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			n, err := s.Incr(ctx, "counter")
			if err != nil || n != 1 {
				t.Fatalf("Incr from missing key: n=%d err=%v", n, err)
			}
			n, err = s.Incr(ctx, "counter")
			if err != nil || n != 2 {
				t.Fatalf("second Incr: n=%d err=%v", n, err)
			}
		})
	}
}

func TestMemoryStoreTTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Set(ctx, "short", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := s.Get(ctx, "short"); err != nil {
		t.Fatalf("fresh entry missing: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := s.Get(ctx, "short"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss after TTL, got %v", err)
	}
}

func TestRedisStoreTTL(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	s := NewRedisStore(RedisConfig{Addr: mr.Addr()})
	defer s.Close()

	if err := s.Set(ctx, "short", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := s.Get(ctx, "short"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss after TTL, got %v", err)
	}
}
