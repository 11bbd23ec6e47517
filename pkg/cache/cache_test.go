package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)

	if _, ok := m.Get(ctx, "missing"); ok {
		t.Error("Get(missing) = ok")
	}

	m.Set(ctx, "k", []byte("verdict"), time.Minute)
	got, ok := m.Get(ctx, "k")
	if !ok || string(got) != "verdict" {
		t.Errorf("Get = %q, %v", got, ok)
	}

	m.Delete(ctx, "k")
	if _, ok := m.Get(ctx, "k"); ok {
		t.Error("entry survived Delete")
	}
}

func TestMemoryTTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Minute)

	m.Set(ctx, "k", []byte("v"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	if _, ok := m.Get(ctx, "k"); ok {
		t.Error("entry survived its TTL")
	}
}

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedis(client, "sentinel:", nil), mr
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRedis(t)

	if _, ok := r.Get(ctx, "missing"); ok {
		t.Error("Get(missing) = ok")
	}

	r.Set(ctx, "k", []byte("verdict"), time.Minute)
	got, ok := r.Get(ctx, "k")
	if !ok || string(got) != "verdict" {
		t.Errorf("Get = %q, %v", got, ok)
	}

	r.Delete(ctx, "k")
	if _, ok := r.Get(ctx, "k"); ok {
		t.Error("entry survived Delete")
	}
}

func TestRedisTTL(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)

	r.Set(ctx, "k", []byte("v"), time.Second)
	mr.FastForward(2 * time.Second)
	if _, ok := r.Get(ctx, "k"); ok {
		t.Error("entry survived its TTL")
	}
}

func TestRedisDownDegradesToMiss(t *testing.T) {
	ctx := context.Background()
	r, mr := newTestRedis(t)
	r.Set(ctx, "k", []byte("v"), time.Minute)
	mr.Close()

	if _, ok := r.Get(ctx, "k"); ok {
		t.Error("Get succeeded against a closed Redis")
	}
	// Set and Delete must not panic either.
	r.Set(ctx, "k2", []byte("v"), time.Minute)
	r.Delete(ctx, "k")
}
