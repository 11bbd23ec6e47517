// Package cache provides the small TTL store used by the semantic detector
// adapters. Two backends: in-process (default) and Redis for deployments
// that share verdicts across replicas.
package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Store is a TTL-bounded byte store. Implementations must be safe for
// concurrent use and must never leave a partially-written entry visible.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// Memory is the in-process backend. Expired entries are swept by a
// background janitor.
type Memory struct {
	c *gocache.Cache
}

// NewMemory builds an in-process store with the given default TTL.
func NewMemory(defaultTTL time.Duration) *Memory {
	return &Memory{c: gocache.New(defaultTTL, 2*defaultTTL)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.c.Set(key, value, ttl)
}

func (m *Memory) Delete(_ context.Context, key string) {
	m.c.Delete(key)
}
