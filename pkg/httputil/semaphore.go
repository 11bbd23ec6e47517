package httputil

import (
	"context"
	"sync/atomic"
)

// Semaphore caps concurrent upstream calls. Adapters use it so a burst of
// validations cannot pile unbounded requests onto a slow model service.
type Semaphore struct {
	sem     chan struct{}
	dropped atomic.Int64
}

// NewSemaphore creates a semaphore with the given capacity.
func NewSemaphore(capacity int) *Semaphore {
	if capacity <= 0 {
		capacity = 16
	}
	return &Semaphore{sem: make(chan struct{}, capacity)}
}

// TryAcquire takes a slot without blocking. A false return counts as a
// dropped operation.
func (s *Semaphore) TryAcquire() bool {
	select {
	case s.sem <- struct{}{}:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Acquire blocks until a slot is free or the context ends.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot. Must follow a successful acquire.
func (s *Semaphore) Release() {
	select {
	case <-s.sem:
	default:
	}
}

// InUse returns the number of slots currently held.
func (s *Semaphore) InUse() int { return len(s.sem) }

// Dropped returns how many TryAcquire calls found the semaphore full.
func (s *Semaphore) Dropped() int64 { return s.dropped.Load() }
