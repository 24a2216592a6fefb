// Package gate provides the admission control primitive that bounds the
// number of simultaneously in-flight requests, independent of the
// transport's connection pool size.
package gate

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Gate is a counting admission gate with fixed capacity. A nil *Gate or
// a Gate created with capacity <= 0 is unbounded: Acquire always
// succeeds immediately and Release is a no-op.
//
// Capacity is fixed at creation; all interaction after construction
// goes through Acquire/Release, which are safe for concurrent use.
type Gate struct {
	sem *semaphore.Weighted
	cap int64
}

// New creates a gate admitting up to n concurrent holders.
// n <= 0 means unbounded.
func New(n int64) *Gate {
	if n <= 0 {
		return &Gate{}
	}
	return &Gate{sem: semaphore.NewWeighted(n), cap: n}
}

// Acquire blocks until a slot is free or ctx is done. It returns the
// context error on cancellation, nil otherwise.
func (g *Gate) Acquire(ctx context.Context) error {
	if g == nil || g.sem == nil {
		return ctx.Err()
	}
	return g.sem.Acquire(ctx, 1)
}

// Release frees one slot. It must be called exactly once per successful
// Acquire.
func (g *Gate) Release() {
	if g == nil || g.sem == nil {
		return
	}
	g.sem.Release(1)
}

// Cap returns the gate capacity, 0 for an unbounded gate.
func (g *Gate) Cap() int64 {
	if g == nil {
		return 0
	}
	return g.cap
}
