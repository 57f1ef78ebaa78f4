// Package singleflight coordinates concurrent callers so that at most one
// computation per key is in flight at a time. Duplicate callers wait on the
// owner's result through a shared done channel, which makes delivery
// idempotent for any number of waiters and lets each waiter honor its own
// context independently of the computation.
package singleflight

import (
	"context"
	"sync"
)

// call represents an in-flight or completed computation for one key.
type call struct {
	done chan struct{}
	val  any
	err  error
}

// Group manages the in-flight call table for a set of keys.
type Group struct {
	mu sync.Mutex
	m  map[string]*call
}

// New creates an empty Group.
func New() *Group {
	return &Group{m: make(map[string]*call)}
}

// Do executes fn, making sure only one execution per key is in flight at a
// time. Duplicate callers wait for the owner's result and receive the same
// value and error. A waiter whose ctx is canceled detaches and returns
// ctx.Err() without affecting the computation. fn runs outside the group
// lock. The second return value reports whether this caller shared another
// caller's result.
func (g *Group) Do(ctx context.Context, key string, fn func() (any, error)) (any, error, bool) {
	g.mu.Lock()
	if c, ok := g.m[key]; ok {
		g.mu.Unlock()
		select {
		case <-c.done:
			return c.val, c.err, true
		case <-ctx.Done():
			return nil, ctx.Err(), true
		}
	}

	c := &call{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	c.val, c.err = fn()

	// The entry leaves the table before waiters are released so a miss
	// arriving after completion starts a fresh computation.
	g.mu.Lock()
	if g.m[key] == c {
		delete(g.m, key)
	}
	g.mu.Unlock()
	close(c.done)

	return c.val, c.err, false
}

// Forget removes key from the in-flight table. Future callers will start a
// new computation even if an earlier one has not finished; waiters already
// attached to the old call still receive its result.
func (g *Group) Forget(key string) {
	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()
}

// Pending returns the number of keys with an in-flight computation.
func (g *Group) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}
