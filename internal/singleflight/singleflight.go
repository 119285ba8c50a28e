package singleflight

import (
	"context"
	"fmt"
	"sync"
)

// Group manages a set of in-flight calls to prevent duplicate work.
// Unlike a result cache, a key only lives in the group while its call is
// running: the entry is removed the moment the call settles, so the next
// caller for that key starts a new call.
type Group struct {
	mu sync.Mutex
	m  map[string]*call
}

// call represents an active function call.
type call struct {
	done    chan struct{}
	val     interface{}
	err     error
	waiters int
}

// New creates a new singleflight Group.
func New() *Group {
	return &Group{
		m: make(map[string]*call),
	}
}

// Do executes and returns the results of the given function, making sure that
// only one execution is in-flight for a given key at a time. If a duplicate
// comes in, the duplicate caller waits for the original to complete and
// receives the same results; shared is true for those callers.
//
// fn runs on the owner's goroutine and is not interrupted by ctx; fn is
// expected to observe the owner's context itself. A waiter whose ctx ends
// before the owner settles stops waiting and returns ctx.Err().
func (g *Group) Do(ctx context.Context, key string, fn func() (interface{}, error)) (v interface{}, err error, shared bool) {
	g.mu.Lock()
	if c, ok := g.m[key]; ok {
		c.waiters++
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

	g.run(key, c, fn)
	return c.val, c.err, false
}

func (g *Group) run(key string, c *call, fn func() (interface{}, error)) {
	normalReturn := false
	defer func() {
		var recovered interface{}
		if !normalReturn {
			recovered = recover()
			c.val, c.err = nil, fmt.Errorf("%w: %v", ErrPanicked, recovered)
		}

		g.mu.Lock()
		if g.m[key] == c {
			delete(g.m, key)
		}
		g.mu.Unlock()
		close(c.done)

		if !normalReturn {
			panic(recovered)
		}
	}()

	c.val, c.err = fn()
	normalReturn = true
}

// Waiters reports how many callers joined the in-flight call for key, not
// counting its owner. It returns 0 when nothing is in flight.
func (g *Group) Waiters(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.m[key]; ok {
		return c.waiters
	}
	return 0
}

// Len returns the number of keys currently in flight.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}
