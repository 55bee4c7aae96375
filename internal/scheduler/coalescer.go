package scheduler

import (
	"context"
	"sync"
)

// Coalescer guards re-invocation of a single task. While a run is in
// flight, any number of further requests collapse into one follow-up
// run that starts after the active one finishes.
type Coalescer struct {
	mu      sync.Mutex
	running bool
	next    *followUp
}

// followUp is the queued run every folded request waits on.
type followUp struct {
	done chan struct{}
	err  error
}

// Do runs fn unless a run is already in flight. In that case the request
// is folded into the single queued follow-up run and Do blocks until
// that run finished, returning ran=false and its error. The caller that
// started the active run executes the follow-up before returning, and
// gets the error of the last run it executed.
func (c *Coalescer) Do(ctx context.Context, fn func(context.Context) error) (ran bool, err error) {
	c.mu.Lock()
	if c.running {
		if c.next == nil {
			c.next = &followUp{done: make(chan struct{})}
		}
		f := c.next
		c.mu.Unlock()
		select {
		case <-f.done:
			return false, f.err
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	c.running = true
	c.mu.Unlock()

	var current *followUp
	for {
		err = fn(ctx)

		c.mu.Lock()
		if current != nil {
			current.err = err
			close(current.done)
		}
		if c.next == nil || ctx.Err() != nil {
			if c.next != nil {
				c.next.err = ctx.Err()
				close(c.next.done)
				c.next = nil
			}
			c.running = false
			c.mu.Unlock()
			return true, err
		}
		current, c.next = c.next, nil
		c.mu.Unlock()
	}
}

// Busy reports whether a run is in flight.
func (c *Coalescer) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
