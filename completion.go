package srcu

import (
	"sync/atomic"

	"github.com/llxisdsh/srcu/internal/opt"
)

// completion is a monotonically increasing counter with "wait until it
// reaches n" semantics.
//
// A Domain counts finished grace periods with it, and a Reclaimer counts
// invoked callbacks. Waiters are kept in a list and only the ones whose
// target has been reached are woken on each advance.
type completion struct {
	_     noCopy
	value atomic.Uint64
	mu    TicketLock
	head  *completionWaiter
	tail  *completionWaiter
}

type completionWaiter struct {
	target uint64
	sema   opt.Sema
	// next is protected by completion.mu
	next *completionWaiter
}

func (c *completion) load() uint64 {
	return c.value.Load()
}

// advance adds delta and wakes the waiters whose targets are met.
func (c *completion) advance(delta uint64) uint64 {
	if delta == 0 {
		return c.load()
	}
	n := c.value.Add(delta)

	c.mu.Lock()
	var prev *completionWaiter
	for w := c.head; w != nil; {
		next := w.next
		if w.target <= n {
			if prev == nil {
				c.head = next
			} else {
				prev.next = next
			}
			if w == c.tail {
				c.tail = prev
			}
			w.sema.Release()
		} else {
			prev = w
		}
		w = next
	}
	c.mu.Unlock()
	return n
}

// waitAtLeast blocks until the counter reaches target.
func (c *completion) waitAtLeast(target uint64) {
	if c.value.Load() >= target {
		return
	}

	c.mu.Lock()
	// The value may have moved while we queued for the lock.
	if c.value.Load() >= target {
		c.mu.Unlock()
		return
	}
	w := &completionWaiter{target: target}
	if c.tail == nil {
		c.head = w
	} else {
		c.tail.next = w
	}
	c.tail = w
	c.mu.Unlock()

	w.sema.Acquire()
}
