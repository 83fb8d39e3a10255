package srcu

import (
	"sync"
	"testing"
	"time"
)

func TestCompletion_WaitAndAdvance(t *testing.T) {
	var c completion
	done := make(chan struct{})
	go func() {
		c.waitAtLeast(1)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("waitAtLeast returned before advance")
	default:
	}
	if got := c.advance(1); got != 1 {
		t.Fatalf("advance = %d, want 1", got)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waitAtLeast did not return after advance")
	}
}

func TestCompletion_WakesOnlySatisfiedWaiters(t *testing.T) {
	var c completion
	var wg sync.WaitGroup
	early := make(chan struct{})
	late := make(chan struct{})

	wg.Add(2)
	go func() {
		defer wg.Done()
		c.waitAtLeast(2)
		close(early)
	}()
	go func() {
		defer wg.Done()
		c.waitAtLeast(5)
		close(late)
	}()
	time.Sleep(10 * time.Millisecond)

	c.advance(2)
	select {
	case <-early:
	case <-time.After(time.Second):
		t.Fatal("waiter for 2 not woken")
	}
	select {
	case <-late:
		t.Fatal("waiter for 5 woken at 2")
	case <-time.After(10 * time.Millisecond):
	}

	c.advance(3)
	wg.Wait()
	if c.load() != 5 {
		t.Fatalf("load = %d, want 5", c.load())
	}
}

func TestCompletion_AlreadyReached(t *testing.T) {
	var c completion
	c.advance(3)
	c.waitAtLeast(2)
	c.waitAtLeast(3)
	if c.advance(0) != 3 {
		t.Fatalf("advance(0) = %d, want 3", c.load())
	}
}
