package srcu

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
)

func TestReclaimer_RunsAfterGracePeriod(t *testing.T) {
	d := newTestDomain(t)
	r := NewReclaimer(d)

	tok := d.Enter()
	var ran atomic.Bool
	if err := r.Call(func() error {
		ran.Store(true)
		return nil
	}); err != nil {
		t.Fatalf("Call: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if ran.Load() {
		t.Fatal("callback ran while a pre-existing reader was inside")
	}
	if r.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", r.Pending())
	}

	d.Exit(tok)
	r.Barrier()
	if !ran.Load() {
		t.Fatal("callback did not run before Barrier returned")
	}
	if r.Pending() != 0 {
		t.Fatalf("Pending = %d, want 0", r.Pending())
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestReclaimer_OrderAndBatching(t *testing.T) {
	d := newTestDomain(t)
	r := NewReclaimer(d, WithBatchLimit(16))

	const n = 200
	var (
		mu    sync.Mutex
		order []int
	)
	for i := range n {
		if err := r.Call(func() error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatalf("Call: %v", err)
		}
	}
	r.Barrier()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != n {
		t.Fatalf("ran %d callbacks, want %d", len(order), n)
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("callback %d ran at position %d", v, i)
		}
	}
	// Batches share grace periods.
	if gp := d.BatchesCompleted(); gp > n/2 {
		t.Fatalf("%d grace periods for %d callbacks", gp, n)
	}
	if gp := d.BatchesCompleted(); gp < n/16 {
		t.Fatalf("%d grace periods, batch limit of 16 allows at least %d", gp, n/16)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestReclaimer_CloseCollectsErrors(t *testing.T) {
	d := newTestDomain(t)
	r := NewReclaimer(d)

	errBoom := errors.New("boom")
	_ = r.Call(func() error { return nil })
	_ = r.Call(func() error { return errBoom })
	_ = r.Call(func() error { panic("kaboom") })

	err := r.Close()
	if err == nil {
		t.Fatal("Close returned nil, want callback errors")
	}
	var me *multierror.Error
	if !errors.As(err, &me) {
		t.Fatalf("Close error %T, want *multierror.Error", err)
	}
	if len(me.Errors) != 2 {
		t.Fatalf("got %d errors, want 2: %v", len(me.Errors), err)
	}
	if !errors.Is(me.Errors[0], errBoom) {
		t.Fatalf("first error = %v, want boom", me.Errors[0])
	}
	if !strings.Contains(me.Errors[1].Error(), "kaboom") {
		t.Fatalf("second error = %v, want panic value", me.Errors[1])
	}

	if err := r.Call(func() error { return nil }); !errors.Is(err, ErrReclaimerClosed) {
		t.Fatalf("Call after Close = %v, want ErrReclaimerClosed", err)
	}
	if err2 := r.Close(); err2 == nil || err2.Error() != err.Error() {
		t.Fatalf("second Close = %v, want %v", err2, err)
	}
}

func TestReclaimer_CloseDrainsQueue(t *testing.T) {
	d := newTestDomain(t)
	r := NewReclaimer(d, WithBatchLimit(1))

	var ran atomic.Int32
	for range 10 {
		_ = r.Call(func() error {
			ran.Add(1)
			return nil
		})
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if n := ran.Load(); n != 10 {
		t.Fatalf("ran %d callbacks before Close returned, want 10", n)
	}
}

func TestReclaimer_BarrierWithoutCallbacks(t *testing.T) {
	d := newTestDomain(t)
	r := NewReclaimer(d)
	done := make(chan struct{})
	go func() {
		r.Barrier()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Barrier blocked with nothing queued")
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestReclaimer_CallAfterDestroy(t *testing.T) {
	d, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := NewReclaimer(d)

	tok := d.Enter()
	if err := r.Call(func() error { return nil }); err != nil {
		t.Fatalf("Call: %v", err)
	}
	d.Exit(tok)
	r.Barrier()
	if err := d.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	var ran atomic.Bool
	err = r.Call(func() error {
		ran.Store(true)
		return nil
	})
	if !errors.Is(err, ErrDestroyed) {
		t.Fatalf("Call after Destroy = %v, want ErrDestroyed", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if ran.Load() {
		t.Fatal("callback ran on a destroyed domain")
	}
}

// The domain goes away while the worker waits for the writer lock. The
// queued callbacks are dropped and reported instead of crashing the worker.
func TestReclaimer_DomainDestroyedUnderWorker(t *testing.T) {
	d, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := NewReclaimer(d)

	var ran atomic.Int32
	d.mu.Lock()
	for range 2 {
		if err := r.Call(func() error {
			ran.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("Call: %v", err)
		}
	}
	time.Sleep(10 * time.Millisecond)
	// Same transition Destroy makes under the writer lock.
	d.arena.Store(nil)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.Barrier()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Barrier hung after the worker stopped")
	}
	if n := ran.Load(); n != 0 {
		t.Fatalf("%d callbacks ran on a destroyed domain", n)
	}
	if n := r.Pending(); n != 0 {
		t.Fatalf("Pending = %d, want 0", n)
	}

	if err := r.Call(func() error { return nil }); !errors.Is(err, ErrDestroyed) {
		t.Fatalf("Call after worker stopped = %v, want ErrDestroyed", err)
	}

	err = r.Close()
	if !errors.Is(err, ErrDestroyed) {
		t.Fatalf("Close = %v, want ErrDestroyed", err)
	}
	var me *multierror.Error
	if !errors.As(err, &me) {
		t.Fatalf("Close error %T, want *multierror.Error", err)
	}
	if len(me.Errors) != 3 {
		t.Fatalf("got %d errors, want worker error plus 2 dropped: %v", len(me.Errors), err)
	}
}
