package srcu

import (
	"sync/atomic"
)

// Pointer is a pointer published under a Domain.
//
// Readers Load it between Enter and Exit and may use the value until Exit.
// Writers replace it with Swap, which returns the old value only after a
// grace period, when no reader can still hold it.
//
// Usage:
//
//	cfg := srcu.NewPointer(d, &Config{})
//
//	t := d.Enter()
//	c := cfg.Load()
//	...
//	d.Exit(t)
//
//	old, err := cfg.Swap(&Config{Version: 2})
//	if err == nil {
//		old.Close()
//	}
type Pointer[T any] struct {
	_ noCopy
	d *Domain
	p atomic.Pointer[T]
}

// NewPointer returns a Pointer bound to d, initially holding v.
func NewPointer[T any](d *Domain, v *T) *Pointer[T] {
	p := &Pointer[T]{d: d}
	p.p.Store(v)
	return p
}

// Domain returns the domain the pointer is published under.
func (p *Pointer[T]) Domain() *Domain {
	return p.d
}

// Load returns the current value. The result is only protected while the
// caller is inside a read section of the pointer's domain.
func (p *Pointer[T]) Load() *T {
	return p.p.Load()
}

// Store publishes v without waiting. The previous value may still be in
// use by readers; pair with Domain.Synchronize or a Reclaimer before
// reclaiming it.
func (p *Pointer[T]) Store(v *T) {
	p.p.Store(v)
}

// Swap publishes v and waits for a grace period. The returned old value is
// no longer referenced by any reader. If err is non-nil the wait did not
// happen and old must not be reclaimed.
func (p *Pointer[T]) Swap(v *T) (old *T, err error) {
	old = p.p.Swap(v)
	return old, p.d.Synchronize()
}

// SwapExpedited is like Swap but waits with Domain.SynchronizeExpedited.
func (p *Pointer[T]) SwapExpedited(v *T) (old *T, err error) {
	old = p.p.Swap(v)
	return old, p.d.SynchronizeExpedited()
}
