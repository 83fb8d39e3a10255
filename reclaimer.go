package srcu

import (
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchLimit is the most callbacks a Reclaimer runs behind a single
// grace period.
const DefaultBatchLimit = 1024

// Reclaimer defers callbacks until after a grace period of its Domain.
//
// Call queues a callback and returns at once. A background worker takes the
// queued callbacks in batches, waits for one grace period per batch and then
// runs the batch in queue order. Writers that retire many objects share
// grace periods this way instead of paying for one each.
//
// Usage:
//
//	r := srcu.NewReclaimer(d)
//	defer r.Close()
//
//	old := ptr.Load()
//	ptr.Store(next)
//	_ = r.Call(func() error { return old.Close() })
type Reclaimer struct {
	_ noCopy
	d *Domain

	mu     sync.Mutex
	queue  []reclaimCallback
	queued uint64 // sequence of the last queued callback
	closed bool
	failed error // why the worker stopped early, if it did
	kick   chan struct{}

	// invoked counts callbacks that have run.
	invoked completion

	errMu sync.Mutex
	errs  *multierror.Error

	group errgroup.Group
	limit int
	log   logrus.FieldLogger
}

type reclaimCallback struct {
	seq uint64
	fn  func() error
}

// ReclaimerOption configures a Reclaimer.
type ReclaimerOption func(*Reclaimer)

// WithBatchLimit caps the number of callbacks run behind one grace period.
// Values below 1 are ignored.
func WithBatchLimit(n int) ReclaimerOption {
	return func(r *Reclaimer) {
		if n >= 1 {
			r.limit = n
		}
	}
}

// NewReclaimer starts a Reclaimer for d. Close must be called to stop its
// worker.
func NewReclaimer(d *Domain, opts ...ReclaimerOption) *Reclaimer {
	r := &Reclaimer{
		d:     d,
		kick:  make(chan struct{}, 1),
		limit: DefaultBatchLimit,
		log:   d.log.WithField("reclaimer", true),
	}
	for _, o := range opts {
		o(r)
	}
	r.group.Go(r.run)
	return r
}

// Call queues fn to run after a grace period that starts after Call. It
// never blocks. Errors returned by fn are logged and reported by Close.
//
// Call fails with an error wrapping ErrDestroyed once the domain has been
// destroyed, and with ErrReclaimerClosed after Close.
func (r *Reclaimer) Call(fn func() error) error {
	if r.d.arena.Load() == nil {
		return errors.Wrap(ErrDestroyed, "reclaimer call")
	}
	r.mu.Lock()
	if r.failed != nil {
		r.mu.Unlock()
		return r.failed
	}
	if r.closed {
		r.mu.Unlock()
		return ErrReclaimerClosed
	}
	r.queued++
	r.queue = append(r.queue, reclaimCallback{seq: r.queued, fn: fn})
	r.mu.Unlock()

	select {
	case r.kick <- struct{}{}:
	default:
	}
	return nil
}

// Barrier waits until every callback queued before it has run.
func (r *Reclaimer) Barrier() {
	r.mu.Lock()
	target := r.queued
	r.mu.Unlock()
	r.invoked.waitAtLeast(target)
}

// Pending returns the number of queued callbacks that have not run yet.
func (r *Reclaimer) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.queued - r.invoked.load())
}

// Close stops accepting callbacks, runs the ones already queued and stops
// the worker. It returns the errors of all failed or dropped callbacks
// combined, together with the reason the worker stopped if it stopped
// early. Calling Close more than once returns the same result.
func (r *Reclaimer) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	select {
	case r.kick <- struct{}{}:
	default:
	}

	werr := r.group.Wait()
	r.errMu.Lock()
	defer r.errMu.Unlock()
	if werr != nil {
		return multierror.Append(werr, r.errs).ErrorOrNil()
	}
	return r.errs.ErrorOrNil()
}

func (r *Reclaimer) run() error {
	for {
		batch, ok := r.next()
		if !ok {
			return nil
		}
		if err := r.d.synchronize(cooperativeBarrier{}, false); err != nil {
			err = errors.Wrap(err, "reclaimer grace period")
			r.abort(batch, err)
			return err
		}
		for _, cb := range batch {
			r.invoke(cb)
		}
		r.invoked.advance(uint64(len(batch)))
	}
}

// abort stops the reclaimer after a failed grace period. The callbacks of
// batch and everything still queued are dropped without running, each
// recorded as failed, and counted as done so Barrier does not hang.
func (r *Reclaimer) abort(batch []reclaimCallback, cause error) {
	r.mu.Lock()
	r.failed = cause
	r.closed = true
	dropped := append(batch, r.queue...)
	r.queue = nil
	r.mu.Unlock()

	r.log.WithError(cause).WithField("dropped", len(dropped)).
		Error("reclaimer stopped, dropping queued callbacks")
	r.errMu.Lock()
	for _, cb := range dropped {
		r.errs = multierror.Append(r.errs, errors.Wrapf(cause, "callback %d dropped", cb.seq))
	}
	r.errMu.Unlock()
	r.invoked.advance(uint64(len(dropped)))
}

// next blocks until callbacks are queued and takes up to limit of them. It
// returns false once the reclaimer is closed and drained.
func (r *Reclaimer) next() ([]reclaimCallback, bool) {
	r.mu.Lock()
	for len(r.queue) == 0 {
		if r.closed {
			r.mu.Unlock()
			return nil, false
		}
		r.mu.Unlock()
		<-r.kick
		r.mu.Lock()
	}
	n := min(len(r.queue), r.limit)
	batch := r.queue[:n:n]
	r.queue = r.queue[n:]
	r.mu.Unlock()
	return batch, true
}

func (r *Reclaimer) invoke(cb reclaimCallback) {
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = errors.Errorf("callback panicked: %v", p)
			}
		}()
		return cb.fn()
	}()
	if err == nil {
		return
	}

	r.log.WithField("seq", cb.seq).WithError(err).Error("reclaim callback failed")
	r.errMu.Lock()
	r.errs = multierror.Append(r.errs, errors.Wrapf(err, "callback %d", cb.seq))
	r.errMu.Unlock()
}
