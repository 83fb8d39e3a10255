// Package srcu implements sleepable read-copy-update.
//
// A Domain lets any number of readers traverse a shared structure without
// taking a lock and without ever blocking, while a writer can wait for a
// grace period: when Synchronize returns, every reader that entered the
// domain before the call has exited. Unlike plain RCU, a reader may block
// inside its critical section (on I/O, a channel, or another Domain),
// because it publishes a countable marker instead of relying on the
// scheduler.
//
// Usage:
//
//	d := srcu.MustNew()
//
//	// Reader
//	t := d.Enter()
//	v := shared.Load()
//	use(v)
//	d.Exit(t)
//
//	// Writer
//	old := shared.Swap(next)
//	_ = d.Synchronize()
//	reclaim(old)
package srcu

import (
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/llxisdsh/srcu/internal/opt"
)

// Token identifies the bucket a reader was counted in. Enter returns it and
// the matching Exit must be given the same value.
type Token uint8

// readerSlot holds the reader counts of one P.
//
// c[i] counts readers that entered bucket i on this P minus readers that
// exited bucket i on this P, so a single slot may go negative when readers
// migrate; only the sum over all slots is meaningful.
//
// pinned counts Enter calls on this slot that have announced themselves but
// not yet published their increment. The barrier waits for it to drop to 0.
// It is a count rather than a flag because Ps beyond the arena share slots.
type readerSlot struct {
	c      [2]atomic.Int64
	pinned atomic.Int64
	_      [(opt.CacheLineSize_ - unsafe.Sizeof(struct {
		c      [2]int64
		pinned int64
	}{})%opt.CacheLineSize_) % opt.CacheLineSize_ * opt.PaddingMult_]byte
}

// slotArena is the fixed-size reader slot storage of a Domain. It is never
// resized; Ps beyond its length fold onto existing slots through mask.
type slotArena struct {
	slots []readerSlot
	mask  int
}

func (a *slotArena) slot(p int) *readerSlot {
	return &a.slots[p&a.mask]
}

// Domain is one instance of sleepable RCU protecting one logical shared
// structure. Domains are fully independent of each other.
//
// Create a Domain with New; it must not be copied.
type Domain struct {
	_ noCopy

	// epoch is flipped once per grace period; its low bit selects the
	// bucket new readers are counted in.
	epoch atomic.Uint64

	// mu serializes writers. It is held for a whole grace period.
	mu TicketLock

	// arena is nil once the domain has been destroyed.
	arena atomic.Pointer[slotArena]

	// done counts grace periods that finished draining.
	done completion

	fenceV  atomic.Uint64
	stats   domainStats
	readers *readerTracker

	cfg *Config
	log logrus.FieldLogger
}

// New creates a Domain with zeroed epoch and reader counts.
//
// It fails with *AllocationError if the reader slot storage cannot be
// obtained, or with an error wrapping ErrInvalidConfig if an option is
// out of range. No Domain is returned on error.
func New(opts ...Option) (*Domain, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	n := cfg.slotCount()
	slots, err := allocSlots(n)
	if err != nil {
		return nil, &AllocationError{Slots: n, Err: err}
	}

	d := &Domain{
		cfg: cfg,
		log: cfg.logger,
	}
	d.arena.Store(&slotArena{slots: slots, mask: len(slots) - 1})
	if cfg.checkReentrancy {
		d.readers = &readerTracker{}
	}
	d.log.WithField("slots", len(slots)).Debug("domain created")
	return d, nil
}

// MustNew is like New but panics on error.
func MustNew(opts ...Option) *Domain {
	d, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return d
}

func allocSlots(n int) (slots []readerSlot, err error) {
	if n <= 0 || n > maxSlots || n&(n-1) != 0 {
		return nil, errors.Errorf("slot count %d out of range (1..%d, power of two)", n, maxSlots)
	}
	defer func() {
		if r := recover(); r != nil {
			slots, err = nil, errors.Errorf("%v", r)
		}
	}()
	return make([]readerSlot, n), nil
}

// Name returns the domain name used in logs and metrics.
func (d *Domain) Name() string {
	return d.cfg.name
}

// Destroy tears the domain down.
//
// If any reader is still inside, Destroy logs and returns *LeakWarning and
// leaves the storage in place: the reader can still Exit, and Destroy can
// be called again later. Otherwise it releases the storage and any later
// use of the domain panics with ErrDestroyed. Destroying a destroyed domain
// is a no-op.
func (d *Domain) Destroy() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	a := d.arena.Load()
	if a == nil {
		return nil
	}
	if n := a.activeCount(0) + a.activeCount(1); n != 0 {
		w := &LeakWarning{Domain: d.cfg.name, Active: n}
		d.log.WithField("active", n).Warn("destroying domain with active readers, storage kept")
		return w
	}
	d.arena.Store(nil)
	d.log.Debug("domain destroyed")
	return nil
}

func (d *Domain) mustArena() *slotArena {
	a := d.arena.Load()
	if a == nil {
		panic(ErrDestroyed)
	}
	return a
}

// ============================================================================
// Reader gate
// ============================================================================

// Enter marks the caller as a reader and returns the token to pass to Exit.
//
// Enter never blocks and may be nested, also across different domains. The
// critical section that follows may block; it must not call Synchronize on
// the same domain.
func (d *Domain) Enter() Token {
	a := d.mustArena()

	p := pinP()
	s := a.slot(p.p)
	s.pinned.Add(1)
	idx := d.epoch.Load() & 1
	s.c[idx].Add(1)
	s.pinned.Add(-1)
	p.unpin()

	if d.readers != nil {
		d.readers.enter()
	}
	return Token(idx)
}

// Exit ends a read section started by Enter. It may run on a different
// goroutine or P than the Enter did.
func (d *Domain) Exit(t Token) {
	if t > 1 {
		panic("srcu: invalid token")
	}
	a := d.mustArena()
	if d.readers != nil {
		d.readers.exit()
	}

	p := pinP()
	a.slot(p.p).c[t].Add(-1)
	p.unpin()
}

// Read runs fn inside a read section. The section ends even if fn panics.
func (d *Domain) Read(fn func()) {
	t := d.Enter()
	defer d.Exit(t)
	fn()
}

// ============================================================================
// Quiescence detector
// ============================================================================

// activeCount sums bucket idx over all slots. The result is approximate: a
// reader may be counted on one slot and uncounted on another while the scan
// is in flight.
func (a *slotArena) activeCount(idx int) int64 {
	var sum int64
	for i := range a.slots {
		sum += a.slots[i].c[idx].Load()
	}
	return sum
}

// readersDrained reports whether every reader of bucket idx has exited.
//
// A single zero sum is not enough. A reader that read the epoch before the
// flip can increment on a slot the scan has already passed and decrement on
// one it has not reached yet, cancelling out another long-lived reader.
// After a full fence such a reader's increment is visible, so a second zero
// sum of the same bucket is trustworthy.
func (d *Domain) readersDrained(a *slotArena, idx int) bool {
	if a.activeCount(idx) != 0 {
		return false
	}
	d.fence()
	return a.activeCount(idx) == 0
}

// fence is a full memory barrier: every atomic read-modify-write is
// sequentially consistent in Go.
func (d *Domain) fence() {
	d.fenceV.Add(1)
}

// ActiveReaders returns the approximate number of readers inside the
// domain. It is exact only when no reader is entering or exiting, and 0
// once the domain has been destroyed.
func (d *Domain) ActiveReaders() int64 {
	a := d.arena.Load()
	if a == nil {
		return 0
	}
	return a.activeCount(0) + a.activeCount(1)
}

// ============================================================================
// Grace-period coordinator
// ============================================================================

// Synchronize waits for a grace period: every reader that entered the
// domain before the call has exited when it returns. It may sleep for as
// long as those readers take.
//
// Calling it from inside a read section of the same domain deadlocks,
// unless the domain was created WithReentrancyCheck, in which case it
// returns *ReentrantWaitError. Calling it from a read section of another
// domain is fine as long as the domains do not wait on each other in a
// cycle.
func (d *Domain) Synchronize() error {
	return mustLive(d.synchronize(cooperativeBarrier{}, false))
}

// SynchronizeExpedited is like Synchronize but spins instead of sleeping
// while it orders itself against in-flight Enter calls. It finishes sooner
// at the cost of burning CPU, and is meant for rare latency-sensitive
// updates; batch frequent updates behind one Synchronize instead.
func (d *Domain) SynchronizeExpedited() error {
	return mustLive(d.synchronize(expeditedBarrier{}, true))
}

func mustLive(err error) error {
	if err == ErrDestroyed {
		panic(err)
	}
	return err
}

// synchronize runs one grace period. It returns ErrDestroyed instead of
// panicking so that background callers can report it.
func (d *Domain) synchronize(b barrier, expedited bool) error {
	if d.arena.Load() == nil {
		return ErrDestroyed
	}
	if d.readers != nil {
		if n := d.readers.held(); n > 0 {
			return &ReentrantWaitError{Domain: d.cfg.name, Depth: n}
		}
	}

	start := time.Now()
	d.mu.Lock()
	// Destroy also holds mu, so this is the authoritative check.
	a := d.arena.Load()
	if a == nil {
		d.mu.Unlock()
		return ErrDestroyed
	}

	idx := int(d.epoch.Load() & 1)
	batch := d.epoch.Add(1)
	b.wait(d, a)

	var sleeps uint64
	if !d.readersDrained(a, idx) {
		spinFor(d.cfg.readerDelay)
		for !d.readersDrained(a, idx) {
			time.Sleep(d.cfg.sleepInterval)
			sleeps++
		}
	}

	// Must stay inside mu: a reader whose Exit raced with the last scan is
	// ordered before the next writer can flip the bucket back.
	b.wait(d, a)
	d.done.advance(1)
	d.mu.Unlock()

	elapsed := time.Since(start)
	d.stats.record(expedited, sleeps, elapsed)
	if sleeps > 0 {
		d.log.WithFields(logrus.Fields{
			"batch":     batch,
			"expedited": expedited,
			"sleeps":    sleeps,
			"elapsed":   elapsed,
		}).Debug("slow grace period")
	}
	return nil
}

// BatchesCompleted returns the number of epoch flips so far. It never
// decreases and grows by exactly one per Synchronize. It is read without
// the writer lock and may be stale by the time the caller looks at it.
func (d *Domain) BatchesCompleted() uint64 {
	return d.epoch.Load()
}
