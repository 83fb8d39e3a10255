package srcu

import (
	"sync/atomic"
	"time"
)

type domainStats struct {
	normal    atomic.Uint64
	expedited atomic.Uint64
	sleeps    atomic.Uint64
	waitNanos atomic.Int64
}

func (s *domainStats) record(expedited bool, sleeps uint64, elapsed time.Duration) {
	if expedited {
		s.expedited.Add(1)
	} else {
		s.normal.Add(1)
	}
	s.sleeps.Add(sleeps)
	s.waitNanos.Add(int64(elapsed))
}

// Stats is a point-in-time view of a Domain's counters. Fields are read
// independently and need not be mutually consistent.
type Stats struct {
	Name string

	// BatchesCompleted is the raw epoch (see Domain.BatchesCompleted).
	BatchesCompleted uint64
	// Completed is the number of grace periods that finished draining.
	Completed uint64

	GracePeriods          uint64
	ExpeditedGracePeriods uint64
	// Sleeps counts bounded sleeps taken while draining.
	Sleeps uint64
	// WaitTime is the total time spent in Synchronize calls, including
	// waiting for the writer lock.
	WaitTime time.Duration

	// PendingWriters is the number of writers holding or queued for the
	// writer lock.
	PendingWriters uint32
	ActiveReaders  int64
	Destroyed      bool
}

// Stats returns the domain's counters. It never blocks on grace periods and
// is safe to call on a destroyed domain.
func (d *Domain) Stats() Stats {
	return Stats{
		Name:                  d.cfg.name,
		BatchesCompleted:      d.BatchesCompleted(),
		Completed:             d.done.load(),
		GracePeriods:          d.stats.normal.Load(),
		ExpeditedGracePeriods: d.stats.expedited.Load(),
		Sleeps:                d.stats.sleeps.Load(),
		WaitTime:              time.Duration(d.stats.waitNanos.Load()),
		PendingWriters:        d.mu.waiters(),
		ActiveReaders:         d.ActiveReaders(),
		Destroyed:             d.arena.Load() == nil,
	}
}
