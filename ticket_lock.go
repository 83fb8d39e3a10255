package srcu

import (
	"sync/atomic"
)

// TicketLock is a fair, FIFO mutual-exclusion lock.
//
// A Domain uses it as its writer lock: grace periods on one domain are
// computed strictly in the order their writers arrived, so a stream of
// Synchronize calls cannot starve an earlier caller. Waiters spin briefly
// and then back off with short sleeps, which suits a lock that is held for
// the length of a whole grace period.
//
// The zero value is an unlocked lock.
type TicketLock struct {
	_       noCopy
	next    atomic.Uint32
	serving atomic.Uint32
}

// Lock takes a ticket and waits until it is served.
func (m *TicketLock) Lock() {
	ticket := m.next.Add(1) - 1
	var spins int
	for m.serving.Load() != ticket {
		delay(&spins)
	}
}

// Unlock serves the next ticket.
func (m *TicketLock) Unlock() {
	m.serving.Add(1)
}

// waiters reports how many goroutines hold or wait for the lock.
func (m *TicketLock) waiters() uint32 {
	return m.next.Load() - m.serving.Load()
}
