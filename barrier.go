package srcu

import (
	"runtime"
)

// barrier is the global ordering barrier a grace period issues after the
// epoch flip and again after the drain.
//
// When wait returns, every Enter that had read the epoch but not yet
// published its increment when wait started has published it, and a full
// fence has been executed. An Enter announces itself in its slot before it
// reads the epoch, so seeing a slot's pinned count at zero after the flip
// means every Enter that read the old epoch there is done. The two
// implementations differ only in how they wait for that.
type barrier interface {
	wait(d *Domain, a *slotArena)
}

// cooperativeBarrier waits with the spin-then-sleep backoff, yielding the
// P to other work when an Enter is slow to finish.
type cooperativeBarrier struct{}

func (cooperativeBarrier) wait(d *Domain, a *slotArena) {
	d.fence()
	for i := range a.slots {
		s := &a.slots[i]
		var spins int
		for s.pinned.Load() != 0 {
			delay(&spins)
		}
	}
	d.fence()
}

// expeditedBarrier never sleeps. It burns CPU on the writer's P to notice
// the end of a pinned section as soon as possible.
type expeditedBarrier struct{}

func (expeditedBarrier) wait(d *Domain, a *slotArena) {
	d.fence()
	for i := range a.slots {
		s := &a.slots[i]
		var spins int
		for s.pinned.Load() != 0 {
			if !trySpin(&spins) {
				spins = 0
				runtime.Gosched()
			}
		}
	}
	d.fence()
}
