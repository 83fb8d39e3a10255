package srcu

// Cookie names a grace period a caller wants to see completed. Snapshot
// returns one; Poll and WaitCookie test it against the grace periods that
// have finished since.
type Cookie uint64

// Snapshot returns a cookie for the first grace period that starts after
// this call. Once it has completed, every reader that was inside the domain
// at the time of Snapshot has exited.
//
// Snapshot itself never starts a grace period; some other writer, or a
// later Synchronize by the caller, has to.
func (d *Domain) Snapshot() Cookie {
	return Cookie(d.epoch.Load() + 1)
}

// Poll reports whether the grace period named by c has completed.
func (d *Domain) Poll(c Cookie) bool {
	return d.done.load() >= uint64(c)
}

// WaitCookie blocks until the grace period named by c has completed.
func (d *Domain) WaitCookie(c Cookie) {
	d.done.waitAtLeast(uint64(c))
}

// Completed returns the number of grace periods that have finished
// draining. It trails BatchesCompleted by one while a grace period is in
// flight.
func (d *Domain) Completed() uint64 {
	return d.done.load()
}
