package srcu

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrDestroyed is the panic value raised when a destroyed Domain is used.
	ErrDestroyed = errors.New("srcu: use of destroyed domain")

	// ErrInvalidConfig is the cause of every option validation failure.
	ErrInvalidConfig = errors.New("srcu: invalid configuration")

	// ErrReclaimerClosed is returned by Reclaimer.Call after Close.
	ErrReclaimerClosed = errors.New("srcu: reclaimer closed")
)

func configError(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidConfig, format, args...)
}

// AllocationError is returned by New when the reader slot storage cannot
// be obtained. No Domain is returned alongside it.
type AllocationError struct {
	Slots int
	Err   error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("srcu: cannot allocate %d reader slots: %v", e.Slots, e.Err)
}

func (e *AllocationError) Unwrap() error {
	return e.Err
}

// LeakWarning is returned by Destroy when readers are still inside the
// domain. It is a diagnostic, not a failure of the primitive: the storage
// is left in place so the leaked readers can still exit, and Destroy may be
// retried afterwards.
type LeakWarning struct {
	Domain string
	Active int64
}

func (e *LeakWarning) Error() string {
	return fmt.Sprintf("srcu: domain %s destroyed with %d active readers", e.Domain, e.Active)
}

// ReentrantWaitError is returned by Synchronize when the calling goroutine
// is inside a read section of the same domain. Waiting would deadlock.
type ReentrantWaitError struct {
	Domain string
	Depth  int32
}

func (e *ReentrantWaitError) Error() string {
	return fmt.Sprintf("srcu: synchronize on domain %s from within %d read section(s) of it",
		e.Domain, e.Depth)
}
