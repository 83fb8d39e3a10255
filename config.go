package srcu

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// ============================================================================
// Configuration
// ============================================================================

const (
	// DefaultReaderDelay is how long a writer busy-waits for readers of the
	// old bucket before it starts sleeping. Readers usually leave within a
	// few microseconds, so this keeps short grace periods off the sleep path.
	DefaultReaderDelay = 10 * time.Microsecond

	// DefaultSleepInterval is the bounded sleep between drain checks once
	// the reader delay has passed. It plays the role of one scheduler tick.
	DefaultSleepInterval = time.Millisecond

	// maxSlots bounds the reader slot array.
	maxSlots = 1 << 16
)

// Config defines configurable options for Domain creation.
// Neither delay affects correctness, only how quickly a writer notices
// that the last reader has left.
type Config struct {
	// name labels the domain in logs and metrics.
	name string

	// slots is the number of per-P reader slots. Zero means one per P,
	// sized from GOMAXPROCS and NumCPU at creation. The value is rounded
	// up to a power of two.
	slots int

	// readerDelay is the initial busy-delay of a grace period.
	readerDelay time.Duration

	// sleepInterval is the bounded sleep of the drain loop.
	sleepInterval time.Duration

	// checkReentrancy makes Synchronize report waits from inside a read
	// section of the same domain instead of deadlocking.
	checkReentrancy bool

	// logger receives domain diagnostics.
	logger logrus.FieldLogger
}

// Option configures a Domain.
type Option func(*Config)

// WithName sets the name used in logs and metrics.
func WithName(name string) Option {
	return func(c *Config) {
		c.name = name
	}
}

// WithSlots sets the number of reader slots. Pass 0 for the default of one
// slot per P. Ps beyond the slot count share slots, which is correct but
// adds contention.
func WithSlots(n int) Option {
	return func(c *Config) {
		c.slots = n
	}
}

// WithReaderDelay sets the busy-delay a writer grants readers before it
// falls back to sleeping.
func WithReaderDelay(d time.Duration) Option {
	return func(c *Config) {
		c.readerDelay = d
	}
}

// WithSleepInterval sets the sleep between drain checks.
func WithSleepInterval(d time.Duration) Option {
	return func(c *Config) {
		c.sleepInterval = d
	}
}

// WithReentrancyCheck enables detection of Synchronize calls made from
// inside a read section of the same domain. Such calls then fail with
// *ReentrantWaitError instead of hanging forever.
//
// The check tracks read sections per goroutine, so it costs a map update
// on every Enter and Exit, and Enter/Exit pairs must run on the same
// goroutine while it is enabled.
func WithReentrancyCheck() Option {
	return func(c *Config) {
		c.checkReentrancy = true
	}
}

// WithLogger sets the logger for domain diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Config) {
		c.logger = l
	}
}

var domainSeq atomic.Uint64

func newConfig(opts ...Option) (*Config, error) {
	c := &Config{
		readerDelay:   DefaultReaderDelay,
		sleepInterval: DefaultSleepInterval,
	}
	for _, o := range opts {
		o(c)
	}

	if c.name == "" {
		c.name = fmt.Sprintf("srcu-%d", domainSeq.Add(1))
	}
	if c.readerDelay < 0 {
		return nil, configError("negative reader delay %v", c.readerDelay)
	}
	if c.sleepInterval <= 0 {
		return nil, configError("non-positive sleep interval %v", c.sleepInterval)
	}
	if c.logger == nil {
		c.logger = log
	}
	c.logger = c.logger.WithField("domain", c.name)
	return c, nil
}

// slotCount returns the number of reader slots to allocate.
func (c *Config) slotCount() int {
	n := c.slots
	if n == 0 {
		n = max(runtime.GOMAXPROCS(0), runtime.NumCPU())
	}
	if n < 0 || n > maxSlots {
		return n
	}
	return nextPowOf2(n)
}
