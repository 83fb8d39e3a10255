package srcu

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	batchesDesc = prometheus.NewDesc(
		"srcu_batches_completed_total",
		"Epoch flips of the domain.",
		[]string{"domain"}, nil,
	)
	gracePeriodsDesc = prometheus.NewDesc(
		"srcu_grace_periods_total",
		"Grace periods completed, by mode.",
		[]string{"domain", "mode"}, nil,
	)
	sleepsDesc = prometheus.NewDesc(
		"srcu_grace_period_sleeps_total",
		"Bounded sleeps taken while waiting for readers to drain.",
		[]string{"domain"}, nil,
	)
	waitDesc = prometheus.NewDesc(
		"srcu_grace_period_wait_seconds_total",
		"Total time spent in grace-period waits.",
		[]string{"domain"}, nil,
	)
	pendingWritersDesc = prometheus.NewDesc(
		"srcu_pending_writers",
		"Writers holding or queued for the writer lock.",
		[]string{"domain"}, nil,
	)
	activeReadersDesc = prometheus.NewDesc(
		"srcu_active_readers",
		"Approximate number of readers inside the domain.",
		[]string{"domain"}, nil,
	)
)

// Collector exports the statistics of a set of domains to Prometheus.
// Destroyed domains are skipped.
type Collector struct {
	mu      sync.Mutex
	domains []*Domain
}

var _ prometheus.Collector = &Collector{}

// NewCollector returns a collector for the given domains.
func NewCollector(domains ...*Domain) *Collector {
	return &Collector{domains: domains}
}

// Add starts exporting d.
func (c *Collector) Add(d *Domain) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.domains = append(c.domains, d)
}

// Describe implements the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- batchesDesc
	ch <- gracePeriodsDesc
	ch <- sleepsDesc
	ch <- waitDesc
	ch <- pendingWritersDesc
	ch <- activeReadersDesc
}

// Collect implements the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	domains := append([]*Domain(nil), c.domains...)
	c.mu.Unlock()

	for _, d := range domains {
		s := d.Stats()
		if s.Destroyed {
			continue
		}
		ch <- prometheus.MustNewConstMetric(batchesDesc, prometheus.CounterValue,
			float64(s.BatchesCompleted), s.Name)
		ch <- prometheus.MustNewConstMetric(gracePeriodsDesc, prometheus.CounterValue,
			float64(s.GracePeriods), s.Name, "normal")
		ch <- prometheus.MustNewConstMetric(gracePeriodsDesc, prometheus.CounterValue,
			float64(s.ExpeditedGracePeriods), s.Name, "expedited")
		ch <- prometheus.MustNewConstMetric(sleepsDesc, prometheus.CounterValue,
			float64(s.Sleeps), s.Name)
		ch <- prometheus.MustNewConstMetric(waitDesc, prometheus.CounterValue,
			s.WaitTime.Seconds(), s.Name)
		ch <- prometheus.MustNewConstMetric(pendingWritersDesc, prometheus.GaugeValue,
			float64(s.PendingWriters), s.Name)
		ch <- prometheus.MustNewConstMetric(activeReadersDesc, prometheus.GaugeValue,
			float64(s.ActiveReaders), s.Name)
	}
}
