package intern

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Sumatoshi-tech/stringpool/pkg/intern/arena"
)

// metricNamespace prefixes every exported metric name.
const metricNamespace = "stringpool"

// StatsSource is the introspection surface the collector scrapes. All
// interner flavors and the Reader satisfy it.
type StatsSource interface {
	Len() int
	MemoryUsage() int64
	MaxMemoryUsage() int64
}

// activitySource is satisfied by flavors that additionally track
// hit/miss counters (currently ThreadedInterner).
type activitySource interface {
	Stats() Stats
}

// Collector exposes interner statistics as Prometheus metrics. It is
// pull-based: nothing is recorded on the interning hot path beyond the
// counters the interner already keeps.
type Collector struct {
	src StatsSource

	strings     *prometheus.Desc
	memory      *prometheus.Desc
	memoryLimit *prometheus.Desc
	hits        *prometheus.Desc
	misses      *prometheus.Desc
	orphaned    *prometheus.Desc
}

// NewCollector creates a collector for src. The pool label distinguishes
// multiple interners registered in one registry.
func NewCollector(src StatsSource, pool string) *Collector {
	labels := prometheus.Labels{"pool": pool}

	return &Collector{
		src: src,
		strings: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "strings"),
			"Number of distinct interned strings.",
			nil, labels),
		memory: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "memory_bytes"),
			"Arena byte footprint.",
			nil, labels),
		memoryLimit: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "memory_limit_bytes"),
			"Configured arena byte cap; absent when unlimited.",
			nil, labels),
		hits: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "hits_total"),
			"Interning calls answered from the index.",
			nil, labels),
		misses: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "misses_total"),
			"Interning calls that published a new string.",
			nil, labels),
		orphaned: prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, "", "orphaned_keys_total"),
			"Tentative keys discarded by racing inserts.",
			nil, labels),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.strings
	ch <- c.memory
	ch <- c.memoryLimit
	ch <- c.hits
	ch <- c.misses
	ch <- c.orphaned
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.strings, prometheus.GaugeValue, float64(c.src.Len()))
	ch <- prometheus.MustNewConstMetric(c.memory, prometheus.GaugeValue, float64(c.src.MemoryUsage()))

	if limit := c.src.MaxMemoryUsage(); limit != arena.NoLimit {
		ch <- prometheus.MustNewConstMetric(c.memoryLimit, prometheus.GaugeValue, float64(limit))
	}

	active, ok := c.src.(activitySource)
	if !ok {
		return
	}

	stats := active.Stats()

	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(stats.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(stats.Misses))
	ch <- prometheus.MustNewConstMetric(c.orphaned, prometheus.CounterValue, float64(stats.Orphaned))
}
