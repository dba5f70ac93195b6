// Package metrics exposes tenant cache counters to Prometheus.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/tenantcache"
	"github.com/unkn0wn-root/tenantcache/tenant"
)

const subsystem = "tenant_cache"

// StatsSource is satisfied by *tenant.Service.
type StatsSource interface {
	Stats() tenant.Stats
}

// Collector reads a Stats snapshot on every scrape so the counters stay
// owned by the caches.
type Collector struct {
	src StatsSource

	hits            *prometheus.Desc
	misses          *prometheus.Desc
	evictions       *prometheus.Desc
	entries         *prometheus.Desc
	negativeInserts *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(namespace string, src StatsSource) *Collector {
	name := func(n string) string { return prometheus.BuildFQName(namespace, subsystem, n) }
	labels := []string{"cache"}
	return &Collector{
		src:             src,
		hits:            prometheus.NewDesc(name("hits_total"), "Cache lookups answered from the cache.", labels, nil),
		misses:          prometheus.NewDesc(name("misses_total"), "Cache lookups that fell through.", labels, nil),
		evictions:       prometheus.NewDesc(name("evictions_total"), "Entries dropped for capacity or TTL.", labels, nil),
		entries:         prometheus.NewDesc(name("entries"), "Entries currently held (0 if the provider cannot tell).", labels, nil),
		negativeInserts: prometheus.NewDesc(name("negative_inserts_total"), "Not-found markers written.", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.evictions
	ch <- c.entries
	ch <- c.negativeInserts
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()
	c.collectCache(ch, "positive", st.Positive)
	c.collectCache(ch, "negative", st.Negative)
	ch <- prometheus.MustNewConstMetric(c.negativeInserts, prometheus.CounterValue, float64(st.NegativeInserts))
}

func (c *Collector) collectCache(ch chan<- prometheus.Metric, label string, s tenantcache.Stats) {
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits), label)
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses), label)
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions), label)
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Entries), label)
}

// Register adds collectors to reg (or the default registerer if nil).
// Collectors that are already registered are skipped.
func Register(reg prometheus.Registerer, cs ...prometheus.Collector) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}
