package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/tenantcache"
)

// Hooks counts cache events. Keys are never used as labels.
type Hooks struct {
	selfHeals      *prometheus.CounterVec
	setRejected    prometheus.Counter
	providerErrors *prometheus.CounterVec
}

var _ tenantcache.Hooks = (*Hooks)(nil)

func NewHooks(namespace string) *Hooks {
	return &Hooks{
		selfHeals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "self_heals_total",
			Help:      "Entries dropped on read because they failed validation.",
		}, []string{"reason"}),
		setRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "set_rejected_total",
			Help:      "Writes the provider declined to admit.",
		}),
		providerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "provider_errors_total",
			Help:      "Failed provider calls.",
		}, []string{"op"}),
	}
}

// Collectors returns everything Hooks needs registered.
func (h *Hooks) Collectors() []prometheus.Collector {
	return []prometheus.Collector{h.selfHeals, h.setRejected, h.providerErrors}
}

func (h *Hooks) SelfHeal(_ string, reason string) { h.selfHeals.WithLabelValues(reason).Inc() }
func (h *Hooks) ProviderSetRejected(string)       { h.setRejected.Inc() }
func (h *Hooks) ProviderError(op, _ string, _ error) {
	h.providerErrors.WithLabelValues(op).Inc()
}
