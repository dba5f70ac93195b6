package tenantcache

import "time"

const (
	DefaultPositiveTTL = 5 * time.Minute
	DefaultNegativeTTL = 60 * time.Second
	DefaultCapacity    = 1000
)

// entryCost is charged per entry so provider capacity counts entries.
const entryCost = 1

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

func defaultTTL(m Mode) time.Duration {
	if m == Negative {
		return DefaultNegativeTTL
	}
	return DefaultPositiveTTL
}
