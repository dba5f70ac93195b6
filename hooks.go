package tenantcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// An entry was deleted by the cache on read.
	// reason ∈ {"corrupt", "mode_mismatch", "payload_shape", "value_decode"}
	SelfHeal(storageKey, reason string)

	// Provider returned ok=false on Set (admission policy or backpressure).
	ProviderSetRejected(storageKey string)

	// Provider call failed. op ∈ {"get", "set", "del"}
	ProviderError(op, storageKey string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SelfHeal(string, string)             {}
func (NopHooks) ProviderSetRejected(string)          {}
func (NopHooks) ProviderError(string, string, error) {}

// MultiHooks fans every event out to each member in order.
type MultiHooks []Hooks

func (m MultiHooks) SelfHeal(storageKey, reason string) {
	for _, h := range m {
		h.SelfHeal(storageKey, reason)
	}
}

func (m MultiHooks) ProviderSetRejected(storageKey string) {
	for _, h := range m {
		h.ProviderSetRejected(storageKey)
	}
}

func (m MultiHooks) ProviderError(op, storageKey string, err error) {
	for _, h := range m {
		h.ProviderError(op, storageKey, err)
	}
}
