// Package tenantcache implements a provider-agnostic, TTL-bounded byte cache
// used to memoize tenant lookups. A service keeps two instances: a Positive
// cache holding encoded tenant records and a Negative cache holding
// "known absent" markers.
//
// Components:
//   - Provider: byte store with TTL (e.g. in-memory LRU, Ristretto, BigCache, Redis).
//   - Cache: envelope framing, lazy expiry, self-healing and exact hit/miss counters.
//   - tenant: identifier resolution, the cache-aside lookup and HTTP middleware.
//
// Keys:
//
//	<name>:<kind>:<value>  - e.g. tenant:positive:slug:acme
//
// Every stored value is framed with its mode, insertion time and TTL so an
// entry past its TTL reads as a miss no matter when the provider evicts it.
package tenantcache
