package tenant

import (
	"strings"

	"github.com/google/uuid"
)

// Kind classifies an Identifier.
type Kind uint8

const (
	KindOpaqueID Kind = iota + 1 // canonical UUID
	KindSlug                     // anything that is not a UUID
	KindHost                     // normalized request host
)

func (k Kind) String() string {
	switch k {
	case KindOpaqueID:
		return "uuid"
	case KindSlug:
		return "slug"
	case KindHost:
		return "host"
	default:
		return "unknown"
	}
}

// Identifier is the transient result of reading a request. It is only used
// to build a cache key and pick a store lookup.
type Identifier struct {
	Value string
	Kind  Kind
	ID    uuid.UUID // set when Kind == KindOpaqueID
}

// Classify turns a raw header or admin value into an Identifier.
// Values that parse as a UUID become KindOpaqueID in canonical form,
// everything else is a KindSlug with its case preserved.
func Classify(raw string) Identifier {
	raw = strings.TrimSpace(raw)
	if id, err := uuid.Parse(raw); err == nil {
		return OpaqueIdentifier(id)
	}
	return Identifier{Value: raw, Kind: KindSlug}
}

func OpaqueIdentifier(id uuid.UUID) Identifier {
	return Identifier{Value: id.String(), Kind: KindOpaqueID, ID: id}
}

func HostIdentifier(host string) Identifier {
	return Identifier{Value: NormalizeHost(host), Kind: KindHost}
}

// CacheKey is the key shared by the positive and negative caches.
func (id Identifier) CacheKey() string {
	return CacheKey(id.Kind, id.Value)
}

func (id Identifier) String() string { return id.CacheKey() }

// CacheKey builds "<kind>:<value>". UUIDs are canonicalized and hosts are
// normalized, so equivalent inputs share one key.
func CacheKey(kind Kind, value string) string {
	switch kind {
	case KindOpaqueID:
		if id, err := uuid.Parse(strings.TrimSpace(value)); err == nil {
			value = id.String()
		}
	case KindHost:
		value = NormalizeHost(value)
	}
	return kind.String() + ":" + value
}

// NormalizeHost drops the port and lowercases. "[::1]:8080" becomes "::1".
// Bare IPv6 literals without brackets are kept whole.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(host)
	switch {
	case strings.HasPrefix(host, "["):
		if end := strings.IndexByte(host, ']'); end > 0 {
			host = host[1:end]
		}
	case strings.Count(host, ":") == 1:
		host = host[:strings.IndexByte(host, ':')]
	}
	host = strings.TrimSuffix(host, ".")
	return strings.ToLower(host)
}
