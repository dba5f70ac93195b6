package tenant

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Resolution modes. Anything else falls back to the default tenant.
const (
	ModeHeader    = "header"
	ModeHost      = "host"
	ModeDomain    = "domain"
	ModeSubdomain = "subdomain"

	DefaultHeaderName = "X-Tenant-ID"
)

var errNoHost = errors.New("no host in X-Forwarded-Host, Forwarded or Host")

// Config selects how a request is mapped to a tenant identifier.
type Config struct {
	Enabled    bool
	Resolution string
	HeaderName string    // "" => DefaultHeaderName
	DefaultID  uuid.UUID // used when disabled, in header mode without a header, and for unknown modes
}

func (c Config) headerName() string {
	if c.HeaderName == "" {
		return DefaultHeaderName
	}
	return c.HeaderName
}

// ResolveIdentifier reads r according to cfg. It fails only in host-style
// modes when no host can be found, with a *ResolveError of class ErrBadRequest.
func ResolveIdentifier(r *http.Request, cfg Config) (Identifier, error) {
	if !cfg.Enabled {
		return OpaqueIdentifier(cfg.DefaultID), nil
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Resolution)) {
	case ModeHeader:
		v := strings.TrimSpace(r.Header.Get(cfg.headerName()))
		if v == "" {
			return OpaqueIdentifier(cfg.DefaultID), nil
		}
		return Classify(v), nil

	case ModeHost, ModeDomain, ModeSubdomain:
		host, ok := RequestHost(r)
		if !ok {
			return Identifier{}, &ResolveError{Class: ErrBadRequest, Err: errNoHost}
		}
		return HostIdentifier(host), nil

	default:
		return OpaqueIdentifier(cfg.DefaultID), nil
	}
}

// RequestHost returns the raw (unnormalized) host seen by the client, in
// priority order: first X-Forwarded-Host entry, host= of the first Forwarded
// element, then the Host header. Empty values fall through.
func RequestHost(r *http.Request) (string, bool) {
	if v := r.Header.Get("X-Forwarded-Host"); v != "" {
		first, _, _ := strings.Cut(v, ",")
		if h := strings.TrimSpace(first); h != "" {
			return h, true
		}
	}
	if v := r.Header.Get("Forwarded"); v != "" {
		if h, ok := forwardedHost(v); ok {
			return h, true
		}
	}
	// net/http moves the Host header into r.Host for server requests
	if h := strings.TrimSpace(r.Host); h != "" {
		return h, true
	}
	if h := strings.TrimSpace(r.Header.Get("Host")); h != "" {
		return h, true
	}
	return "", false
}

// forwardedHost extracts host= from the first element of an RFC 7239 header,
// e.g. `for=1.2.3.4;host="acme.example";proto=https, for=5.6.7.8`.
func forwardedHost(v string) (string, bool) {
	first, _, _ := strings.Cut(v, ",")
	for _, pair := range strings.Split(first, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "host") {
			continue
		}
		value = strings.TrimSpace(strings.Trim(strings.TrimSpace(value), `"`))
		return value, value != ""
	}
	return "", false
}
