package tenantcache

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPayload is returned by Set on a Positive cache given no bytes.
	ErrEmptyPayload = errors.New("tenantcache: positive entries need a non-empty payload")
	// ErrMarkerPayload is returned by Set on a Negative cache given any bytes.
	ErrMarkerPayload = errors.New("tenantcache: negative entries carry no payload")
)

// ProviderError wraps a failing provider call.
type ProviderError struct {
	Op  string // "get", "set", "del"
	Key string // logical key, without namespace
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("tenantcache: provider %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
