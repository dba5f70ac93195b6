package tenant

import (
	"errors"
	"fmt"
	"net/http"
)

// Error classes. Every error the Service returns matches exactly one of
// ErrBadRequest, ErrNotFound or ErrInternal via errors.Is.
var (
	ErrBadRequest        = errors.New("tenant: bad request")
	ErrNotFound          = errors.New("tenant: not found")
	ErrInternal          = errors.New("tenant: internal error")
	ErrInactive          = errors.New("tenant: inactive")
	ErrNoTenantInContext = errors.New("tenant: no tenant in context")
)

// ResolveError carries the class, the cache key involved (if any) and the cause.
type ResolveError struct {
	Class error
	Key   string
	Err   error
}

func (e *ResolveError) Error() string {
	msg := e.Class.Error()
	if e.Key != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolveError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Class}
	}
	return []error{e.Class, e.Err}
}

// StatusCode maps an error to the HTTP status a handler should answer with.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInactive):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
