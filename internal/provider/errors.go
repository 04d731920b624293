// Package provider wraps external data providers with per-instance rate
// limiting, a TTL lookup cache, error classification, and ordered fallback.
package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-prospector/internal/resilience"
)

// ErrNotConfigured is returned by provider clients built without the
// credentials they need. Callers degrade to their fallback.
var ErrNotConfigured = eris.New("provider: not configured")

// ErrDisabled is wrapped in the Unauthorized error returned after a client
// has been disabled by a credential failure.
var ErrDisabled = eris.New("provider: disabled after unauthorized response")

// Kind classifies provider failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindPlanLimitation
	KindRateLimited
	KindTransient
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindPlanLimitation:
		return "plan_limitation"
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a classified failure from a named provider.
type Error struct {
	Provider   string
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified provider error.
func NewError(providerName string, kind Kind, statusCode int, err error) *Error {
	if err == nil {
		err = eris.New(kind.String())
	}
	return &Error{Provider: providerName, Kind: kind, StatusCode: statusCode, Err: err}
}

// KindOf returns the Kind of err. Unclassified network failures count as
// transient.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if resilience.IsTransientNetwork(err) {
		return KindTransient
	}
	return KindUnknown
}

// IsKind reports whether err is classified as k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// planMarkers appear in 402/403 bodies when the credential's tier lacks a
// capability.
var planMarkers = []string{"api_inaccessible", "upgrade", "not available on your plan", "plan does not"}

// Classify maps a non-2xx HTTP response to a provider error. It returns nil
// for 2xx statuses.
func Classify(providerName string, statusCode int, body []byte) *Error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 300 {
		snippet = snippet[:300]
	}
	cause := eris.Errorf("%s: unexpected status %d: %s", providerName, statusCode, snippet)
	lower := strings.ToLower(snippet)

	switch {
	case statusCode == http.StatusUnauthorized:
		return NewError(providerName, KindUnauthorized, statusCode, cause)
	case statusCode == http.StatusPaymentRequired:
		return NewError(providerName, KindPlanLimitation, statusCode, cause)
	case statusCode == http.StatusForbidden:
		for _, m := range planMarkers {
			if strings.Contains(lower, m) {
				return NewError(providerName, KindPlanLimitation, statusCode, cause)
			}
		}
		return NewError(providerName, KindUnauthorized, statusCode, cause)
	case statusCode == http.StatusNotFound:
		return NewError(providerName, KindNotFound, statusCode, cause)
	case statusCode == http.StatusTooManyRequests:
		return NewError(providerName, KindRateLimited, statusCode, cause)
	case resilience.IsTransientHTTPStatus(statusCode):
		return NewError(providerName, KindTransient, statusCode, cause)
	default:
		return NewError(providerName, KindUnknown, statusCode, cause)
	}
}

// Network wraps a transport-level failure (no HTTP response) from a provider.
func Network(providerName string, err error) *Error {
	kind := KindUnknown
	if resilience.IsTransientNetwork(err) {
		kind = KindTransient
	}
	return NewError(providerName, kind, 0, err)
}
