// Package apierr holds the error vocabulary shared by every upstream HTTP
// client in the module (speech synthesis and language model providers).
//
// Adapters classify failures at their boundary: a non-2xx response becomes a
// *ProviderError carrying the provider name, status code and response body,
// and it unwraps to one of the sentinels below so callers can branch with
// errors.Is without knowing which provider produced it.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for upstream failures.
var (
	// ErrRateLimit indicates the provider throttled the request (temporary).
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrQuotaExceeded indicates the account ran out of credits or quota.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrTimeout indicates a request timed out or the provider was unavailable.
	ErrTimeout = errors.New("request timeout")

	// ErrAuthFailed indicates the credential was rejected.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrBadRequest indicates the provider rejected the request payload.
	ErrBadRequest = errors.New("bad request")

	// ErrUpstream is the catch-all for any other non-2xx response.
	ErrUpstream = errors.New("upstream error")
)

// maxErrorBody caps how much of a response body is kept in a ProviderError.
const maxErrorBody = 2048

// ProviderError is a non-2xx response from an upstream provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

// NewProviderError builds a ProviderError, truncating body to a readable size.
func NewProviderError(provider string, statusCode int, body []byte) *ProviderError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &ProviderError{Provider: provider, StatusCode: statusCode, Body: string(body)}
}

func (e *ProviderError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Unwrap returns the sentinel matching the status code.
func (e *ProviderError) Unwrap() error {
	return ClassifyStatus(e.StatusCode)
}

// ClassifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 2xx codes.
func ClassifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return ErrRateLimit
	case code == http.StatusPaymentRequired:
		return ErrQuotaExceeded
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return ErrAuthFailed
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout,
		code == http.StatusBadGateway, code == http.StatusServiceUnavailable:
		return ErrTimeout
	case code >= 400 && code < 500:
		return ErrBadRequest
	default:
		return ErrUpstream
	}
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrTimeout)
}
