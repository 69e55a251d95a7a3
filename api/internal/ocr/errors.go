package ocr

import (
	"fmt"
	"net/http"
)

// UpstreamError is a non-2xx answer from the provider. Body is captured when
// the response is read, so callers never touch a consumed stream.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Status     string // reason phrase, e.g. "Bad Gateway"
	Message    string // provider-supplied error message, if any
	Body       string // truncated raw body, for logs only
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %d %s: %s", e.Provider, e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %d %s", e.Provider, e.StatusCode, e.Status)
}

func (e *UpstreamError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// ReasonPhrase never returns an empty string.
func (e *UpstreamError) ReasonPhrase() string {
	if e.Status != "" {
		return e.Status
	}
	if s := http.StatusText(e.StatusCode); s != "" {
		return s
	}
	return "Upstream error"
}

// TransportError wraps failures that happened before a provider status was
// available: DNS, TLS, connection resets, deadlines.
type TransportError struct {
	Provider string
	Timeout  bool
	Err      error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: request timed out: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: transport: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
