package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a backend error for the retry policy.
type Kind int

// Error kinds
const (
	// KindTransient covers timeouts, rate limits, empty responses and
	// 5xx-equivalent failures. Retried with backoff.
	KindTransient Kind = iota
	// KindFatal covers auth failures and malformed requests. Never retried.
	KindFatal
	// KindParse means the backend responded but the payload failed schema
	// validation. Handled by the separate parse-retry loop, not by backoff.
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	case KindParse:
		return "parse"
	}
	return "unknown"
}

// Error is a typed backend failure. Callers always receive one of these
// from a wrapped client rather than a raw transport error.
type Error struct {
	Backend string
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (%s): %v", e.Backend, e.Message, e.Kind, e.Cause)
	}
	return fmt.Sprintf("[%s] %s (%s)", e.Backend, e.Message, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the retry policy may re-attempt the call.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransient
}

// NewError builds a typed backend error.
func NewError(backendName string, kind Kind, message string, cause error) *Error {
	return &Error{Backend: backendName, Kind: kind, Message: message, Cause: cause}
}

// Classify maps an arbitrary error to a retry kind. Typed backend errors
// keep their kind; context cancellation is fatal (the run is stopping);
// network-level errors default to transient since providers fail
// intermittently far more often than permanently.
func Classify(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindFatal
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	return KindTransient
}

// KindFromHTTPStatus classifies an HTTP status code from an
// OpenAI-compatible endpoint.
func KindFromHTTPStatus(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindTransient
	case status >= 500:
		return KindTransient
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindFatal
	case status >= 400:
		return KindFatal
	}
	return KindTransient
}
