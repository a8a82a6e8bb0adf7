package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewError("gemini", KindTransient, "request failed", cause)

	want := "[gemini] request failed (transient): connection reset"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, cause) {
		t.Error("expected Unwrap to expose the cause")
	}

	bare := NewError("gemini", KindFatal, "bad key", nil)
	if bare.Error() != "[gemini] bad key (fatal)" {
		t.Errorf("Error() = %q", bare.Error())
	}
}

func TestRetryable(t *testing.T) {
	if !NewError("x", KindTransient, "m", nil).Retryable() {
		t.Error("transient errors should be retryable")
	}
	if NewError("x", KindFatal, "m", nil).Retryable() {
		t.Error("fatal errors should not be retryable")
	}
	if NewError("x", KindParse, "m", nil).Retryable() {
		t.Error("parse errors are handled by the parse loop, not backoff")
	}
}

type fakeNetError struct{}

func (fakeNetError) Error() string   { return "dial tcp: timeout" }
func (fakeNetError) Timeout() bool   { return true }
func (fakeNetError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"typed transient", NewError("b", KindTransient, "m", nil), KindTransient},
		{"typed fatal", NewError("b", KindFatal, "m", nil), KindFatal},
		{"typed parse", NewError("b", KindParse, "m", nil), KindParse},
		{"wrapped typed", fmt.Errorf("outer: %w", NewError("b", KindFatal, "m", nil)), KindFatal},
		{"context canceled", context.Canceled, KindFatal},
		{"deadline exceeded", context.DeadlineExceeded, KindFatal},
		{"net error", net.Error(fakeNetError{}), KindTransient},
		{"unknown error", errors.New("mystery"), KindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKindFromHTTPStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{http.StatusTooManyRequests, KindTransient},
		{http.StatusInternalServerError, KindTransient},
		{http.StatusBadGateway, KindTransient},
		{http.StatusUnauthorized, KindFatal},
		{http.StatusForbidden, KindFatal},
		{http.StatusBadRequest, KindFatal},
		{http.StatusNotFound, KindFatal},
		{http.StatusOK, KindTransient},
	}

	for _, tt := range tests {
		if got := KindFromHTTPStatus(tt.status); got != tt.want {
			t.Errorf("KindFromHTTPStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
