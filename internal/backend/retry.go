package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/not-lucky/LLM2Deck/internal/prompts"
)

// RetryConfig bounds the retry policy wrapped around backend calls.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig returns the provider-tunable defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// Retrying wraps a Client with bounded retries and exponential backoff.
// Transient errors are re-attempted up to MaxAttempts; fatal errors fail
// immediately. The separate parse-retry loop for schema-invalid payloads
// lives in the generator, driven by the validator verdict.
type Retrying struct {
	inner Client
	cfg   RetryConfig
}

// WithRetry wraps a client with the given retry configuration.
func WithRetry(inner Client, cfg RetryConfig) *Retrying {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRetryConfig().MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultRetryConfig().BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultRetryConfig().MaxDelay
	}
	return &Retrying{inner: inner, cfg: cfg}
}

// Name returns the wrapped client's name.
func (r *Retrying) Name() string { return r.inner.Name() }

// Model returns the wrapped client's model.
func (r *Retrying) Model() string { return r.inner.Model() }

// SetUsageCallback installs the callback on the wrapped client, so every
// attempt reports usage, not just the final one.
func (r *Retrying) SetUsageCallback(cb UsageCallback) { r.inner.SetUsageCallback(cb) }

// Close closes the wrapped client.
func (r *Retrying) Close() error { return r.inner.Close() }

// ProduceCandidate calls the wrapped client with retries.
func (r *Retrying) ProduceCandidate(ctx context.Context, question string, tmpl prompts.Template) (string, error) {
	return r.do(ctx, func() (string, error) {
		return r.inner.ProduceCandidate(ctx, question, tmpl)
	})
}

// MergeCandidates calls the wrapped client with retries.
func (r *Retrying) MergeCandidates(ctx context.Context, question string, candidates []string, tmpl prompts.Template) (string, error) {
	return r.do(ctx, func() (string, error) {
		return r.inner.MergeCandidates(ctx, question, candidates, tmpl)
	})
}

func (r *Retrying) do(ctx context.Context, call func() (string, error)) (string, error) {
	var lastErr error
	delay := r.cfg.BaseDelay

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		out, err := call()
		if err == nil {
			return out, nil
		}
		lastErr = err

		if Classify(err) != KindTransient {
			return "", err
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}

		if err := sleepCtx(ctx, delay); err != nil {
			return "", NewError(r.inner.Name(), KindFatal, "retry interrupted", err)
		}
		delay *= 2
		if delay > r.cfg.MaxDelay {
			delay = r.cfg.MaxDelay
		}
	}

	return "", NewError(r.inner.Name(), KindTransient,
		fmt.Sprintf("exhausted %d attempts", r.cfg.MaxAttempts), lastErr)
}

// sleepCtx waits for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
