// Package cache provides the response cache that gives idempotency across
// retries and resumed runs. A fingerprint deterministically identifies one
// (question, backend, role, template version) request; a hit short-circuits
// the network call entirely.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/not-lucky/LLM2Deck/internal/prompts"
)

// Fingerprint is the deterministic cache key for one backend request.
type Fingerprint string

// fingerprintPayload is the canonical content hashed into a fingerprint.
// The version field exists so the key scheme itself can be invalidated.
type fingerprintPayload struct {
	V        string `json:"v"`
	Question string `json:"question"`
	Backend  string `json:"backend"`
	Role     string `json:"role"`
	Template string `json:"template"`
}

// NewFingerprint computes the fingerprint for a request. Identical inputs
// always produce identical keys; any input change produces a new key.
func NewFingerprint(question, backendID string, role prompts.Role, templateVersion string) Fingerprint {
	payload, _ := json.Marshal(fingerprintPayload{
		V:        "1",
		Question: question,
		Backend:  backendID,
		Role:     string(role),
		Template: templateVersion,
	})
	sum := sha256.Sum256(payload)
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// Entry is one cached response.
type Entry struct {
	Backend   string    `json:"backend"`
	Model     string    `json:"model"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	HitCount  int64     `json:"hit_count"`
}

// Stats summarizes cache contents.
type Stats struct {
	Entries         int64 `json:"entries"`
	ApproxSizeBytes int64 `json:"approx_size_bytes"`
	TotalHits       int64 `json:"total_hits"`
}

// Store is the cache persistence boundary. Implementations must tolerate
// concurrent upsert of the same key; last-write-wins is acceptable since
// payloads for an identical fingerprint are equivalent in content.
type Store interface {
	// Get returns the cached payload and whether it was found. A found
	// entry's hit count is incremented as a side effect.
	Get(ctx context.Context, fp Fingerprint) (string, bool, error)
	// Put stores a successful response. Failures are never cached.
	Put(ctx context.Context, fp Fingerprint, entry Entry) error
	// Clear removes all entries, returning the count removed.
	Clear(ctx context.Context) (int64, error)
	// Stats reports entry count and approximate payload size.
	Stats(ctx context.Context) (Stats, error)
}
