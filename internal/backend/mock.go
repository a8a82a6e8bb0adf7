package backend

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/not-lucky/LLM2Deck/internal/prompts"
	"github.com/not-lucky/LLM2Deck/internal/types"
)

// MockClient implements Client for testing. Outcomes can be scripted per
// call; unscripted calls return Payload.
type MockClient struct {
	BackendName string
	ModelName   string
	Payload     string
	Usage       types.TokenUsage

	// Errs is consumed one per call before falling back to Payload.
	// Use to script transient-then-success sequences.
	Errs []error

	// Delay in produce/merge is simulated by Hook when set.
	Hook func(ctx context.Context) error

	mu           sync.Mutex
	onUsage      UsageCallback
	produceCalls atomic.Int64
	mergeCalls   atomic.Int64
}

// NewMockClient creates a mock backend with a fixed payload.
func NewMockClient(name, payload string) *MockClient {
	return &MockClient{BackendName: name, ModelName: "mock-model", Payload: payload}
}

// Name returns the scripted backend name.
func (m *MockClient) Name() string { return m.BackendName }

// Model returns the scripted model name.
func (m *MockClient) Model() string { return m.ModelName }

// SetUsageCallback installs the token usage side-channel.
func (m *MockClient) SetUsageCallback(cb UsageCallback) { m.onUsage = cb }

// Close is a no-op.
func (m *MockClient) Close() error { return nil }

// ProduceCalls reports how many produce calls reached this mock.
func (m *MockClient) ProduceCalls() int64 { return m.produceCalls.Load() }

// MergeCalls reports how many merge calls reached this mock.
func (m *MockClient) MergeCalls() int64 { return m.mergeCalls.Load() }

// ProduceCandidate returns the next scripted outcome.
func (m *MockClient) ProduceCandidate(ctx context.Context, question string, tmpl prompts.Template) (string, error) {
	m.produceCalls.Add(1)
	return m.next(ctx)
}

// MergeCandidates returns the next scripted outcome.
func (m *MockClient) MergeCandidates(ctx context.Context, question string, candidates []string, tmpl prompts.Template) (string, error) {
	m.mergeCalls.Add(1)
	return m.next(ctx)
}

func (m *MockClient) next(ctx context.Context) (string, error) {
	if m.Hook != nil {
		if err := m.Hook(ctx); err != nil {
			m.report(false)
			return "", err
		}
	}

	m.mu.Lock()
	var scripted error
	if len(m.Errs) > 0 {
		scripted = m.Errs[0]
		m.Errs = m.Errs[1:]
	}
	m.mu.Unlock()

	if scripted != nil {
		m.report(false)
		return "", scripted
	}
	m.report(true)
	return m.Payload, nil
}

func (m *MockClient) report(success bool) {
	if m.onUsage != nil {
		m.onUsage(m.BackendName, m.ModelName, m.Usage, success)
	}
}
