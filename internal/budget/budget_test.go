package budget

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/not-lucky/LLM2Deck/internal/types"
)

func TestPriceTableCost(t *testing.T) {
	prices := PriceTable{
		"model-a": {InputPerMillion: 1.0, OutputPerMillion: 10.0},
	}

	tests := []struct {
		name  string
		model string
		usage types.TokenUsage
		want  float64
	}{
		{"known model", "model-a", types.TokenUsage{InputTokens: 1_000_000, OutputTokens: 100_000}, 2.0},
		{"unknown model is free", "model-b", types.TokenUsage{InputTokens: 1_000_000}, 0},
		{"zero usage", "model-a", types.TokenUsage{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, prices.Cost(tt.model, tt.usage), 1e-9)
		})
	}
}

func TestGuardTripsAtCeiling(t *testing.T) {
	prices := PriceTable{"m": {InputPerMillion: 1.0, OutputPerMillion: 1.0}}
	guard := NewGuard(prices, 0.5)

	assert.True(t, guard.Allow())

	// 0.3 USD: still under the ceiling.
	guard.RecordUsage("b1", "m", types.TokenUsage{InputTokens: 300_000})
	assert.True(t, guard.Allow())

	// Crosses 0.5 USD: guard trips and stays tripped.
	guard.RecordUsage("b1", "m", types.TokenUsage{InputTokens: 300_000})
	assert.False(t, guard.Allow())
	assert.False(t, guard.Allow())

	snap := guard.Snapshot()
	assert.True(t, snap.Exceeded)
	assert.InDelta(t, 0.6, snap.CostUSD, 1e-9)
}

func TestGuardZeroLimitNeverTrips(t *testing.T) {
	prices := PriceTable{"m": {InputPerMillion: 1.0, OutputPerMillion: 1.0}}
	guard := NewGuard(prices, 0)

	guard.RecordUsage("b1", "m", types.TokenUsage{InputTokens: 50_000_000})
	assert.True(t, guard.Allow())

	snap := guard.Snapshot()
	assert.False(t, snap.Exceeded)
	assert.InDelta(t, 50.0, snap.CostUSD, 1e-9)
}

func TestGuardConcurrentRecording(t *testing.T) {
	prices := PriceTable{"m": {InputPerMillion: 1.0, OutputPerMillion: 2.0}}
	guard := NewGuard(prices, 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			guard.RecordUsage("b1", "m", types.TokenUsage{InputTokens: 1_000, OutputTokens: 500})
		}()
	}
	wg.Wait()

	snap := guard.Snapshot()
	assert.Equal(t, int64(50_000), snap.Usage.InputTokens)
	assert.Equal(t, int64(25_000), snap.Usage.OutputTokens)
	require.Len(t, snap.Backends, 1)
	assert.Equal(t, int64(50_000), snap.Backends[0].Usage.InputTokens)
}

func TestGuardPerBackendAttribution(t *testing.T) {
	prices := PriceTable{"m": {InputPerMillion: 1.0, OutputPerMillion: 1.0}}
	guard := NewGuard(prices, 0)

	guard.RecordUsage("alpha", "m", types.TokenUsage{InputTokens: 100})
	guard.RecordUsage("beta", "m", types.TokenUsage{InputTokens: 200})
	guard.RecordUsage("alpha", "m", types.TokenUsage{InputTokens: 300})

	snap := guard.Snapshot()
	require.Len(t, snap.Backends, 2)
	assert.Equal(t, "alpha", snap.Backends[0].Backend)
	assert.Equal(t, int64(400), snap.Backends[0].Usage.InputTokens)
	assert.Equal(t, "beta", snap.Backends[1].Backend)
	assert.Equal(t, int64(200), snap.Backends[1].Usage.InputTokens)
}

func TestProjectEstimate(t *testing.T) {
	prices := PriceTable{
		"m1": {InputPerMillion: 1.0, OutputPerMillion: 1.0},
		"m2": {InputPerMillion: 2.0, OutputPerMillion: 2.0},
	}
	producers := []EstimateLine{
		{Backend: "a", Model: "m1"},
		{Backend: "b", Model: "m2"},
	}
	merger := EstimateLine{Backend: "a", Model: "m1"}
	profile := CallProfile{InputTokens: 1_000, OutputTokens: 1_000}

	est := Project(prices, 10, producers, merger, profile, 1.0)

	assert.Equal(t, 10, est.Units)
	require.Len(t, est.Backends, 3)
	// Per backend: 10 calls * 2000 tokens total per call.
	assert.Equal(t, int64(10_000), est.Backends[0].Usage.InputTokens)
	// m1: 0.02, m2: 0.04, merge m1: 0.02.
	assert.InDelta(t, 0.08, est.TotalUSD, 1e-9)
	assert.False(t, est.OverLimit)

	over := Project(prices, 10, producers, merger, profile, 0.05)
	assert.True(t, over.OverLimit)
}

func TestEstimateFormat(t *testing.T) {
	est := Estimate{
		Units:    3,
		LimitUSD: 1.0,
		TotalUSD: 2.5,
		Backends: []EstimateLine{
			{Backend: "gemini", Model: "gemini-2.5-pro", Calls: 3, CostUSD: 2.5},
		},
		OverLimit: true,
	}

	out := est.Format()
	assert.Contains(t, out, "Estimated cost for 3 units")
	assert.Contains(t, out, "gemini-2.5-pro")
	assert.Contains(t, out, "EXCEEDS BUDGET")
}
