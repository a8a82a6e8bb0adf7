// Package budget tracks token spend across a run and enforces a soft cost
// ceiling. The guard is consulted between unit dispatches, so a run never
// hard-kills in-flight work; it stops launching new work instead.
package budget

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/not-lucky/LLM2Deck/internal/types"
)

// Price holds per-million-token USD rates for one model.
type Price struct {
	InputPerMillion  float64 `json:"input_per_million"`
	OutputPerMillion float64 `json:"output_per_million"`
}

// PriceTable maps model names to rates. Models absent from the table cost
// zero, which keeps unknown or self-hosted models from tripping the guard.
type PriceTable map[string]Price

// DefaultPrices covers the commonly configured hosted models.
func DefaultPrices() PriceTable {
	return PriceTable{
		"gemini-2.5-pro":   {InputPerMillion: 1.25, OutputPerMillion: 10.00},
		"gemini-2.5-flash": {InputPerMillion: 0.30, OutputPerMillion: 2.50},
		"gpt-4o":           {InputPerMillion: 2.50, OutputPerMillion: 10.00},
		"gpt-4o-mini":      {InputPerMillion: 0.15, OutputPerMillion: 0.60},
		"deepseek-chat":    {InputPerMillion: 0.27, OutputPerMillion: 1.10},
	}
}

// Cost computes the USD cost of a usage sample for a model.
func (t PriceTable) Cost(model string, usage types.TokenUsage) float64 {
	price, ok := t[model]
	if !ok {
		return 0
	}
	in := float64(usage.InputTokens) / 1_000_000 * price.InputPerMillion
	out := float64(usage.OutputTokens) / 1_000_000 * price.OutputPerMillion
	return in + out
}

// BackendSpend is the accumulated spend attributed to one backend.
type BackendSpend struct {
	Backend string
	Model   string
	Usage   types.TokenUsage
	CostUSD float64
}

// Totals is a point-in-time snapshot of run spend.
type Totals struct {
	Usage    types.TokenUsage
	CostUSD  float64
	Limit    float64
	Exceeded bool
	Backends []BackendSpend
}

// Guard accumulates spend and answers whether new work may launch. A limit
// of zero disables enforcement but spend is still tracked for reporting.
type Guard struct {
	prices PriceTable
	limit  float64

	mu       sync.Mutex
	usage    types.TokenUsage
	cost     float64
	exceeded bool
	backends map[string]*BackendSpend
}

// NewGuard creates a guard with the given price table and USD ceiling.
func NewGuard(prices PriceTable, limitUSD float64) *Guard {
	if prices == nil {
		prices = DefaultPrices()
	}
	return &Guard{
		prices:   prices,
		limit:    limitUSD,
		backends: make(map[string]*BackendSpend),
	}
}

// RecordUsage adds a usage sample and returns its cost. Safe for concurrent
// use from backend callbacks.
func (g *Guard) RecordUsage(backend, model string, usage types.TokenUsage) float64 {
	cost := g.prices.Cost(model, usage)

	g.mu.Lock()
	defer g.mu.Unlock()

	g.usage.Add(usage)
	g.cost += cost
	if g.limit > 0 && g.cost >= g.limit {
		g.exceeded = true
	}

	spend, ok := g.backends[backend]
	if !ok {
		spend = &BackendSpend{Backend: backend, Model: model}
		g.backends[backend] = spend
	}
	spend.Usage.Add(usage)
	spend.CostUSD += cost
	return cost
}

// Allow reports whether new work may launch. Once the accumulated cost
// crosses the ceiling, Allow stays false for the rest of the run.
func (g *Guard) Allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.exceeded
}

// Snapshot returns the current totals.
func (g *Guard) Snapshot() Totals {
	g.mu.Lock()
	defer g.mu.Unlock()

	totals := Totals{
		Usage:    g.usage,
		CostUSD:  g.cost,
		Limit:    g.limit,
		Exceeded: g.exceeded,
	}
	for _, spend := range g.backends {
		totals.Backends = append(totals.Backends, *spend)
	}
	sort.Slice(totals.Backends, func(i, j int) bool {
		return totals.Backends[i].Backend < totals.Backends[j].Backend
	})
	return totals
}

// Estimate is a pre-run cost projection built from per-call token
// assumptions rather than live usage.
type Estimate struct {
	Units     int
	Backends  []EstimateLine
	TotalUSD  float64
	LimitUSD  float64
	OverLimit bool
}

// EstimateLine is one backend's share of a projection.
type EstimateLine struct {
	Backend string
	Model   string
	Calls   int
	Usage   types.TokenUsage
	CostUSD float64
}

// CallProfile holds the assumed token shape of a single backend call.
type CallProfile struct {
	InputTokens  int64
	OutputTokens int64
}

// DefaultCallProfile is a deliberately generous per-call assumption so
// estimates err toward over-reporting.
func DefaultCallProfile() CallProfile {
	return CallProfile{InputTokens: 2_000, OutputTokens: 4_000}
}

// Project builds a cost estimate for a run of the given unit count. Each
// unit costs one produce call per producing backend plus one merge call on
// the merging backend.
func Project(prices PriceTable, units int, producers []EstimateLine, merger EstimateLine, profile CallProfile, limitUSD float64) Estimate {
	if prices == nil {
		prices = DefaultPrices()
	}

	est := Estimate{Units: units, LimitUSD: limitUSD}
	lines := append(append([]EstimateLine{}, producers...), merger)
	for _, line := range lines {
		line.Calls = units
		line.Usage = types.TokenUsage{
			InputTokens:  profile.InputTokens * int64(units),
			OutputTokens: profile.OutputTokens * int64(units),
		}
		line.CostUSD = prices.Cost(line.Model, line.Usage)
		est.Backends = append(est.Backends, line)
		est.TotalUSD += line.CostUSD
	}
	if limitUSD > 0 && est.TotalUSD >= limitUSD {
		est.OverLimit = true
	}
	return est
}

// Format renders the estimate as a human-readable block.
func (e Estimate) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Estimated cost for %d units:\n", e.Units)
	for _, line := range e.Backends {
		fmt.Fprintf(&b, "  %-12s %-20s %d calls, ~%d in / ~%d out tokens, $%.4f\n",
			line.Backend, line.Model, line.Calls,
			line.Usage.InputTokens, line.Usage.OutputTokens, line.CostUSD)
	}
	fmt.Fprintf(&b, "  total: $%.4f", e.TotalUSD)
	if e.LimitUSD > 0 {
		fmt.Fprintf(&b, " (budget $%.2f)", e.LimitUSD)
		if e.OverLimit {
			b.WriteString(" EXCEEDS BUDGET")
		}
	}
	b.WriteString("\n")
	return b.String()
}
