// Package observability provides formatted output utilities for CLI runs.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/not-lucky/LLM2Deck/internal/budget"
	"github.com/not-lucky/LLM2Deck/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for run progress and summaries
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintUnitStart logs one question entering processing.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintUnitStart(q types.Question, total int) {
	fmt.Fprintf(p.out, "[%d/%d] %s › %s\n", q.Ordinal+1, total, q.Category, q.Name)
}

// PrintUnitDone logs one question's outcome.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintUnitDone(q types.Question, artifact *types.MergedArtifact, err error) {
	switch {
	case err != nil && artifact != nil && artifact.FailureReason != "":
		fmt.Fprintf(p.out, "  ✗ %s: %s\n", q.Name, artifact.FailureReason)
	case err != nil:
		fmt.Fprintf(p.out, "  ✗ %s: %v\n", q.Name, err)
	default:
		fmt.Fprintf(p.out, "  ✓ %s (%d cards)\n", q.Name, artifact.CardCount)
	}
}

// PrintUnitSkipped logs a question carried over from a prior run.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintUnitSkipped(q types.Question) {
	fmt.Fprintf(p.out, "  ↷ %s (already done)\n", q.Name)
}

// PrintEstimate outputs a pre-run cost projection.
func (p *Printer) PrintEstimate(est budget.Estimate) {
	p.printBox("COST ESTIMATE", strings.TrimSuffix(est.Format(), "\n"))
}

// PrintRunSummary outputs the final run state and spend breakdown.
func (p *Printer) PrintRunSummary(run *types.Run, totals budget.Totals) {
	if run == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:      %s\n", run.ID))
	sb.WriteString(fmt.Sprintf("Subject:  %s (%s)\n", run.Subject, run.CardType))
	sb.WriteString(fmt.Sprintf("Status:   %s\n", run.Status))
	sb.WriteString(fmt.Sprintf("Units:    %d ok, %d failed of %d\n",
		run.SuccessUnits, run.FailedUnits, run.TotalUnits))
	sb.WriteString(fmt.Sprintf("Tokens:   %d in / %d out\n", run.InputTokens, run.OutputTokens))
	sb.WriteString(fmt.Sprintf("Cost:     $%.4f", run.CostUSD))
	if run.BudgetUSD > 0 {
		sb.WriteString(fmt.Sprintf(" of $%.2f budget", run.BudgetUSD))
	}
	sb.WriteString("\n")

	if len(totals.Backends) > 0 {
		sb.WriteString("\nPer backend:\n")
		count := min(len(totals.Backends), maxItemsToShow)
		for i := 0; i < count; i++ {
			spend := totals.Backends[i]
			sb.WriteString(fmt.Sprintf("  • %-10s $%.4f (%d/%d tokens)\n",
				spend.Backend, spend.CostUSD,
				spend.Usage.InputTokens, spend.Usage.OutputTokens))
		}
		if len(totals.Backends) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(totals.Backends)-maxItemsToShow))
		}
	}

	title := "RUN SUMMARY"
	if run.Status == types.RunStatusBudgetExceeded {
		title = "RUN STOPPED: BUDGET EXCEEDED"
	}
	p.printBox(title, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintCacheStats outputs cache occupancy.
func (p *Printer) PrintCacheStats(entries, hits, approxBytes int64) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Entries:  %d\n", entries))
	sb.WriteString(fmt.Sprintf("Hits:     %d\n", hits))
	sb.WriteString(fmt.Sprintf("Size:     ~%d KiB", approxBytes/1024))
	p.printBox("RESPONSE CACHE", sb.String())
}

// PrintRunList outputs recent runs, one line each.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintRunList(runs []types.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(p.out, "No runs recorded.")
		return
	}
	fmt.Fprintf(p.out, "%-36s  %-10s  %-16s  %-8s  %s\n",
		"ID", "SUBJECT", "STATUS", "UNITS", "CREATED")
	for _, run := range runs {
		fmt.Fprintf(p.out, "%-36s  %-10s  %-16s  %3d/%-4d  %s\n",
			run.ID, run.Subject, run.Status,
			run.SuccessUnits, run.TotalUnits,
			run.CreatedAt.Format("2006-01-02 15:04"))
	}
}
