package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/not-lucky/LLM2Deck/internal/observability"
)

var runsCommand = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded generation runs",
}

var runsListCommand = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE:  runRunsListCmd,
}

var runsShowCommand = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run with its per-question results",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShowCmd,
}

var (
	runsLimit       int
	runsDatabaseURL string
	runsShowJSON    bool
)

func init() {
	runsCommand.PersistentFlags().StringVar(&runsDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	runsListCommand.Flags().IntVar(&runsLimit, "limit", 20, "Maximum runs to list")
	runsShowCommand.Flags().BoolVar(&runsShowJSON, "json", false, "Emit the run and artifacts as JSON")

	runsCommand.AddCommand(runsListCommand)
	runsCommand.AddCommand(runsShowCommand)
	rootCmd.AddCommand(runsCommand)
}

func runRunsListCmd(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	st, err := openStores(ctx, runsDatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()
	if !st.persistent() {
		return fmt.Errorf("run inspection requires a database; set DATABASE_URL or --db-url")
	}

	runs, err := st.repo.ListRuns(ctx, runsLimit)
	if err != nil {
		return err
	}
	observability.NewPrinter(os.Stdout).PrintRunList(runs)
	return nil
}

func runRunsShowCmd(_ *cobra.Command, args []string) error {
	ctx := context.Background()
	runID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid run ID %q: %w", args[0], err)
	}

	st, err := openStores(ctx, runsDatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()
	if !st.persistent() {
		return fmt.Errorf("run inspection requires a database; set DATABASE_URL or --db-url")
	}

	state, err := st.repo.LoadResumeState(ctx, runID)
	if err != nil {
		return err
	}

	if runsShowJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	}

	run := state.Run
	fmt.Printf("Run %s\n", run.ID)
	fmt.Printf("  subject:  %s (%s)\n", run.Subject, run.CardType)
	fmt.Printf("  status:   %s\n", run.Status)
	fmt.Printf("  units:    %d ok, %d failed of %d\n", run.SuccessUnits, run.FailedUnits, run.TotalUnits)
	fmt.Printf("  tokens:   %d in / %d out\n", run.InputTokens, run.OutputTokens)
	fmt.Printf("  cost:     $%.4f\n", run.CostUSD)
	fmt.Printf("  created:  %s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))
	if run.CompletedAt != nil {
		fmt.Printf("  finished: %s\n", run.CompletedAt.Format("2006-01-02 15:04:05"))
	}

	if len(state.Processed) > 0 {
		fmt.Printf("\nRecorded questions (%d):\n", len(state.Processed))
		for unitID, art := range state.Processed {
			mark := "✓"
			detail := fmt.Sprintf("%d cards", art.CardCount)
			if !art.Success {
				mark = "✗"
				detail = art.FailureReason
			}
			fmt.Printf("  %s %-40s %s\n", mark, unitID, detail)
		}
	}
	return nil
}
