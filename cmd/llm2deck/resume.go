package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/not-lucky/LLM2Deck/internal/budget"
	"github.com/not-lucky/LLM2Deck/internal/generator"
	"github.com/not-lucky/LLM2Deck/internal/observability"
	"github.com/not-lucky/LLM2Deck/internal/orchestrator"
	"github.com/not-lucky/LLM2Deck/internal/prompts"
	"github.com/not-lucky/LLM2Deck/internal/questions"
	"github.com/not-lucky/LLM2Deck/internal/schemas"
	"github.com/not-lucky/LLM2Deck/internal/types"
)

var resumeCommand = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Resume an interrupted or budget-stopped run",
	Long: `Continues a prior run. Questions already recorded as successful are
skipped; only the remainder is dispatched to backends. The subject, card
type, and question set come from the run record and the question catalog.`,
	Args: cobra.ExactArgs(1),
	RunE: runResumeCmd,
}

var (
	resConfigPath  string
	resQuestions   string
	resConcurrency int
	resDelayMS     int
	resBudget      float64
	resBypassCache bool
	resVerbose     bool
	resDatabaseURL string
	resOutputDir   string
)

func init() {
	flags := resumeCommand.Flags()
	flags.StringVar(&resConfigPath, "config", "", "Path to config.json file")
	flags.StringVarP(&resQuestions, "questions", "q", "", "Path to the question catalog JSON file")
	flags.IntVar(&resConcurrency, "concurrency", 0, "Maximum questions in flight at once")
	flags.IntVar(&resDelayMS, "delay-ms", 0, "Delay between question launches in milliseconds")
	flags.Float64Var(&resBudget, "budget", 0, "Fresh spend ceiling for the resumed portion (0 = unlimited)")
	flags.BoolVar(&resBypassCache, "bypass-cache", false, "Skip cache lookups; fresh responses are still cached")
	flags.BoolVarP(&resVerbose, "verbose", "v", false, "Print detailed progress")
	flags.StringVar(&resDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	flags.StringVarP(&resOutputDir, "output-dir", "o", "", "Directory for the final deck file")

	rootCmd.AddCommand(resumeCommand)
}

func runResumeCmd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	printer := observability.NewPrinter(os.Stdout)

	runID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid run ID %q: %w", args[0], err)
	}

	cfg, err := loadMergedConfig(resConfigPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("questions") {
		cfg.QuestionsFile = resQuestions
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency = resConcurrency
	}
	if cmd.Flags().Changed("delay-ms") {
		cfg.LaunchDelayMS = resDelayMS
	}
	if cmd.Flags().Changed("budget") {
		cfg.BudgetUSD = resBudget
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = resDatabaseURL
	}
	if cmd.Flags().Changed("output-dir") {
		cfg.OutputDir = resOutputDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	st, err := openStores(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()
	if !st.persistent() {
		return fmt.Errorf("resume requires a database; set DATABASE_URL or --db-url")
	}

	// The run record pins subject and card type; flags cannot change them.
	run, err := st.repo.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run not found: %s", runID)
	}
	if run.Status == types.RunStatusRunning {
		return fmt.Errorf("run %s is still marked running; refusing to resume", runID)
	}

	catalog, err := questions.Load(cfg.QuestionsFile)
	if err != nil {
		return err
	}
	subject := catalog.Subject(run.Subject)
	if subject == nil {
		return fmt.Errorf("subject %q from run %s not found in %s",
			run.Subject, runID, cfg.QuestionsFile)
	}
	qs := questions.Enumerate(subject)

	validator, err := schemas.ForCardType(run.CardType)
	if err != nil {
		return err
	}

	guard := budget.NewGuard(budget.DefaultPrices(), cfg.BudgetUSD)
	producers, merger, cleanup, err := buildBackends(ctx, cfg, validator, guard)
	if err != nil {
		return err
	}
	defer cleanup()

	gen := &generator.Generator{
		Producers:    producers,
		Merger:       merger,
		Validator:    validator,
		Cache:        st.cache,
		Repo:         st.repo,
		ProduceTmpl:  prompts.MustGet(prompts.RoleProduce, run.CardType),
		MergeTmpl:    prompts.MustGet(prompts.RoleMerge, run.CardType),
		ParseRetries: cfg.ParseRetries,
		BypassCache:  resBypassCache,
	}

	orch := &orchestrator.Orchestrator{Repo: st.repo, Guard: guard, Gen: gen}
	opts := orchestrator.Options{
		Subject:     run.Subject,
		CardType:    run.CardType,
		Concurrency: cfg.Concurrency,
		LaunchDelay: cfg.LaunchDelay(),
		Ordered:     cfg.Ordered,
		BudgetUSD:   cfg.BudgetUSD,
		Resume:      runID,
		OnProgress:  progressPrinter(printer, len(qs), resVerbose),
	}

	outcome, err := orch.Run(ctx, qs, opts)
	if err != nil {
		return err
	}
	fmt.Printf("Resumed run %s: %d units carried over\n", runID, outcome.Skipped)

	return finishRun(printer, guard, outcome, cfg.OutputDir, deckPrefix(run.Subject, run.CardType))
}
