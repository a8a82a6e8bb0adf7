package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/not-lucky/LLM2Deck/internal/budget"
	"github.com/not-lucky/LLM2Deck/internal/deck"
	"github.com/not-lucky/LLM2Deck/internal/generator"
	"github.com/not-lucky/LLM2Deck/internal/observability"
	"github.com/not-lucky/LLM2Deck/internal/orchestrator"
	"github.com/not-lucky/LLM2Deck/internal/prompts"
	"github.com/not-lucky/LLM2Deck/internal/questions"
	"github.com/not-lucky/LLM2Deck/internal/schemas"
	"github.com/not-lucky/LLM2Deck/internal/types"
)

var generateCommand = &cobra.Command{
	Use:   "generate",
	Short: "Generate an Anki deck for a question set",
	Long: `Runs the full generation pipeline: every question is sent to all
configured backends concurrently, valid candidate card sets are merged by
the merging backend, and the combined deck is written to disk.

Configuration can be loaded from a JSON file using --config. Command-line
arguments override config file values.`,
	RunE: runGenerateCmd,
}

var (
	genConfigPath  string
	genQuestions   string
	genSubject     string
	genCardType    string
	genOutputDir   string
	genLabel       string
	genCategory    string
	genQuestion    string
	genLimit       int
	genSkipUntil   string
	genConcurrency int
	genDelayMS     int
	genBudget      float64
	genEstimate    bool
	genDryRun      bool
	genBypassCache bool
	genOrdered     bool
	genVerbose     bool
	genDatabaseURL string
)

func init() {
	flags := generateCommand.Flags()
	flags.StringVar(&genConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	flags.StringVarP(&genQuestions, "questions", "q", "", "Path to the question catalog JSON file")
	flags.StringVarP(&genSubject, "subject", "s", "", "Subject to generate (e.g. leetcode, cs, physics)")
	flags.StringVar(&genCardType, "card-type", "", "Card format: standard or mcq")
	flags.StringVarP(&genOutputDir, "output-dir", "o", "", "Directory for the final deck file")
	flags.StringVar(&genLabel, "label", "", "Free-form label stored on the run")

	flags.StringVar(&genCategory, "category", "", "Only questions whose category matches (substring)")
	flags.StringVar(&genQuestion, "question", "", "Only questions whose name matches (substring)")
	flags.IntVar(&genLimit, "limit", 0, "Process at most N questions")
	flags.StringVar(&genSkipUntil, "skip-until", "", "Skip questions until this one (substring match, inclusive)")

	flags.IntVar(&genConcurrency, "concurrency", 0, "Maximum questions in flight at once")
	flags.IntVar(&genDelayMS, "delay-ms", 0, "Delay between question launches in milliseconds")
	flags.Float64Var(&genBudget, "budget", 0, "Stop launching new questions once estimated spend reaches this many USD (0 = unlimited)")

	flags.BoolVar(&genEstimate, "estimate-only", false, "Print the cost projection and exit without calling any backend")
	flags.BoolVar(&genDryRun, "dry-run", false, "List the questions that would be processed and exit")
	flags.BoolVar(&genBypassCache, "bypass-cache", false, "Skip cache lookups; fresh responses are still cached")
	flags.BoolVar(&genOrdered, "ordered", false, "Launch questions strictly in input order")
	flags.BoolVarP(&genVerbose, "verbose", "v", false, "Print detailed progress")
	flags.StringVar(&genDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")

	rootCmd.AddCommand(generateCommand)
}

func runGenerateCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	printer := observability.NewPrinter(os.Stdout)

	cfg, err := loadMergedConfig(genConfigPath)
	if err != nil {
		return err
	}

	// CLI overrides: only when the flag was explicitly set.
	if cmd.Flags().Changed("questions") {
		cfg.QuestionsFile = genQuestions
	}
	if cmd.Flags().Changed("subject") {
		cfg.Subject = genSubject
	}
	if cmd.Flags().Changed("card-type") {
		cfg.CardType = genCardType
	}
	if cmd.Flags().Changed("output-dir") {
		cfg.OutputDir = genOutputDir
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency = genConcurrency
	}
	if cmd.Flags().Changed("delay-ms") {
		cfg.LaunchDelayMS = genDelayMS
	}
	if cmd.Flags().Changed("budget") {
		cfg.BudgetUSD = genBudget
	}
	if cmd.Flags().Changed("ordered") {
		cfg.Ordered = genOrdered
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = genVerbose
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = genDatabaseURL
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	cardType := types.CardType(cfg.CardType)

	catalog, err := questions.Load(cfg.QuestionsFile)
	if err != nil {
		return err
	}
	subject := catalog.Subject(cfg.Subject)
	if subject == nil {
		return fmt.Errorf("subject %q not found in %s (available: %v)",
			cfg.Subject, cfg.QuestionsFile, catalog.SubjectNames())
	}

	filter := questions.Filter{
		Category:  genCategory,
		Name:      genQuestion,
		SkipUntil: genSkipUntil,
		Limit:     genLimit,
	}
	qs := filter.Apply(questions.Enumerate(subject))
	if len(qs) == 0 {
		return fmt.Errorf("no questions to process after filtering")
	}

	if genDryRun {
		fmt.Printf("Would process %d questions from subject %q:\n", len(qs), cfg.Subject)
		for _, q := range qs {
			fmt.Printf("  [%d.%d] %s › %s\n", q.CategoryIndex, q.ProblemIndex, q.Category, q.Name)
		}
		return nil
	}

	producerLines, mergerLine := estimateLines(cfg)
	estimate := budget.Project(budget.DefaultPrices(), len(qs),
		producerLines, mergerLine, budget.DefaultCallProfile(), cfg.BudgetUSD)
	printer.PrintEstimate(estimate)
	if genEstimate {
		return nil
	}

	validator, err := schemas.ForCardType(cardType)
	if err != nil {
		return err
	}

	guard := budget.NewGuard(budget.DefaultPrices(), cfg.BudgetUSD)
	producers, merger, cleanup, err := buildBackends(ctx, cfg, validator, guard)
	if err != nil {
		return err
	}
	defer cleanup()

	st, err := openStores(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()
	if !st.persistent() {
		fmt.Println("No database configured; run state is in-memory and cannot be resumed.")
	}

	gen := &generator.Generator{
		Producers:    producers,
		Merger:       merger,
		Validator:    validator,
		Cache:        st.cache,
		Repo:         st.repo,
		ProduceTmpl:  prompts.MustGet(prompts.RoleProduce, cardType),
		MergeTmpl:    prompts.MustGet(prompts.RoleMerge, cardType),
		ParseRetries: cfg.ParseRetries,
		BypassCache:  genBypassCache,
	}

	orch := &orchestrator.Orchestrator{Repo: st.repo, Guard: guard, Gen: gen}
	opts := orchestrator.Options{
		Subject:     cfg.Subject,
		CardType:    cardType,
		Label:       genLabel,
		Concurrency: cfg.Concurrency,
		LaunchDelay: cfg.LaunchDelay(),
		Ordered:     cfg.Ordered,
		BudgetUSD:   cfg.BudgetUSD,
		OnProgress:  progressPrinter(printer, len(qs), cfg.Verbose),
	}

	outcome, err := orch.Run(ctx, qs, opts)
	if err != nil {
		return err
	}

	return finishRun(printer, guard, outcome, cfg.OutputDir, deckPrefix(cfg.Subject, cardType))
}

// progressPrinter adapts the printer to orchestrator progress events.
func progressPrinter(printer *observability.Printer, total int, verbose bool) orchestrator.ProgressFunc {
	return func(e orchestrator.ProgressEvent) {
		switch e.Stage {
		case orchestrator.StageStart:
			if verbose {
				printer.PrintUnitStart(e.Question, total)
			}
		case orchestrator.StageDone:
			printer.PrintUnitDone(e.Question, e.Artifact, e.Err)
		case orchestrator.StageSkip:
			printer.PrintUnitSkipped(e.Question)
		}
	}
}

func deckPrefix(subject string, cardType types.CardType) string {
	if cardType == types.CardTypeMCQ {
		return subject + "_mcq"
	}
	return subject
}

// finishRun writes the deck file and prints the summary.
func finishRun(printer *observability.Printer, guard *budget.Guard, outcome *orchestrator.Outcome, outputDir, prefix string) error {
	printer.PrintRunSummary(outcome.Run, guard.Snapshot())

	if outcome.Totals.SuccessUnits == 0 {
		return fmt.Errorf("no questions succeeded; deck not written")
	}

	path, err := deck.Write(outputDir, prefix, outcome.Artifacts)
	if err != nil {
		return err
	}
	fmt.Printf("Deck saved to %s\n", path)

	if outcome.Run.Status == types.RunStatusBudgetExceeded {
		fmt.Printf("Budget reached; resume with: llm2deck resume %s\n", outcome.Run.ID)
	}
	return nil
}
