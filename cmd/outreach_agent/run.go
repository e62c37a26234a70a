package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/jonathan/speaker-outreach/internal/classify"
	"github.com/jonathan/speaker-outreach/internal/config"
	"github.com/jonathan/speaker-outreach/internal/db"
	"github.com/jonathan/speaker-outreach/internal/emailing"
	"github.com/jonathan/speaker-outreach/internal/fetch"
	"github.com/jonathan/speaker-outreach/internal/llm"
	"github.com/jonathan/speaker-outreach/internal/logging"
	"github.com/jonathan/speaker-outreach/internal/observability"
	"github.com/jonathan/speaker-outreach/internal/pipeline"
)

// runFlags holds the values bound to the run command's flags.
type runFlags struct {
	configPath  string
	stage       string
	limit       int
	http        int
	llm         int
	targets     string
	dryRun      bool
	apiKey      string
	policyPath  string
	indexURL    string
	dataDir     string
	out         string
	useBrowser  bool
	databaseURL string
	verbose     bool
}

func newRunCommand() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the outreach pipeline",
		Long: `Runs the selected stage: scrape -> categorize -> email -> report.

Each stage appends to its JSONL checkpoint and skips speakers already recorded there, so an interrupted run resumes where it stopped.
Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadRunConfig(cmd.Flags(), f, os.Getenv)
			if err != nil {
				return err
			}
			return runPipeline(cmd, cfg)
		},
	}

	f.bind(cmd.Flags())
	return cmd
}

// bind registers the run flags on flags.
func (f *runFlags) bind(flags *pflag.FlagSet) {
	// Config file flag (processed first)
	flags.StringVar(&f.configPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	flags.StringVar(&f.stage, "stage", "", "Stage to run: scrape, categorize, email or all (default all)")
	flags.IntVar(&f.limit, "limit", 0, "Maximum number of speakers to process (default 20)")
	flags.IntVar(&f.http, "http", 0, "Maximum concurrent page fetches (default 8, or HTTP_CONCURRENCY)")
	flags.IntVar(&f.llm, "llm", 0, "Maximum concurrent model calls (default 6, or LLM_CONCURRENCY)")
	flags.StringVar(&f.targets, "targets", "", `Comma-separated categories to email (default "builders, owners")`)
	flags.BoolVar(&f.dryRun, "dry-run", false, "Draft emails and print samples without writing the email checkpoint or report")
	flags.StringVar(&f.policyPath, "policy", "", "Path to a YAML keyword policy replacing the built-in rules")
	flags.StringVar(&f.indexURL, "index-url", "", "Speaker directory index page")
	flags.StringVar(&f.dataDir, "data-dir", "", "Directory holding the checkpoints (default in)")
	flags.StringVarP(&f.out, "out", "o", "", "Report CSV path (default out/email_list.csv)")
	flags.BoolVar(&f.useBrowser, "use-browser", false, "Use headless browser for speaker pages (requires Chrome)")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "Print detailed debug information")

	// API key can be passed as a flag, or read from env var GEMINI_API_KEY
	flags.StringVar(&f.apiKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")

	// Database URL for the run ledger
	flags.StringVar(&f.databaseURL, "database-url", "", "PostgreSQL connection URL for the run ledger (optional, defaults to DATABASE_URL env var)")
}

func init() {
	rootCmd.AddCommand(newRunCommand())
}

// loadRunConfig assembles the configuration. Precedence: flags, config file,
// environment, defaults.
func loadRunConfig(flags *pflag.FlagSet, f *runFlags, getenv func(string) string) (config.Config, error) {
	var cfg config.Config
	if f.configPath != "" {
		loaded, err := config.LoadConfig(f.configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}

	// Only override if the flag was explicitly set
	if flags.Changed("stage") {
		cfg.Stage = f.stage
	}
	if flags.Changed("limit") {
		cfg.Limit = f.limit
	}
	if flags.Changed("http") {
		cfg.HTTPConcurrency = f.http
	}
	if flags.Changed("llm") {
		cfg.LLMConcurrency = f.llm
	}
	if flags.Changed("targets") {
		cfg.Targets = f.targets
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = f.dryRun
	}
	if flags.Changed("api-key") {
		cfg.APIKey = f.apiKey
	}
	if flags.Changed("policy") {
		cfg.PolicyPath = f.policyPath
	}
	if flags.Changed("index-url") {
		cfg.IndexURL = f.indexURL
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = f.dataDir
	}
	if flags.Changed("out") {
		cfg.OutPath = f.out
	}
	if flags.Changed("use-browser") {
		cfg.UseBrowser = f.useBrowser
	}
	if flags.Changed("database-url") {
		cfg.DatabaseURL = f.databaseURL
	}
	if flags.Changed("verbose") {
		cfg.Verbose = f.verbose
	}

	cfg = cfg.MergeWithDefaults(config.FromEnv(getenv))
	cfg = cfg.MergeWithDefaults(config.Defaults())

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runPipeline(cmd *cobra.Command, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logging.New(cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	targets, err := config.ParseTargets(cfg.Targets)
	if err != nil {
		return &config.ConfigurationError{Field: "targets", Message: "invalid target set", Cause: err}
	}

	policy := classify.DefaultPolicy()
	if cfg.PolicyPath != "" {
		policy, err = classify.LoadPolicy(cfg.PolicyPath)
		if err != nil {
			return err
		}
	}

	var client llm.Client
	if cfg.NeedsModel() {
		client, err = llm.NewClient(ctx, llm.DefaultConfig().WithModel(cfg.Model), cfg.APIKey)
		if err != nil {
			return fmt.Errorf("failed to create LLM client: %w", err)
		}
		defer func() { _ = client.Close() }()
	}

	fetchOpts := fetch.DefaultOptions()
	fetchOpts.MaxAttempts = cfg.FetchRetries
	fetchOpts.UseBrowser = cfg.UseBrowser

	drafting := emailing.DefaultOptions()
	drafting.Booth = cfg.Booth

	deps := pipeline.Deps{
		Fetcher:  fetch.NewFetcher(fetchOpts, logger),
		Client:   client,
		Policy:   policy,
		Product:  cfg.Product,
		Drafting: drafting,
		Logger:   logger,
	}

	if cfg.DatabaseURL != "" {
		if ledger := openLedger(ctx, cfg.DatabaseURL, logger); ledger != nil {
			defer ledger.Close()
			deps.Ledger = ledger
		}
	}

	opts := pipeline.RunOptions{
		IndexURL:        cfg.IndexURL,
		Stage:           cfg.Stage,
		Limit:           cfg.Limit,
		Targets:         targets,
		TargetsRaw:      cfg.Targets,
		DryRun:          cfg.DryRun,
		HTTPConcurrency: cfg.HTTPConcurrency,
		LLMConcurrency:  cfg.LLMConcurrency,
		DataDir:         cfg.DataDir,
		OutPath:         cfg.OutPath,
		OnProgress: func(e pipeline.ProgressEvent) {
			logger.Debug(e.Message,
				zap.String("stage", e.Stage),
				zap.String("url", e.URL),
				zap.Int("done", e.Done),
				zap.Int("total", e.Total))
		},
	}

	res, runErr := pipeline.Run(ctx, deps, opts)

	printer := observability.NewPrinter(cmd.OutOrStdout())
	if res != nil {
		if cfg.DryRun {
			printer.PrintSamples(res.Drafted)
		}
		printer.PrintSummary(res.Summary())
	}
	return runErr
}

// openLedger connects to the run ledger. The ledger is optional: failures are
// logged and the run continues without it.
func openLedger(ctx context.Context, databaseURL string, logger *zap.Logger) *db.DB {
	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		logger.Warn("run ledger unavailable", zap.Error(err))
		return nil
	}
	if err := database.EnsureSchema(ctx); err != nil {
		logger.Warn("run ledger schema setup failed", zap.Error(err))
		database.Close()
		return nil
	}
	return database
}
