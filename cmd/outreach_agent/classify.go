package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/speaker-outreach/internal/classify"
	"github.com/jonathan/speaker-outreach/internal/config"
	"github.com/jonathan/speaker-outreach/internal/llm"
	"github.com/jonathan/speaker-outreach/internal/logging"
	"github.com/jonathan/speaker-outreach/internal/observability"
	"github.com/jonathan/speaker-outreach/internal/types"
)

type classifyFlags struct {
	name       string
	title      string
	company    string
	bio        string
	policyPath string
	useModel   bool
	apiKey     string
	product    string
	verbose    bool
}

func newClassifyCommand() *cobra.Command {
	f := &classifyFlags{}
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Categorize a single speaker",
		Long: `Applies the keyword policy to one ad-hoc speaker record and prints the decision.

With --model, speakers no rule matches are sent to the model; without it they are reported as unmatched.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClassify(cmd, f, os.Getenv)
		},
	}

	cmd.Flags().StringVarP(&f.name, "name", "n", "", "Speaker name")
	cmd.Flags().StringVarP(&f.title, "title", "t", "", "Job title")
	cmd.Flags().StringVarP(&f.company, "company", "c", "", "Company")
	cmd.Flags().StringVar(&f.bio, "bio", "", "Speaker bio")
	cmd.Flags().StringVar(&f.policyPath, "policy", "", "Path to a YAML keyword policy replacing the built-in rules")
	cmd.Flags().BoolVar(&f.useModel, "model", false, "Ask the model when no keyword rule matches")
	cmd.Flags().StringVar(&f.apiKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")
	cmd.Flags().StringVar(&f.product, "product", config.DefaultProduct, "Product named in the prompt")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Print detailed debug information")

	return cmd
}

func init() {
	rootCmd.AddCommand(newClassifyCommand())
}

// speakerFromFlags builds the ad-hoc record. A name or company is required.
func speakerFromFlags(f *classifyFlags) (types.Speaker, error) {
	sp := types.Speaker{
		Name:       strings.TrimSpace(f.name),
		Title:      strings.TrimSpace(f.title),
		Company:    strings.TrimSpace(f.company),
		Bio:        strings.TrimSpace(f.bio),
		TalkTitles: []string{},
	}
	if sp.Name == "" && sp.Company == "" {
		return types.Speaker{}, fmt.Errorf("--name or --company is required")
	}
	return sp, nil
}

// modelConfig resolves the API key and model for --model: the flag wins over
// the environment.
func modelConfig(f *classifyFlags, getenv func(string) string) (config.Config, error) {
	cfg := config.Config{APIKey: f.apiKey}
	cfg = cfg.MergeWithDefaults(config.FromEnv(getenv))
	if err := cfg.RequireAPIKey(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runClassify(cmd *cobra.Command, f *classifyFlags, getenv func(string) string) error {
	sp, err := speakerFromFlags(f)
	if err != nil {
		return err
	}

	logger, err := logging.New(f.verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	policy := classify.DefaultPolicy()
	if f.policyPath != "" {
		if policy, err = classify.LoadPolicy(f.policyPath); err != nil {
			return err
		}
	}

	printer := observability.NewPrinter(cmd.OutOrStdout())

	if !f.useModel {
		res, ok := classify.NewClassifier(policy, nil, f.product, logger).Heuristic(sp)
		if !ok {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No keyword rule matched; rerun with --model to ask the model.")
			return nil
		}
		printer.PrintClassification(types.NewCategorizedRecord(sp, res.Category, res.Source, res.Reason, uuid.Nil, time.Now()))
		return nil
	}

	cfg, err := modelConfig(f, getenv)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	client, err := llm.NewClient(ctx, llm.DefaultConfig().WithModel(cfg.Model), cfg.APIKey)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer func() { _ = client.Close() }()

	res, err := classify.NewClassifier(policy, client, f.product, logger).Classify(ctx, sp)
	printer.PrintClassification(types.NewCategorizedRecord(sp, res.Category, res.Source, res.Reason, uuid.Nil, time.Now()))
	return err
}
