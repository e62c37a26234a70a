// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/speaker-outreach/internal/types"
)

// Stage names accepted by the pipeline.
const (
	StageScrape     = "scrape"
	StageCategorize = "categorize"
	StageEmail      = "email"
	StageAll        = "all"
)

// Defaults applied when neither the config file, the environment nor a flag sets a value.
const (
	DefaultIndexURL        = "https://www.digitalconstructionweek.com/all-speakers/"
	DefaultDataDir         = "in"
	DefaultOutPath         = "out/email_list.csv"
	DefaultLimit           = 20
	DefaultHTTPConcurrency = 8
	DefaultLLMConcurrency  = 6
	DefaultTargets         = "builders, owners"
	DefaultFetchRetries    = 3
	DefaultProduct         = "DroneDeploy"
	DefaultBooth           = "booth #42"
)

// Config is the single explicit configuration threaded into every component.
// All fields are optional in the file; missing values use defaults or flags.
type Config struct {
	// Source
	IndexURL   string `json:"index_url,omitempty" validate:"omitempty,url"` // Speaker directory index page
	UseBrowser bool   `json:"use_browser,omitempty"`                        // Render detail pages in a headless browser

	// Stage selection
	Stage   string `json:"stage,omitempty" validate:"omitempty,oneof=scrape categorize email all"`
	Limit   int    `json:"limit,omitempty" validate:"gte=0"`
	Targets string `json:"targets,omitempty"` // Comma-separated target names, e.g. "builders, owners"
	DryRun  bool   `json:"dry_run,omitempty"`

	// Concurrency
	HTTPConcurrency int `json:"http_concurrency,omitempty" validate:"gte=0"`
	LLMConcurrency  int `json:"llm_concurrency,omitempty" validate:"gte=0"`
	FetchRetries    int `json:"fetch_retries,omitempty" validate:"gte=0,lte=10"`

	// Paths
	DataDir    string `json:"data_dir,omitempty"`    // Directory holding the JSONL checkpoints
	OutPath    string `json:"out,omitempty"`         // Report CSV path
	PolicyPath string `json:"policy_path,omitempty"` // YAML heuristic policy replacing the built-in table

	// Model
	APIKey  string `json:"api_key,omitempty"` // Gemini API key
	Model   string `json:"model,omitempty"`   // Pin one model for every tier
	Product string `json:"product,omitempty"` // Product named in prompts
	Booth   string `json:"booth,omitempty"`   // Booth named in email drafts

	// Behavior
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL URL for the run ledger
	Verbose     bool   `json:"verbose,omitempty"`
}

// ConfigurationError is fatal at startup; no partial run is attempted.
type ConfigurationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("config error: %s: %s: %v", e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		IndexURL:        DefaultIndexURL,
		Stage:           StageAll,
		Limit:           DefaultLimit,
		Targets:         DefaultTargets,
		HTTPConcurrency: DefaultHTTPConcurrency,
		LLMConcurrency:  DefaultLLMConcurrency,
		FetchRetries:    DefaultFetchRetries,
		DataDir:         DefaultDataDir,
		OutPath:         DefaultOutPath,
		Product:         DefaultProduct,
		Booth:           DefaultBooth,
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv reads the environment variables the tool understands through getenv
// (os.Getenv in production). This is the only place the environment is consulted.
func FromEnv(getenv func(string) string) Config {
	cfg := Config{
		APIKey:      getenv("GEMINI_API_KEY"),
		Model:       getenv("GEMINI_MODEL"),
		DatabaseURL: getenv("DATABASE_URL"),
	}
	if v, err := strconv.Atoi(getenv("HTTP_CONCURRENCY")); err == nil {
		cfg.HTTPConcurrency = v
	}
	if v, err := strconv.Atoi(getenv("LLM_CONCURRENCY")); err == nil {
		cfg.LLMConcurrency = v
	}
	return cfg
}

// Validate checks field ranges and the target set.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return &ConfigurationError{Field: "config", Message: "invalid value", Cause: err}
	}

	if c.Targets != "" {
		if _, err := ParseTargets(c.Targets); err != nil {
			return &ConfigurationError{Field: "targets", Message: "invalid target set", Cause: err}
		}
	}

	if c.PolicyPath != "" {
		if _, err := os.Stat(c.PolicyPath); os.IsNotExist(err) {
			return &ConfigurationError{Field: "policy_path", Message: fmt.Sprintf("policy file not found: %s", c.PolicyPath)}
		}
	}

	return nil
}

// RequireAPIKey fails when a stage that calls the model is selected without a key.
func (c *Config) RequireAPIKey() error {
	if !c.NeedsModel() {
		return nil
	}
	if c.APIKey == "" {
		return &ConfigurationError{
			Field:   "api_key",
			Message: "API key required: set --api-key flag or GEMINI_API_KEY environment variable",
		}
	}
	return nil
}

// NeedsModel reports whether the selected stage may call the model.
func (c *Config) NeedsModel() bool {
	return c.Stage != StageScrape
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// Bools cannot distinguish unset from false, so they are OR-ed.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.IndexURL == "" {
		result.IndexURL = defaults.IndexURL
	}
	if result.Stage == "" {
		result.Stage = defaults.Stage
	}
	if result.Targets == "" {
		result.Targets = defaults.Targets
	}
	if result.DataDir == "" {
		result.DataDir = defaults.DataDir
	}
	if result.OutPath == "" {
		result.OutPath = defaults.OutPath
	}
	if result.PolicyPath == "" {
		result.PolicyPath = defaults.PolicyPath
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.Model == "" {
		result.Model = defaults.Model
	}
	if result.Product == "" {
		result.Product = defaults.Product
	}
	if result.Booth == "" {
		result.Booth = defaults.Booth
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}

	if result.Limit == 0 {
		result.Limit = defaults.Limit
	}
	if result.HTTPConcurrency == 0 {
		result.HTTPConcurrency = defaults.HTTPConcurrency
	}
	if result.LLMConcurrency == 0 {
		result.LLMConcurrency = defaults.LLMConcurrency
	}
	if result.FetchRetries == 0 {
		result.FetchRetries = defaults.FetchRetries
	}

	result.UseBrowser = result.UseBrowser || defaults.UseBrowser
	result.DryRun = result.DryRun || defaults.DryRun
	result.Verbose = result.Verbose || defaults.Verbose

	return result
}

// ParseTargets parses a comma-separated target list. Every name must be known;
// blank entries are ignored. The result keeps input order without duplicates.
func ParseTargets(s string) ([]types.Category, error) {
	var out []types.Category
	seen := make(map[types.Category]bool)
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		c, err := types.ParseTargetName(part)
		if err != nil {
			return nil, err
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, nil
}
