package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/speaker-outreach/internal/types"
)

func TestLoadConfig_ValidJSON(t *testing.T) {
	content := `{
		"index_url": "https://example.com/all-speakers/",
		"stage": "categorize",
		"limit": 5,
		"targets": "owners",
		"http_concurrency": 3,
		"verbose": true
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "https://example.com/all-speakers/", cfg.IndexURL)
	assert.Equal(t, StageCategorize, cfg.Stage)
	assert.Equal(t, 5, cfg.Limit)
	assert.Equal(t, "owners", cfg.Targets)
	assert.Equal(t, 3, cfg.HTTPConcurrency)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{ invalid json }`), 0644))

	cfg, err := LoadConfig(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestFromEnv(t *testing.T) {
	env := map[string]string{
		"GEMINI_API_KEY":   "k",
		"GEMINI_MODEL":     "m",
		"HTTP_CONCURRENCY": "12",
		"LLM_CONCURRENCY":  "not-a-number",
	}
	cfg := FromEnv(func(k string) string { return env[k] })

	assert.Equal(t, "k", cfg.APIKey)
	assert.Equal(t, "m", cfg.Model)
	assert.Equal(t, 12, cfg.HTTPConcurrency)
	assert.Equal(t, 0, cfg.LLMConcurrency)
}

func TestValidate_Defaults(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"negative limit", Config{Limit: -1}, "config"},
		{"unknown stage", Config{Stage: "deploy"}, "config"},
		{"bad index url", Config{IndexURL: "speakers"}, "config"},
		{"unknown target", Config{Targets: "builders, vendors"}, "targets"},
		{"missing policy", Config{PolicyPath: "/nonexistent/policy.yaml"}, "policy_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestRequireAPIKey(t *testing.T) {
	scrapeOnly := Config{Stage: StageScrape}
	assert.NoError(t, scrapeOnly.RequireAPIKey())

	all := Config{Stage: StageAll}
	err := all.RequireAPIKey()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key required")

	all.APIKey = "k"
	assert.NoError(t, all.RequireAPIKey())
}

func TestMergeWithDefaults(t *testing.T) {
	partial := Config{
		Stage:   StageEmail,
		Targets: "partners",
		Verbose: true,
	}

	merged := partial.MergeWithDefaults(Defaults())

	assert.Equal(t, StageEmail, merged.Stage)
	assert.Equal(t, "partners", merged.Targets)
	assert.True(t, merged.Verbose)
	assert.Equal(t, DefaultIndexURL, merged.IndexURL)
	assert.Equal(t, DefaultLimit, merged.Limit)
	assert.Equal(t, DefaultHTTPConcurrency, merged.HTTPConcurrency)
	assert.Equal(t, DefaultLLMConcurrency, merged.LLMConcurrency)
	assert.Equal(t, DefaultDataDir, merged.DataDir)
	assert.Equal(t, DefaultOutPath, merged.OutPath)
}

func TestMergeWithDefaults_EmptyDefaults(t *testing.T) {
	cfg := Config{Stage: StageScrape, Limit: 3}
	merged := cfg.MergeWithDefaults(Config{})

	assert.Equal(t, StageScrape, merged.Stage)
	assert.Equal(t, 3, merged.Limit)
	assert.Empty(t, merged.IndexURL)
}

func TestParseTargets(t *testing.T) {
	got, err := ParseTargets("builders, owners")
	require.NoError(t, err)
	assert.Equal(t, []types.Category{types.CategoryBuilder, types.CategoryOwner}, got)

	got, err = ParseTargets(" Owners,,owners , competitors")
	require.NoError(t, err)
	assert.Equal(t, []types.Category{types.CategoryOwner, types.CategoryCompetitor}, got)

	got, err = ParseTargets("")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ParseTargets("builders, vendors")
	assert.Error(t, err)
}
