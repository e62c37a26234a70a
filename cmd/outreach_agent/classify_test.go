package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeClassify(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newClassifyCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestClassifyCommand_Heuristic(t *testing.T) {
	out, err := executeClassify(t, "--name", "Alice Smith", "--title", "Project Director", "--company", "Skanska Construction")
	require.NoError(t, err)

	assert.Contains(t, out, "CLASSIFICATION")
	assert.Contains(t, out, "Category: Builder (heuristic)")
	assert.Contains(t, out, `keyword "construction"`)
}

func TestClassifyCommand_CompetitorWins(t *testing.T) {
	out, err := executeClassify(t, "--company", "Matterport", "--bio", "Works with construction teams")
	require.NoError(t, err)
	assert.Contains(t, out, "Category: Competitor (heuristic)")
}

func TestClassifyCommand_NoMatchWithoutModel(t *testing.T) {
	out, err := executeClassify(t, "--name", "Dave Brown", "--company", "Zeta Group")
	require.NoError(t, err)
	assert.Contains(t, out, "No keyword rule matched")
}

func TestClassifyCommand_RequiresNameOrCompany(t *testing.T) {
	_, err := executeClassify(t, "--title", "Director")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--name or --company is required")
}

func TestClassifyCommand_ModelNeedsAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	_, err := executeClassify(t, "--company", "Zeta Group", "--model")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key required")
}

func TestModelConfig(t *testing.T) {
	env := map[string]string{"GEMINI_API_KEY": "env-key", "GEMINI_MODEL": "gemini-pinned"}
	getenv := func(k string) string { return env[k] }

	cfg, err := modelConfig(&classifyFlags{}, getenv)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "gemini-pinned", cfg.Model)

	cfg, err = modelConfig(&classifyFlags{apiKey: "flag-key"}, getenv)
	require.NoError(t, err)
	assert.Equal(t, "flag-key", cfg.APIKey)
	assert.Equal(t, "gemini-pinned", cfg.Model)

	_, err = modelConfig(&classifyFlags{}, func(string) string { return "" })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key required")
}
