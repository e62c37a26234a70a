package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ValidPrompt(t *testing.T) {
	prompt, err := Get("classify.json", "categorize-company")
	require.NoError(t, err)
	assert.Contains(t, prompt, "Tie-breaker")
	// Array values are joined line by line.
	assert.Contains(t, prompt, "\nDefinitions:\n")
}

func TestGet_InvalidFile(t *testing.T) {
	_, err := Get("nonexistent.json", "some-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	_, err := Get("emailing.json", "nonexistent-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFormat(t *testing.T) {
	template := "Invite {{.Name}} to {{.Booth}}. {{.Name}} again."
	result := Format(template, map[string]string{
		"Name":  "Alice",
		"Booth": "booth #42",
	})
	assert.Equal(t, "Invite Alice to booth #42. Alice again.", result)
}

func TestUnfilled(t *testing.T) {
	template, err := Get("emailing.json", "draft-email")
	require.NoError(t, err)
	partial := Format(template, map[string]string{"Category": "Builder"})

	assert.ElementsMatch(t, []string{"{{.SpecificDetail}}", "{{.Booth}}", "{{.Booth}}"}, Unfilled(partial))

	full := Format(template, map[string]string{"Category": "Builder", "SpecificDetail": "d", "Booth": "b"})
	assert.Empty(t, Unfilled(full))
}
