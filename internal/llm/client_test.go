package llm

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToGenaiSchema_Categorization(t *testing.T) {
	s := toGenaiSchema(CategorizationSchema("x"))

	assert.Equal(t, genai.TypeObject, s.Type)
	assert.ElementsMatch(t, []string{"company_category", "reason"}, s.Required)

	cat := s.Properties["company_category"]
	require.NotNil(t, cat)
	assert.Equal(t, genai.TypeString, cat.Type)
	assert.Equal(t, "enum", cat.Format)
	assert.Equal(t, []string{"Builder", "Owner", "Partner", "Competitor", "Other"}, cat.Enum)
}

func TestToGenaiSchema_ListField(t *testing.T) {
	s := toGenaiSchema(ExtractionSchema{Fields: []SchemaField{{Name: "tags", Type: FieldStringList}}})
	tags := s.Properties["tags"]
	require.NotNil(t, tags)
	assert.Equal(t, genai.TypeArray, tags.Type)
	require.NotNil(t, tags.Items)
	assert.Equal(t, genai.TypeString, tags.Items.Type)
	assert.Empty(t, s.Required)
}

func TestExtractTextFromResponse(t *testing.T) {
	_, err := extractTextFromResponse(&genai.GenerateContentResponse{})
	assert.Error(t, err)

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"a":`), genai.Text(`1}`)}},
		}},
	}
	text, err := extractTextFromResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, text)
}

func TestNewClient_MissingAPIKey(t *testing.T) {
	_, err := NewClient(context.Background(), nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient(context.Background(), &Config{Provider: "acme"}, "key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}
