package emailing

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/speaker-outreach/internal/llm"
	"github.com/jonathan/speaker-outreach/internal/prompts"
	"github.com/jonathan/speaker-outreach/internal/schemas"
	"github.com/jonathan/speaker-outreach/internal/types"
)

// MockLLMClient is a mock implementation of llm.Client for testing
type MockLLMClient struct {
	GenerateStructuredFunc func(ctx context.Context, prompt string, schema llm.ExtractionSchema, tier llm.ModelTier) (string, error)
	calls                  atomic.Int32
}

func (m *MockLLMClient) GenerateStructured(ctx context.Context, prompt string, schema llm.ExtractionSchema, tier llm.ModelTier) (string, error) {
	m.calls.Add(1)
	if m.GenerateStructuredFunc != nil {
		return m.GenerateStructuredFunc(ctx, prompt, schema, tier)
	}
	return `{"subject": "Site progress at booth #42", "body": "Mock body."}`, nil
}

func (m *MockLLMClient) GetModel(_ llm.ModelTier) string { return "mock-model" }

func (m *MockLLMClient) Close() error { return nil }

func testOptions() Options {
	return Options{Booth: "booth #42", MaxAttempts: 2}
}

func builderRecord() types.CategorizedRecord {
	return types.CategorizedRecord{
		Speaker: types.Speaker{
			URL:        "https://conf.example.com/speakers/jane-doe/",
			Name:       "Jane Doe",
			Title:      "Project Director",
			Company:    "Acme Contractors",
			Bio:        "Jane leads delivery.",
			TalkTitles: []string{"Digital twins on site"},
		},
		CompanyCategory: types.CategoryBuilder,
		DecisionSource:  types.DecisionHeuristic,
	}
}

func TestDraft_CompetitorRefusedWithoutModelCall(t *testing.T) {
	client := &MockLLMClient{}
	d := NewDrafter(client, testOptions(), nil)

	rec := builderRecord()
	rec.CompanyCategory = types.CategoryCompetitor

	_, _, err := d.Draft(context.Background(), rec)
	require.ErrorIs(t, err, ErrCompetitorExcluded)
	assert.Zero(t, client.calls.Load())
}

func TestDraft_Success(t *testing.T) {
	var gotPrompt string
	client := &MockLLMClient{
		GenerateStructuredFunc: func(_ context.Context, prompt string, schema llm.ExtractionSchema, tier llm.ModelTier) (string, error) {
			gotPrompt = prompt
			assert.Equal(t, "email_draft", schema.Name)
			assert.Equal(t, llm.TierStandard, tier)
			return `{"subject": "Twins on site, 3 minutes", "body": "A short body."}`, nil
		},
	}
	d := NewDrafter(client, testOptions(), nil)

	draft, detail, err := d.Draft(context.Background(), builderRecord())
	require.NoError(t, err)
	assert.Equal(t, "Twins on site, 3 minutes", draft.Subject)
	assert.Equal(t, "A short body.", draft.Body)
	assert.Equal(t, "Digital twins on site", detail)

	assert.Contains(t, gotPrompt, "booth #42")
	assert.Contains(t, gotPrompt, "Audience category: Builder")
	assert.Contains(t, gotPrompt, "Digital twins on site")
	assert.Contains(t, gotPrompt, "Acme Contractors")
	assert.Empty(t, prompts.Unfilled(gotPrompt))
	assert.Equal(t, int32(1), client.calls.Load())
}

func TestDraft_InvalidDraftRetriedThenFails(t *testing.T) {
	client := &MockLLMClient{
		GenerateStructuredFunc: func(context.Context, string, llm.ExtractionSchema, llm.ModelTier) (string, error) {
			return `{"subject": "` + strings.Repeat("x", 61) + `", "body": "b"}`, nil
		},
	}
	d := NewDrafter(client, testOptions(), nil)

	_, _, err := d.Draft(context.Background(), builderRecord())
	require.Error(t, err)

	var de *DraftError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "https://conf.example.com/speakers/jane-doe/", de.URL)
	var ve *schemas.ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Equal(t, int32(2), client.calls.Load())
}

func TestDraft_TransientErrorRetried(t *testing.T) {
	client := &MockLLMClient{}
	client.GenerateStructuredFunc = func(context.Context, string, llm.ExtractionSchema, llm.ModelTier) (string, error) {
		if client.calls.Load() == 1 {
			return "", errors.New("503 from provider")
		}
		return `{"subject": "Hello", "body": "World."}`, nil
	}
	d := NewDrafter(client, testOptions(), nil)

	draft, _, err := d.Draft(context.Background(), builderRecord())
	require.NoError(t, err)
	assert.Equal(t, "Hello", draft.Subject)
	assert.Equal(t, int32(2), client.calls.Load())
}

func TestDraft_CancelledStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &MockLLMClient{
		GenerateStructuredFunc: func(ctx context.Context, _ string, _ llm.ExtractionSchema, _ llm.ModelTier) (string, error) {
			return "", ctx.Err()
		},
	}
	d := NewDrafter(client, Options{Booth: "booth #42", MaxAttempts: 3}, nil)

	_, _, err := d.Draft(ctx, builderRecord())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), client.calls.Load())
}
