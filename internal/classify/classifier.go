package classify

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/speaker-outreach/internal/llm"
	"github.com/jonathan/speaker-outreach/internal/logging"
	"github.com/jonathan/speaker-outreach/internal/prompts"
	"github.com/jonathan/speaker-outreach/internal/schemas"
	"github.com/jonathan/speaker-outreach/internal/types"
)

// Result is the outcome of classifying one speaker.
type Result struct {
	Category types.Category
	Source   types.DecisionSource
	Reason   string
}

// Classifier decides a company category for speakers. Safe for concurrent use.
type Classifier struct {
	policy  *Policy
	client  llm.Client
	product string
	logger  *zap.Logger
}

// NewClassifier creates a classifier. A nil policy means DefaultPolicy; a nil
// client restricts the classifier to heuristics and falls back to Other.
func NewClassifier(policy *Policy, client llm.Client, product string, logger *zap.Logger) *Classifier {
	if policy == nil {
		policy = DefaultPolicy()
	}
	logger = logging.OrNop(logger)
	return &Classifier{policy: policy, client: client, product: product, logger: logger}
}

// Heuristic applies the keyword policy only.
func (c *Classifier) Heuristic(sp types.Speaker) (Result, bool) {
	category, keyword, ok := c.policy.Match(sp)
	if !ok {
		return Result{}, false
	}
	return Result{
		Category: category,
		Source:   types.DecisionHeuristic,
		Reason:   fmt.Sprintf("keyword %q", keyword),
	}, true
}

// Classify returns the heuristic category when a rule matches, otherwise asks the
// model. A model failure yields Other with source model and a non-nil error; the
// result is always usable.
func (c *Classifier) Classify(ctx context.Context, sp types.Speaker) (Result, error) {
	if res, ok := c.Heuristic(sp); ok {
		c.logger.Debug("heuristic match",
			zap.String("url", sp.URL),
			zap.String("category", string(res.Category)),
			zap.String("reason", res.Reason))
		return res, nil
	}

	fallback := Result{Category: types.CategoryOther, Source: types.DecisionModel, Reason: "model classification failed"}
	if c.client == nil {
		return fallback, &ClassificationError{URL: sp.URL, Message: "no model configured"}
	}

	res, err := c.classifyWithModel(ctx, sp)
	if err != nil {
		c.logger.Warn("model classification failed, using Other",
			zap.String("url", sp.URL),
			zap.Error(err))
		return fallback, err
	}
	return res, nil
}

type categorization struct {
	CompanyCategory types.Category `json:"company_category"`
	Reason          string         `json:"reason"`
}

type speakerInput struct {
	Name       string   `json:"name"`
	Title      string   `json:"title"`
	Company    string   `json:"company"`
	Bio        string   `json:"bio"`
	TalkTitles []string `json:"talk_titles"`
}

func (c *Classifier) classifyWithModel(ctx context.Context, sp types.Speaker) (Result, error) {
	template, err := prompts.Get("classify.json", "categorize-company")
	if err != nil {
		return Result{}, &ClassificationError{URL: sp.URL, Message: "failed to load prompt", Cause: err}
	}
	instructions := prompts.Format(template, map[string]string{"Product": c.product})

	input, err := json.Marshal(speakerInput{
		Name:       sp.Name,
		Title:      sp.Title,
		Company:    sp.Company,
		Bio:        sp.Bio,
		TalkTitles: sp.TalkTitles,
	})
	if err != nil {
		return Result{}, &ClassificationError{URL: sp.URL, Message: "failed to encode speaker", Cause: err}
	}

	schema := llm.CategorizationSchema(instructions)
	prompt := llm.BuildExtractionPrompt(schema, string(input))

	resp, err := c.client.GenerateStructured(ctx, prompt, schema, llm.TierLite)
	if err != nil {
		return Result{}, &ClassificationError{URL: sp.URL, Message: "model call failed", Cause: err}
	}
	resp = llm.CleanJSONBlock(resp)
	if err := schemas.Validate(schemas.Categorization, resp); err != nil {
		return Result{}, &ClassificationError{URL: sp.URL, Message: "model response failed validation", Cause: err}
	}

	var out categorization
	if err := json.Unmarshal([]byte(resp), &out); err != nil {
		return Result{}, &ClassificationError{URL: sp.URL, Message: "failed to decode model response", Cause: err}
	}

	return Result{Category: out.CompanyCategory, Source: types.DecisionModel, Reason: out.Reason}, nil
}
