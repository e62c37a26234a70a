package emailing

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/speaker-outreach/internal/llm"
	"github.com/jonathan/speaker-outreach/internal/logging"
	"github.com/jonathan/speaker-outreach/internal/prompts"
	"github.com/jonathan/speaker-outreach/internal/schemas"
	"github.com/jonathan/speaker-outreach/internal/types"
)

const maxBioRunes = 600

// Options configures a Drafter.
type Options struct {
	// Booth is the invitation target, e.g. "booth #42".
	Booth string
	// MaxAttempts bounds model calls per speaker, counting the first.
	MaxAttempts int
	// RetryDelay is the wait before the second attempt; it doubles each retry.
	RetryDelay time.Duration
}

// DefaultOptions returns the drafting defaults.
func DefaultOptions() Options {
	return Options{
		Booth:       "booth #42",
		MaxAttempts: 3,
		RetryDelay:  500 * time.Millisecond,
	}
}

// Drafter produces email drafts with a structured model call. Safe for
// concurrent use.
type Drafter struct {
	client llm.Client
	opts   Options
	logger *zap.Logger
}

// NewDrafter creates a drafter.
func NewDrafter(client llm.Client, opts Options, logger *zap.Logger) *Drafter {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	logger = logging.OrNop(logger)
	return &Drafter{client: client, opts: opts, logger: logger}
}

type draftInput struct {
	Name       string   `json:"name"`
	Title      string   `json:"title"`
	Company    string   `json:"company"`
	Bio        string   `json:"bio,omitempty"`
	TalkTitles []string `json:"talk_titles"`
}

// Draft writes one email for rec and returns it with the specific detail it was
// built around. Competitor records fail with ErrCompetitorExcluded before any
// model call.
func (d *Drafter) Draft(ctx context.Context, rec types.CategorizedRecord) (types.EmailDraft, string, error) {
	if rec.CompanyCategory == types.CategoryCompetitor {
		return types.EmailDraft{}, "", &DraftError{URL: rec.URL, Message: "refused", Cause: ErrCompetitorExcluded}
	}

	detail := PickSpecificDetail(rec.Speaker)

	template, err := prompts.Get("emailing.json", "draft-email")
	if err != nil {
		return types.EmailDraft{}, "", &DraftError{URL: rec.URL, Message: "failed to load prompt", Cause: err}
	}
	instructions := prompts.Format(template, map[string]string{
		"Booth":          d.opts.Booth,
		"Category":       string(rec.CompanyCategory),
		"SpecificDetail": detail,
	})

	input, err := json.Marshal(draftInput{
		Name:       rec.Name,
		Title:      rec.Title,
		Company:    rec.Company,
		Bio:        truncateRunes(rec.Bio, maxBioRunes),
		TalkTitles: rec.TalkTitles,
	})
	if err != nil {
		return types.EmailDraft{}, "", &DraftError{URL: rec.URL, Message: "failed to encode speaker", Cause: err}
	}

	schema := llm.EmailDraftSchema(instructions)
	prompt := llm.BuildExtractionPrompt(schema, string(input))

	var lastErr error
	delay := d.opts.RetryDelay
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepContext(ctx, delay); err != nil {
				return types.EmailDraft{}, "", &DraftError{URL: rec.URL, Message: "cancelled", Cause: err}
			}
			delay *= 2
		}

		draft, err := d.attempt(ctx, prompt, schema)
		if err == nil {
			return draft, detail, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		d.logger.Debug("draft attempt failed",
			zap.String("url", rec.URL),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	return types.EmailDraft{}, "", &DraftError{URL: rec.URL, Message: "model draft failed", Cause: lastErr}
}

func (d *Drafter) attempt(ctx context.Context, prompt string, schema llm.ExtractionSchema) (types.EmailDraft, error) {
	resp, err := d.client.GenerateStructured(ctx, prompt, schema, llm.TierStandard)
	if err != nil {
		return types.EmailDraft{}, err
	}
	resp = llm.CleanJSONBlock(resp)
	if err := schemas.Validate(schemas.EmailDraft, resp); err != nil {
		return types.EmailDraft{}, err
	}

	var draft types.EmailDraft
	if err := json.Unmarshal([]byte(resp), &draft); err != nil {
		return types.EmailDraft{}, err
	}
	if err := draft.Validate(); err != nil {
		return types.EmailDraft{}, err
	}
	return draft, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
