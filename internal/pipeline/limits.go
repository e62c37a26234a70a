package pipeline

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/jonathan/speaker-outreach/internal/llm"
	"github.com/jonathan/speaker-outreach/internal/scraping"
)

// limitedFetcher holds a network slot for the duration of each fetch only.
type limitedFetcher struct {
	inner scraping.Fetcher
	sem   *semaphore.Weighted
}

func (f *limitedFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer f.sem.Release(1)
	return f.inner.Fetch(ctx, url)
}

// limitedClient holds a model slot for the duration of each model call only.
type limitedClient struct {
	llm.Client
	sem *semaphore.Weighted
}

func (c *limitedClient) GenerateStructured(ctx context.Context, prompt string, schema llm.ExtractionSchema, tier llm.ModelTier) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.sem.Release(1)
	return c.Client.GenerateStructured(ctx, prompt, schema, tier)
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
