package scraping

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/speaker-outreach/internal/logging"
	"github.com/jonathan/speaker-outreach/internal/types"
)

// Fetcher returns the HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Scraper turns directory pages into speaker records.
type Scraper struct {
	fetcher Fetcher
	logger  *zap.Logger
}

// NewScraper creates a Scraper.
func NewScraper(fetcher Fetcher, logger *zap.Logger) *Scraper {
	logger = logging.OrNop(logger)
	return &Scraper{fetcher: fetcher, logger: logger}
}

// Index fetches and parses the directory index.
func (s *Scraper) Index(ctx context.Context, indexURL string) ([]Seed, error) {
	html, err := s.fetcher.Fetch(ctx, indexURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch speaker index: %w", err)
	}
	seeds, err := ParseIndex(html, indexURL)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("parsed speaker index", zap.String("url", indexURL), zap.Int("seeds", len(seeds)))
	return seeds, nil
}

// Speaker fetches a seed's detail page and the first linked session page. A failed
// session fetch only costs the talk title; a failed detail fetch or parse fails the seed.
func (s *Scraper) Speaker(ctx context.Context, seed Seed) (types.Speaker, error) {
	html, err := s.fetcher.Fetch(ctx, seed.URL)
	if err != nil {
		return types.Speaker{}, err
	}

	sp, err := ParseSpeakerDetail(html, seed.URL, seed.Name)
	if err != nil {
		return types.Speaker{}, err
	}
	sp = MergeSeed(sp, seed)

	if links := ExtractSessionLinks(html, seed.URL); len(links) > 0 {
		sessionHTML, err := s.fetcher.Fetch(ctx, links[0])
		if err != nil {
			s.logger.Warn("session page fetch failed", zap.String("url", links[0]), zap.Error(err))
		} else if title := ParseSessionTitle(sessionHTML); title != "" {
			sp.TalkTitles = append(sp.TalkTitles, title)
		}
	}

	if err := sp.Validate(); err != nil {
		return types.Speaker{}, &ParseError{URL: seed.URL, Message: "invalid speaker record", Cause: err}
	}
	return sp, nil
}
