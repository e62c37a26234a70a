package scraping

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapFetcher struct {
	pages map[string]string
	calls []string
}

func (m *mapFetcher) Fetch(_ context.Context, url string) (string, error) {
	m.calls = append(m.calls, url)
	html, ok := m.pages[url]
	if !ok {
		return "", errors.New("not found: " + url)
	}
	return html, nil
}

func TestScraper_Index(t *testing.T) {
	f := &mapFetcher{pages: map[string]string{"https://conf.example.com/all-speakers/": indexHTML}}
	s := NewScraper(f, nil)

	seeds, err := s.Index(context.Background(), "https://conf.example.com/all-speakers/")
	require.NoError(t, err)
	assert.Len(t, seeds, 3)
}

func TestScraper_Index_FetchFailure(t *testing.T) {
	s := NewScraper(&mapFetcher{}, nil)
	_, err := s.Index(context.Background(), "https://conf.example.com/all-speakers/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch speaker index")
}

func TestScraper_Speaker_WithSessionTitle(t *testing.T) {
	f := &mapFetcher{pages: map[string]string{
		"https://conf.example.com/speakers/jane-doe/":              detailHTML,
		"https://conf.example.com/sessions/digital-twins-on-site/": `<h1>Digital twins on site</h1>`,
	}}
	s := NewScraper(f, nil)

	sp, err := s.Speaker(context.Background(), Seed{URL: "https://conf.example.com/speakers/jane-doe/", Name: "Jane Doe"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Digital twins on site"}, sp.TalkTitles)
	// Only the first session page is fetched.
	assert.Len(t, f.calls, 2)
}

func TestScraper_Speaker_SessionFailureIsNotFatal(t *testing.T) {
	f := &mapFetcher{pages: map[string]string{
		"https://conf.example.com/speakers/jane-doe/": detailHTML,
	}}
	s := NewScraper(f, nil)

	sp, err := s.Speaker(context.Background(), Seed{URL: "https://conf.example.com/speakers/jane-doe/"})
	require.NoError(t, err)
	assert.Empty(t, sp.TalkTitles)
}

func TestScraper_Speaker_SeedFallbacks(t *testing.T) {
	f := &mapFetcher{pages: map[string]string{
		"https://conf.example.com/speakers/lee-wong/": `<div class="speaker-bio">Works on rail upgrades.</div>`,
	}}
	s := NewScraper(f, nil)

	sp, err := s.Speaker(context.Background(), Seed{
		URL:     "https://conf.example.com/speakers/lee-wong/",
		Name:    "Lee Wong",
		Title:   "Engineer",
		Company: "Transit Authority",
	})
	require.NoError(t, err)
	assert.Equal(t, "Lee Wong", sp.Name)
	assert.Equal(t, "Engineer", sp.Title)
	assert.Equal(t, "Transit Authority", sp.Company)
}

func TestScraper_Speaker_DetailFailure(t *testing.T) {
	s := NewScraper(&mapFetcher{}, nil)
	_, err := s.Speaker(context.Background(), Seed{URL: "https://conf.example.com/speakers/x/", Name: "X"})
	assert.Error(t, err)
}
