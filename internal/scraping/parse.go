package scraping

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/speaker-outreach/internal/types"
)

// Seed is a speaker card from the directory index: the detail URL plus whatever
// the card text reveals.
type Seed struct {
	URL     string
	Name    string
	Title   string
	Company string
}

var whitespace = regexp.MustCompile(`\s+`)

// clean collapses runs of whitespace and trims.
func clean(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// ParseIndex extracts speaker seeds from the directory index page. Links containing
// "/speakers/" are speaker cards (the "/all-speakers/" index itself is excluded);
// relative links are resolved against baseURL and duplicates are dropped.
func ParseIndex(html, baseURL string) ([]Seed, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, &ParseError{URL: baseURL, Message: "invalid base URL", Cause: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ParseError{URL: baseURL, Message: "failed to parse HTML", Cause: err}
	}

	seen := make(map[string]bool)
	seeds := make([]Seed, 0)

	doc.Find("a[href*='/speakers/']").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.Contains(href, "/all-speakers/") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		link := abs.String()
		if seen[link] {
			return
		}
		seen[link] = true

		seed := Seed{URL: link, Name: NameFromSlug(link)}

		// Card text reads "<Name> <Title> at <Company>".
		rest := trimNamePrefix(clean(s.Text()), seed.Name)
		if left, right, ok := strings.Cut(rest, " at "); ok {
			seed.Title = clean(left)
			seed.Company = clean(right)
		}

		seeds = append(seeds, seed)
	})

	return seeds, nil
}

// NameFromSlug derives a display name from the last path segment of a speaker URL,
// e.g. ".../speakers/jane-doe/" -> "Jane Doe".
func NameFromSlug(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	path := strings.TrimRight(u.Path, "/")
	slug := path[strings.LastIndex(path, "/")+1:]
	var words []string
	for _, part := range strings.Split(slug, "-") {
		if part == "" {
			continue
		}
		words = append(words, capitalize(part))
	}
	return strings.Join(words, " ")
}

// capitalize upper-cases the first rune of word and lower-cases the rest.
func capitalize(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	return string(unicode.ToTitle(r)) + strings.ToLower(word[size:])
}

// trimNamePrefix drops name from the start of text, compared rune by rune
// ignoring case.
func trimNamePrefix(text, name string) string {
	n := utf8.RuneCountInString(name)
	if n == 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) < n || !strings.EqualFold(string(runes[:n]), name) {
		return text
	}
	return strings.TrimSpace(string(runes[n:]))
}

// ParseSpeakerDetail parses a speaker detail page. Fields are read from the
// ".speaker-details" block (paragraphs with a <strong> label) and the bio from
// ".speaker-bio". fallbackName is used when the page has no name; with neither the
// page is rejected.
func ParseSpeakerDetail(html, pageURL, fallbackName string) (types.Speaker, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return types.Speaker{}, &ParseError{URL: pageURL, Message: "failed to parse HTML", Cause: err}
	}

	details := doc.Find(".speaker-details").First()
	sp := types.Speaker{
		URL:        pageURL,
		Name:       labelledField(details, "Name"),
		Title:      labelledField(details, "Job Title"),
		Company:    labelledField(details, "Company"),
		Bio:        clean(doc.Find(".speaker-bio").First().Text()),
		TalkTitles: []string{},
	}

	if sp.Name == "" {
		sp.Name = fallbackName
	}
	if sp.Name == "" {
		return types.Speaker{}, &ParseError{URL: pageURL, Message: "speaker name not found"}
	}
	return sp, nil
}

// labelledField returns the text after "<strong>label</strong>:" in the first
// paragraph whose label contains label (case-insensitive).
func labelledField(details *goquery.Selection, label string) string {
	var value string
	details.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		strong := p.Find("strong").First()
		if strong.Length() == 0 || !strings.Contains(strings.ToLower(strong.Text()), strings.ToLower(label)) {
			return true
		}
		text := clean(p.Text())
		if _, after, ok := strings.Cut(text, ":"); ok {
			text = after
		}
		value = clean(text)
		return false
	})
	return value
}

// ExtractSessionLinks returns the unique absolute "/sessions/" links on a speaker page, in page order.
func ExtractSessionLinks(html, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href*='/sessions/']").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil || href == "" {
			return
		}
		link := base.ResolveReference(ref).String()
		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
	})
	return links
}

// ParseSessionTitle returns the session title (first h1, h2 or .session-title), or "".
func ParseSessionTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return clean(doc.Find("h1, h2, .session-title").First().Text())
}

// MergeSeed fills fields missing from the detail page with the index card values.
func MergeSeed(sp types.Speaker, seed Seed) types.Speaker {
	if sp.Title == "" {
		sp.Title = seed.Title
	}
	if sp.Company == "" {
		sp.Company = seed.Company
	}
	return sp
}
