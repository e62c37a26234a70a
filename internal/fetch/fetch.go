// Package fetch retrieves HTML pages over HTTP with bounded retries, optionally
// rendering them in a headless browser.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/speaker-outreach/internal/logging"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 20 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "speaker-outreach/1.0 (+scraper)"

// Result holds the raw content from a URL fetch.
type Result struct {
	URL         string
	HTML        string
	ContentType string
	StatusCode  int
}

// Error represents an error during URL fetching.
type Error struct {
	URL        string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures the fetch behavior.
type Options struct {
	Timeout     time.Duration
	UserAgent   string
	Headers     map[string]string
	MaxAttempts int           // Total attempts per URL, including the first
	BaseDelay   time.Duration // First backoff delay; doubled per attempt
	MaxDelay    time.Duration // Backoff cap
	UseBrowser  bool          // Render pages with chromedp instead of plain HTTP
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
		Headers: map[string]string{
			"Accept": "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8",
			// Compressed responses are not needed and some servers send encodings we cannot decode.
			"Accept-Encoding": "identity",
		},
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

// get performs a single GET of urlStr. A non-200 response returns both the result and an *Error.
func get(ctx context.Context, client *http.Client, urlStr string, opts *Options) (*Result, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, &Error{
			URL:     urlStr,
			Message: "invalid URL",
			Cause:   err,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &Error{
			URL:     urlStr,
			Message: "failed to create request",
			Cause:   err,
		}
	}

	req.Header.Set("User-Agent", opts.UserAgent)
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{
			URL:       urlStr,
			Message:   "HTTP request failed",
			Retryable: ctx.Err() == nil,
			Cause:     err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{
			URL:       urlStr,
			Message:   "failed to read response body",
			Retryable: true,
			Cause:     err,
		}
	}

	result := &Result{
		URL:         urlStr,
		HTML:        string(bodyBytes),
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}

	if resp.StatusCode != http.StatusOK {
		return result, &Error{
			URL:        urlStr,
			Message:    fmt.Sprintf("HTTP status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	return result, nil
}

// Fetcher fetches pages with retries. It is safe for concurrent use.
type Fetcher struct {
	client *http.Client
	opts   *Options
	logger *zap.Logger
	render func(ctx context.Context, url string) (string, error)
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewFetcher creates a Fetcher. A nil opts uses DefaultOptions; a nil logger is a no-op.
func NewFetcher(opts *Options, logger *zap.Logger) *Fetcher {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	logger = logging.OrNop(logger)
	f := &Fetcher{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
		logger: logger,
		sleep:  sleepContext,
	}
	if opts.UseBrowser {
		f.render = func(ctx context.Context, u string) (string, error) {
			return WithBrowser(ctx, u, opts.Timeout, logger)
		}
	}
	return f
}

// Fetch returns the HTML of urlStr. Retryable failures (transport errors, 429, 5xx)
// are retried with capped exponential backoff and jitter; other failures return at once.
func (f *Fetcher) Fetch(ctx context.Context, urlStr string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= f.opts.MaxAttempts; attempt++ {
		html, err := f.fetchOnce(ctx, urlStr)
		if err == nil {
			return html, nil
		}
		lastErr = err

		var fetchErr *Error
		if !errors.As(err, &fetchErr) || !fetchErr.Retryable || attempt == f.opts.MaxAttempts {
			break
		}

		delay := f.backoff(attempt)
		f.logger.Debug("retrying fetch",
			zap.String("url", urlStr),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		if err := f.sleep(ctx, delay); err != nil {
			return "", &Error{URL: urlStr, Message: "cancelled during backoff", Cause: err}
		}
	}
	return "", lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, urlStr string) (string, error) {
	if f.render != nil {
		html, err := f.render(ctx, urlStr)
		if err != nil {
			return "", &Error{URL: urlStr, Message: "browser rendering failed", Retryable: true, Cause: err}
		}
		return html, nil
	}
	result, err := get(ctx, f.client, urlStr, f.opts)
	if err != nil {
		return "", err
	}
	return result.HTML, nil
}

func (f *Fetcher) backoff(attempt int) time.Duration {
	delay := f.opts.BaseDelay << (attempt - 1)
	if f.opts.MaxDelay > 0 && delay > f.opts.MaxDelay {
		delay = f.opts.MaxDelay
	}
	if delay <= 0 {
		return 0
	}
	return delay + rand.N(delay/2+1)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
