// Package web fetches pages and turns their HTML into item metadata and
// Markdown.
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 2.0

	// MaxBodyBytes caps how much of a response is read.
	MaxBodyBytes = 10 << 20
)

// Page is what a fetch yields.
type Page struct {
	URL          string
	FinalURL     string
	ContentType  string
	Title        string
	Description  string
	ThumbnailURL string
	HTML         string
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

// Fetcher downloads pages politely: one shared rate limiter, a fixed user
// agent and a bounded body size.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// Option configures the Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.httpClient = c }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.httpClient.Timeout = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond float64) Option {
	return func(f *Fetcher) {
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// NewFetcher creates a page fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  "kmd",
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), int(DefaultRateLimit)),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchPage downloads rawURL and extracts its metadata.
func (f *Fetcher) FetchPage(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("not an http(s) URL: %q", rawURL)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}

	final := resp.Request.URL.String()
	page := &Page{
		URL:         rawURL,
		FinalURL:    final,
		ContentType: resp.Header.Get("Content-Type"),
		HTML:        string(body),
	}
	if isHTML(page.ContentType) {
		meta, err := ParseMeta(page.HTML, final)
		if err != nil {
			return nil, err
		}
		page.Title, page.Description, page.ThumbnailURL = meta.Title, meta.Description, meta.ThumbnailURL
	}

	f.logger.Debug("fetched page",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)))
	return page, nil
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return ct == "" || strings.Contains(ct, "html")
}
