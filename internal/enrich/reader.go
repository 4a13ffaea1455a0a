package enrich

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"

	"horse.fit/gigradar/internal/event"
)

const (
	DefaultFetchTimeout   = 12 * time.Second
	DefaultBodyByteLimit  = 2 * 1024 * 1024
	DefaultDescriptionLen = 500

	defaultUserAgent = "gigradar-enricher/1.0"
)

// Enricher fills enrichment fields of a single event.
type Enricher interface {
	Name() string
	// Applies reports whether the event is eligible for enrichment.
	Applies(e event.Event) bool
	Enrich(ctx context.Context, e event.Event) (event.Event, error)
}

type ReaderOptions struct {
	Timeout        time.Duration
	BodyByteLimit  int64
	MaxDescription int
	UserAgent      string
	HTTPClient     *http.Client
}

// ReaderEnricher fetches the listing page of theatre and culture events and stores a
// readable description of it.
type ReaderEnricher struct {
	opts ReaderOptions
}

func NewReaderEnricher(opts ReaderOptions) *ReaderEnricher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultFetchTimeout
	}
	if opts.BodyByteLimit <= 0 {
		opts.BodyByteLimit = DefaultBodyByteLimit
	}
	if opts.MaxDescription <= 0 {
		opts.MaxDescription = DefaultDescriptionLen
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	return &ReaderEnricher{opts: opts}
}

func (r *ReaderEnricher) Name() string {
	return "reader"
}

func (r *ReaderEnricher) Applies(e event.Event) bool {
	if e.Category != event.Theatre && e.Category != event.Culture {
		return false
	}
	return e.Description == nil && strings.TrimSpace(e.URL) != ""
}

func (r *ReaderEnricher) Enrich(ctx context.Context, e event.Event) (event.Event, error) {
	if r == nil {
		return e, fmt.Errorf("reader enricher is nil")
	}
	if !r.Applies(e) {
		return e, nil
	}

	text, err := r.fetchDescription(ctx, e.URL)
	if err != nil {
		return e, err
	}

	description, _ := TruncateText(text, r.opts.MaxDescription)
	if description == "" {
		return e, fmt.Errorf("reader extracted empty content")
	}

	out := e.Clone()
	out.Description = event.StringPtr(description)
	out.DescriptionSource = event.StringPtr("scraped")
	return out, nil
}

func (r *ReaderEnricher) fetchDescription(ctx context.Context, pageURL string) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", r.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ro-RO,ro;q=0.9,en;q=0.8")

	resp, err := r.opts.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.opts.BodyByteLimit))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	contentType := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type")))
	if strings.HasPrefix(contentType, "text/plain") {
		return CleanText(string(body)), nil
	}

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return "", fmt.Errorf("readability parse: %w", err)
	}

	// Listing pages usually carry a curated summary; the rendered body is the fallback.
	if excerpt := CleanText(article.Excerpt()); excerpt != "" {
		return excerpt, nil
	}

	var rendered bytes.Buffer
	if err := article.RenderText(&rendered); err != nil {
		return "", fmt.Errorf("render readability text: %w", err)
	}
	return CleanText(rendered.String()), nil
}

// CleanText normalizes line endings and collapses extra in-line whitespace.
func CleanText(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := strings.Split(normalized, "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		clean := strings.Join(strings.Fields(line), " ")
		if clean == "" {
			continue
		}
		paragraphs = append(paragraphs, clean)
	}
	return strings.Join(paragraphs, "\n\n")
}

// TruncateText clips text to maxChars runes and appends a single ellipsis rune when truncated.
func TruncateText(raw string, maxChars int) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	if maxChars <= 0 {
		return trimmed, false
	}

	runes := []rune(trimmed)
	if len(runes) <= maxChars {
		return trimmed, false
	}
	if maxChars == 1 {
		return "…", true
	}

	clipped := strings.TrimSpace(string(runes[:maxChars-1]))
	if clipped == "" {
		return "…", true
	}
	return clipped + "…", true
}
