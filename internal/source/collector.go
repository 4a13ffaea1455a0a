package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"horse.fit/gigradar/internal/event"
	eventschema "horse.fit/gigradar/schema"
)

// Collector yields the events of one source for one run.
type Collector interface {
	Name() string
	Collect(ctx context.Context) ([]event.Event, error)
}

// FeedCollector is a Collector that also reports what it dropped or kept undated.
type FeedCollector interface {
	Collector
	CollectFeed(ctx context.Context) (FeedResult, error)
}

// FeedResult is the outcome of reading one feed file.
type FeedResult struct {
	Source   string
	Events   []event.Event
	Dropped  int
	Dateless int
}

// FileCollector reads a feed document written by an external scraper.
type FileCollector struct {
	path   string
	logger zerolog.Logger
}

func NewFileCollector(path string, logger zerolog.Logger) *FileCollector {
	return &FileCollector{path: path, logger: logger}
}

func (c *FileCollector) Name() string {
	return strings.TrimSuffix(filepath.Base(c.path), filepath.Ext(c.path))
}

func (c *FileCollector) Path() string {
	return c.path
}

func (c *FileCollector) Collect(ctx context.Context) ([]event.Event, error) {
	result, err := c.CollectFeed(ctx)
	if err != nil {
		return nil, err
	}
	return result.Events, nil
}

// CollectFeed decodes the feed and converts each record. A record with an unusable
// required field is dropped; a record with an unparseable date is kept without one.
func (c *FileCollector) CollectFeed(ctx context.Context) (FeedResult, error) {
	if c == nil {
		return FeedResult{}, fmt.Errorf("collector is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return FeedResult{}, err
	}

	raw, err := os.ReadFile(c.path)
	if err != nil {
		return FeedResult{}, fmt.Errorf("read feed %s: %w", c.path, err)
	}
	feed, err := eventschema.DecodeFeed(raw)
	if err != nil {
		return FeedResult{}, fmt.Errorf("decode feed %s: %w", c.path, err)
	}

	var base *url.URL
	if feed.BaseURL != nil {
		base, _ = url.Parse(strings.TrimSpace(*feed.BaseURL))
	}
	defaultCategory := ""
	if feed.Category != nil {
		defaultCategory = *feed.Category
	}

	result := FeedResult{
		Source: strings.TrimSpace(feed.Source),
		Events: make([]event.Event, 0, len(feed.Events)),
	}
	for i, rawRecord := range feed.Events {
		record, err := eventschema.ValidateRecord(rawRecord)
		if err != nil {
			result.Dropped++
			c.logger.Warn().
				Err(err).
				Str("source", result.Source).
				Int("record", i).
				Msg("dropping invalid event record")
			continue
		}

		e, err := toEvent(*record, result.Source, defaultCategory, base)
		if err != nil {
			result.Dropped++
			c.logger.Warn().
				Err(err).
				Str("source", result.Source).
				Int("record", i).
				Str("title", record.Title).
				Msg("dropping unusable event record")
			continue
		}
		if e.Date == nil {
			result.Dateless++
			c.logger.Debug().
				Str("source", result.Source).
				Int("record", i).
				Str("title", e.Title).
				Msg("event date missing or unparseable; passing through undated")
		}
		result.Events = append(result.Events, e)
	}
	return result, nil
}

func toEvent(record eventschema.Record, source, defaultCategory string, base *url.URL) (event.Event, error) {
	rawCategory := defaultCategory
	if record.Category != nil {
		rawCategory = *record.Category
	}
	category, err := event.ParseCategory(rawCategory)
	if err != nil {
		return event.Event{}, err
	}

	link, err := resolveURL(record.URL, base)
	if err != nil {
		return event.Event{}, err
	}

	e := event.Event{
		Title:    strings.TrimSpace(record.Title),
		Artist:   trimmedPtr(record.Artist),
		Venue:    strings.TrimSpace(record.Venue),
		URL:      link,
		Source:   source,
		Sources:  []string{source},
		Category: category,
		Price:    trimmedPtr(record.Price),
		ImageURL: trimmedPtr(record.ImageURL),
		VideoURL: trimmedPtr(record.VideoURL),
	}
	if description := trimmedPtr(record.Description); description != nil {
		e.Description = description
		e.DescriptionSource = event.StringPtr("scraped")
	}
	if record.Date != nil {
		if date, err := event.ParseDate(*record.Date); err == nil {
			e.Date = date
		}
	}
	return e, nil
}

func resolveURL(raw string, base *url.URL) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: url %q: %v", event.ErrParseFailure, raw, err)
	}
	if parsed.IsAbs() && parsed.Host != "" {
		return parsed.String(), nil
	}
	if base == nil || !base.IsAbs() {
		return "", fmt.Errorf("%w: relative url %q without base_url", event.ErrParseFailure, raw)
	}
	return base.ResolveReference(parsed).String(), nil
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// Discover returns one FileCollector per .json feed in dir, sorted by file name.
func Discover(dir string, logger zerolog.Logger) ([]*FileCollector, error) {
	cleanDir := strings.TrimSpace(dir)
	if cleanDir == "" {
		return nil, fmt.Errorf("sources directory is empty")
	}

	entries, err := os.ReadDir(cleanDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("sources directory %s does not exist", cleanDir)
		}
		return nil, fmt.Errorf("read sources directory %s: %w", cleanDir, err)
	}

	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if strings.EqualFold(filepath.Ext(name), ".json") {
			paths = append(paths, filepath.Join(cleanDir, name))
		}
	}
	sort.Strings(paths)

	collectors := make([]*FileCollector, 0, len(paths))
	for _, path := range paths {
		collectors = append(collectors, NewFileCollector(path, logger))
	}
	return collectors, nil
}

// Collectors widens a FileCollector slice to the Collector interface.
func Collectors(files []*FileCollector) []Collector {
	out := make([]Collector, 0, len(files))
	for _, file := range files {
		out = append(out, file)
	}
	return out
}
