package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"horse.fit/gigradar/internal/event"
)

func TestCollectFeedConvertsRecords(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "iabilet.json")
	mustWriteFile(t, path, `{
		"source": "iabilet",
		"base_url": "https://www.iabilet.ro",
		"category": "music",
		"events": [
			{"title": " Subcarpați ", "artist": "Subcarpați", "venue": "Control", "date": "2026-11-14T20:00", "url": "/bilete-subcarpati", "price": " "},
			{"title": "Secret Show", "venue": "Quantic", "date": "TBA", "url": "https://www.iabilet.ro/secret"},
			{"title": "Hamlet", "venue": "TNB", "date": "2026-11-15", "url": "https://www.tnb.ro/hamlet", "category": "theater", "description": "Un classic."},
			{"venue": "Nowhere", "url": "https://x.test"},
			{"title": "Broken", "venue": "X", "url": "https://x.test", "category": "sports"}
		]
	}`)

	result, err := NewFileCollector(path, zerolog.Nop()).CollectFeed(context.Background())
	if err != nil {
		t.Fatalf("CollectFeed failed: %v", err)
	}
	if len(result.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(result.Events))
	}
	if result.Dropped != 2 || result.Dateless != 1 {
		t.Fatalf("unexpected counts: dropped=%d dateless=%d", result.Dropped, result.Dateless)
	}

	first := result.Events[0]
	if first.Title != "Subcarpați" || first.URL != "https://www.iabilet.ro/bilete-subcarpati" {
		t.Fatalf("unexpected first event: %+v", first)
	}
	if first.Price != nil {
		t.Fatalf("blank price must become nil")
	}
	if first.Date == nil || first.Date.Hour() != 20 {
		t.Fatalf("unexpected date: %v", first.Date)
	}
	if len(first.Sources) != 1 || first.Sources[0] != "iabilet" {
		t.Fatalf("unexpected sources: %v", first.Sources)
	}

	if result.Events[1].Date != nil {
		t.Fatalf("TBA date must pass through as nil")
	}

	play := result.Events[2]
	if play.Category != event.Theatre {
		t.Fatalf("record category must override feed default, got %q", play.Category)
	}
	if play.DescriptionSource == nil || *play.DescriptionSource != "scraped" {
		t.Fatalf("collector descriptions are marked scraped")
	}
}

func TestCollectFeedRejectsMalformedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.json")
	mustWriteFile(t, path, `{"source": "broken", "events": [`)

	if _, err := NewFileCollector(path, zerolog.Nop()).Collect(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestCollectFeedDropsRelativeURLWithoutBase(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "control.json")
	mustWriteFile(t, path, `{"source": "control", "category": "music", "events": [{"title": "A", "venue": "Control", "url": "/a"}]}`)

	result, err := NewFileCollector(path, zerolog.Nop()).CollectFeed(context.Background())
	if err != nil {
		t.Fatalf("CollectFeed failed: %v", err)
	}
	if len(result.Events) != 0 || result.Dropped != 1 {
		t.Fatalf("relative url without base must be dropped: %+v", result)
	}
}

func TestDiscoverListsJSONFeeds(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mustWriteFile(t, filepath.Join(dir, "b.json"), "{}")
	mustWriteFile(t, filepath.Join(dir, "a.JSON"), "{}")
	mustWriteFile(t, filepath.Join(dir, ".hidden.json"), "{}")
	mustWriteFile(t, filepath.Join(dir, "notes.txt"), "x")
	if err := os.Mkdir(filepath.Join(dir, "nested.json"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	collectors, err := Discover(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(collectors) != 2 || collectors[0].Name() != "a" || collectors[1].Name() != "b" {
		names := make([]string, 0, len(collectors))
		for _, c := range collectors {
			names = append(names, c.Name())
		}
		t.Fatalf("unexpected collectors: %v", names)
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
