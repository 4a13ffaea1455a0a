package event

import (
	"errors"
	"testing"
	"time"

	"horse.fit/gigradar/internal/normalize"
)

func TestParseDateLayouts(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"2026-10-20":                "2026-10-20T00:00:00Z",
		"2026-10-20T21:30":          "2026-10-20T21:30:00Z",
		"2026-10-20 21:30:15":       "2026-10-20T21:30:15Z",
		"2026-10-20T21:30:00+03:00": "2026-10-20T21:30:00Z",
		"20.10.2026 19:00":          "2026-10-20T19:00:00Z",
	}
	for raw, want := range cases {
		got, err := ParseDate(raw)
		if err != nil {
			t.Fatalf("ParseDate(%q) failed: %v", raw, err)
		}
		if got.Format(time.RFC3339) != want {
			t.Fatalf("ParseDate(%q) = %s, want %s", raw, got.Format(time.RFC3339), want)
		}
	}
}

func TestParseDateFailure(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "soon", "2026-13-45"} {
		if _, err := ParseDate(raw); !errors.Is(err, ErrParseFailure) {
			t.Fatalf("ParseDate(%q) error = %v, want ErrParseFailure", raw, err)
		}
	}
}

func TestParseCategory(t *testing.T) {
	t.Parallel()

	got, err := ParseCategory(" Theater ")
	if err != nil || got != Theatre {
		t.Fatalf("ParseCategory(Theater) = %q, %v", got, err)
	}
	if _, err := ParseCategory("sports"); !errors.Is(err, ErrParseFailure) {
		t.Fatalf("expected parse failure for unknown category, got %v", err)
	}
}

func TestKeyUsesArtistThenTitle(t *testing.T) {
	t.Parallel()

	keyer := NewKeyer(normalize.DefaultVenueAliases())
	date := time.Date(2026, 10, 20, 21, 0, 0, 0, time.UTC)

	withArtist := Event{Title: "Live at Control", Artist: StringPtr("Subcarpați"), Venue: "Control Club", Date: &date, Category: Music}
	key := keyer.Key(withArtist)
	if key.Subject != "subcarpati" || key.Venue != "control" || key.Day != "2026-10-20" {
		t.Fatalf("unexpected key: %+v", key)
	}

	titleOnly := Event{Title: "Hamlet", Artist: StringPtr("  "), Venue: "TNB", Date: &date, Category: Theatre}
	if got := keyer.Key(titleOnly).Subject; got != "hamlet" {
		t.Fatalf("expected title fallback, got %q", got)
	}
}

func TestKeySeparatesCategories(t *testing.T) {
	t.Parallel()

	keyer := NewKeyer(nil)
	date := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	music := Event{Title: "Carmen", Venue: "Opera", Date: &date, Category: Music}
	theatre := music
	theatre.Category = Theatre

	if keyer.Key(music) == keyer.Key(theatre) {
		t.Fatalf("keys of different categories must differ")
	}
}

func TestSourceListFallsBackToSourceField(t *testing.T) {
	t.Parallel()

	e := Event{Source: "iabilet, eventbook ,"}
	got := e.SourceList()
	if len(got) != 2 || got[0] != "iabilet" || got[1] != "eventbook" {
		t.Fatalf("unexpected sources: %v", got)
	}
}

func TestIsPast(t *testing.T) {
	t.Parallel()

	today := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	yesterday := time.Date(2026, 10, 14, 23, 0, 0, 0, time.UTC)
	later := time.Date(2026, 10, 15, 1, 0, 0, 0, time.UTC)

	if !(Event{Date: &yesterday}).IsPast(today) {
		t.Fatalf("expected yesterday to be past")
	}
	if (Event{Date: &later}).IsPast(today) {
		t.Fatalf("an event earlier today is not past")
	}
	if (Event{}).IsPast(today) {
		t.Fatalf("dateless events are never past")
	}
}
