package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"horse.fit/gigradar/internal/event"
	"horse.fit/gigradar/internal/normalize"
	"horse.fit/gigradar/internal/snapshot"
)

func TestRunUsageExitCodes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		args []string
		want int
	}{
		{args: nil, want: 2},
		{args: []string{"help"}, want: 0},
		{args: []string{"bogus"}, want: 2},
		{args: []string{"snapshots"}, want: 2},
		{args: []string{"snapshots", "shred"}, want: 2},
		{args: []string{"run", "-h"}, want: 0},
		{args: []string{"run", "extra"}, want: 2},
		{args: []string{"diff", "--category", "opera"}, want: 2},
		{args: []string{"digest", "--format", "xml"}, want: 2},
		{args: []string{"serve", "--port", "0"}, want: 2},
	}
	for _, tc := range cases {
		if got := Run(tc.args); got != tc.want {
			t.Fatalf("Run(%v) = %d, want %d", tc.args, got, tc.want)
		}
	}
}

func TestValidateFeedsOverTestdata(t *testing.T) {
	t.Parallel()

	result, err := validateFeeds(context.Background(), filepath.Join("..", "..", "testdata", "sources"))
	if err != nil {
		t.Fatalf("validateFeeds failed: %v", err)
	}
	if result.Scanned != 3 || result.Valid != 3 || result.Invalid != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Events != 6 || result.Dateless != 1 {
		t.Fatalf("unexpected record counts: %+v", result)
	}
}

func TestValidateFlagsMalformedFeed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mustWriteFile(t, filepath.Join(dir, "broken.json"), `{"source":`)
	mustWriteFile(t, filepath.Join(dir, "notes.txt"), `ignored`)

	if got := runValidate([]string{"--dir", dir}); got != 1 {
		t.Fatalf("expected exit 1 for malformed feed, got %d", got)
	}
	if got := runValidate([]string{"--dir", t.TempDir()}); got != 1 {
		t.Fatalf("expected exit 1 for empty directory, got %d", got)
	}
}

func on(value string) *time.Time {
	parsed, err := time.Parse(event.DayLayout, value)
	if err != nil {
		panic(err)
	}
	return &parsed
}

func TestBuildDigestGroupsNewEvents(t *testing.T) {
	t.Parallel()

	keyer := event.NewKeyer(normalize.DefaultVenueAliases())
	seen := event.Event{Title: "Hamlet", Venue: "TNB", Date: on("2026-11-14"), Category: event.Theatre, Source: "tnb"}
	prior := snapshot.New(time.Date(2026, 10, 14, 6, 0, 0, 0, time.UTC), []event.Event{seen}, nil)

	latest := snapshot.New(time.Date(2026, 10, 15, 6, 0, 0, 0, time.UTC), []event.Event{
		seen,
		{Title: "Expo", Venue: "MNAC", Category: event.Culture, Source: "iabilet"},
		{Title: "Vita de Vie", Artist: event.StringPtr("Vita de Vie"), Venue: "Expirat", Date: on("2026-11-10"), Category: event.Music, InterestMatch: event.BoolPtr(false)},
		{Title: "Subcarpati", Artist: event.StringPtr("Subcarpati"), Venue: "Control", Date: on("2026-11-20"), Category: event.Music, InterestMatch: event.BoolPtr(true)},
		{Title: "Macbeth", Venue: "TNB", Date: on("2026-11-02"), Category: event.Theatre},
	}, nil)

	digest := buildDigest(keyer, latest, &prior, false)
	if digest.Total != 4 || digest.PriorSnapshotID != prior.ID {
		t.Fatalf("unexpected digest header: %+v", digest)
	}
	if len(digest.Sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(digest.Sections))
	}
	musicSection := digest.Sections[0]
	if musicSection.Category != event.Music || musicSection.Matched != 1 {
		t.Fatalf("music must come first with one match: %+v", musicSection)
	}
	if musicSection.Events[0].Title != "Subcarpati" {
		t.Fatalf("matched artist must lead the music section, got %q", musicSection.Events[0].Title)
	}
	if digest.Sections[1].Category != event.Theatre || digest.Sections[1].Events[0].Title != "Macbeth" {
		t.Fatalf("expected only the new theatre event, got %+v", digest.Sections[1])
	}

	matchedOnly := buildDigest(keyer, latest, &prior, true)
	if matchedOnly.Total != 1 || len(matchedOnly.Sections) != 1 {
		t.Fatalf("unexpected matched-only digest: %+v", matchedOnly)
	}

	var buf bytes.Buffer
	if err := renderDigest(&buf, digest); err != nil {
		t.Fatalf("renderDigest failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"new events: 4", "music (2)", "theatre (1)", "culture (1)", "TBA"} {
		if !strings.Contains(out, want) {
			t.Fatalf("rendered digest missing %q:\n%s", want, out)
		}
	}
}

func TestDiffSnapshotsFiltersAndLimits(t *testing.T) {
	t.Parallel()

	keyer := event.NewKeyer(nil)
	latest := snapshot.New(time.Now(), []event.Event{
		{Title: "A", Venue: "X", Category: event.Music},
		{Title: "B", Venue: "X", Category: event.Music},
		{Title: "C", Venue: "X", Category: event.Theatre},
	}, nil)

	music := event.Music
	out := diffSnapshots(keyer, latest, nil, &music, 1)
	if out.Total != 2 || len(out.New) != 1 || out.New[0].Title != "A" {
		t.Fatalf("unexpected diff output: %+v", out)
	}
}

func TestTruncateForTable(t *testing.T) {
	t.Parallel()

	if got := truncateForTable("  Subcarpați Concert Aniversar  ", 12); got != "Subcarpaț..." {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := truncateForTable("short", 12); got != "short" {
		t.Fatalf("unexpected short value: %q", got)
	}
}

// The run command reads config from the environment, so it cannot run in parallel.
func TestRunPipelineCommandWritesSnapshot(t *testing.T) {
	snapDir := t.TempDir()
	t.Setenv("GIGRADAR_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("SNAPSHOT_DIR", snapDir)
	t.Setenv("SOURCES_DIR", filepath.Join("..", "..", "testdata", "sources"))
	t.Setenv("DROP_PAST_EVENTS", "false")
	t.Setenv("INTEREST_PROVIDER", "none")
	t.Setenv("ARBITER", "none")
	t.Setenv("ENRICH_ENABLED", "false")

	metricsPath := filepath.Join(t.TempDir(), "gigradar.prom")
	if got := Run([]string{"run", "--metrics-file", metricsPath}); got != 0 {
		t.Fatalf("run exited with %d", got)
	}

	store, err := snapshot.NewFileStore(snapDir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	snaps, err := store.Latest(context.Background(), 1)
	if err != nil || len(snaps) != 1 {
		t.Fatalf("expected one stored snapshot, got %d (%v)", len(snaps), err)
	}
	if len(snaps[0].Events) != 5 {
		t.Fatalf("expected 5 canonical events, got %d", len(snaps[0].Events))
	}

	raw, err := os.ReadFile(metricsPath)
	if err != nil {
		t.Fatalf("metrics file not written: %v", err)
	}
	if !strings.Contains(string(raw), "gigradar_run_events") {
		t.Fatalf("unexpected metrics file:\n%s", raw)
	}

	if got := Run([]string{"digest", "--format", "json"}); got != 0 {
		t.Fatalf("digest exited with %d", got)
	}
	if got := Run([]string{"snapshots", "list"}); got != 0 {
		t.Fatalf("snapshots list exited with %d", got)
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}
