package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"horse.fit/gigradar/internal/cli"
	"horse.fit/gigradar/internal/event"
	"horse.fit/gigradar/internal/snapshot"
)

type digestSection struct {
	Category event.Category `json:"category"`
	Matched  int            `json:"matched"`
	Events   []event.Event  `json:"events"`
}

type digestOutput struct {
	SnapshotID      string          `json:"snapshot_id"`
	CapturedAt      time.Time       `json:"captured_at"`
	PriorSnapshotID string          `json:"prior_snapshot_id,omitempty"`
	Total           int             `json:"total"`
	Sections        []digestSection `json:"sections"`
}

func runDigest(args []string) int {
	fs := flag.NewFlagSet("digest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")
	matchedOnly := fs.Bool("matched-only", false, "Only include music events matching the interest set")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "digest does not accept positional arguments")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	cfg, _, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	keyer, err := buildKeyer(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load venue aliases: %v\n", err)
		return 1
	}
	store, err := openStore(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	snaps, err := store.Latest(ctx, 2)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load snapshots: %v\n", err)
		return 1
	}
	latest, prior := latestPair(snaps)
	if latest == nil {
		fmt.Fprintf(os.Stderr, "No snapshots under %s; run \"gigradar run\" first\n", store.Dir())
		return 1
	}

	digest := buildDigest(keyer, *latest, prior, *matchedOnly)
	if outputFormat == outputFormatJSON {
		if err := printJSON(digest); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}
	if err := renderDigest(os.Stdout, digest); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render digest: %v\n", err)
		return 1
	}
	return 0
}

// buildDigest groups the events new in latest by category, music first. Within music,
// interest matches lead; every section is then ordered by date with dateless events last.
func buildDigest(keyer event.Keyer, latest snapshot.Snapshot, prior *snapshot.Snapshot, matchedOnly bool) digestOutput {
	out := digestOutput{
		SnapshotID: latest.ID,
		CapturedAt: latest.CapturedAt,
	}
	if prior != nil {
		out.PriorSnapshotID = prior.ID
	}

	byCategory := make(map[event.Category][]event.Event)
	for _, e := range snapshot.Diff(keyer, latest.Events, prior) {
		matched := isMatched(e)
		if matchedOnly && !matched {
			continue
		}
		byCategory[e.Category] = append(byCategory[e.Category], e)
	}

	for _, category := range event.Categories {
		events := byCategory[category]
		if len(events) == 0 {
			continue
		}
		sort.SliceStable(events, func(i, j int) bool {
			mi, mj := isMatched(events[i]), isMatched(events[j])
			if mi != mj {
				return mi
			}
			return eventBefore(events[i], events[j])
		})

		section := digestSection{Category: category, Events: events}
		for _, e := range events {
			if isMatched(e) {
				section.Matched++
			}
		}
		out.Sections = append(out.Sections, section)
		out.Total += len(events)
	}
	return out
}

func renderDigest(w io.Writer, digest digestOutput) error {
	fmt.Fprintf(w, "snapshot: %s (%s)\n", digest.SnapshotID, formatUTCTimestamp(digest.CapturedAt))
	if digest.PriorSnapshotID != "" {
		fmt.Fprintf(w, "since: %s\n", digest.PriorSnapshotID)
	}
	fmt.Fprintf(w, "new events: %d\n", digest.Total)

	for _, section := range digest.Sections {
		fmt.Fprintf(w, "\n%s (%d)\n", section.Category, len(section.Events))

		rows := make([][]string, 0, len(section.Events))
		for _, e := range section.Events {
			mark := ""
			if isMatched(e) {
				mark = "*"
			}
			rows = append(rows, []string{
				mark,
				formatEventDate(e.Date),
				truncateForTable(e.Title, 48),
				truncateForTable(e.Venue, 28),
				pointerStringOrEmpty(e.Price),
				strings.Join(e.SourceList(), ","),
				e.URL,
			})
		}
		if err := writeTable(w, []string{"", "DATE", "TITLE", "VENUE", "PRICE", "SOURCES", "URL"}, rows); err != nil {
			return err
		}
	}
	return nil
}

func isMatched(e event.Event) bool {
	return e.InterestMatch != nil && *e.InterestMatch
}

func eventBefore(a, b event.Event) bool {
	switch {
	case a.Date == nil && b.Date == nil:
		return a.Title < b.Title
	case a.Date == nil:
		return false
	case b.Date == nil:
		return true
	case !a.Date.Equal(*b.Date):
		return a.Date.Before(*b.Date)
	default:
		return a.Title < b.Title
	}
}
