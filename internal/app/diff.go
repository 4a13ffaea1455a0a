package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/gigradar/internal/cli"
	"horse.fit/gigradar/internal/event"
	"horse.fit/gigradar/internal/snapshot"
)

type diffOutput struct {
	SnapshotID      string        `json:"snapshot_id"`
	PriorSnapshotID string        `json:"prior_snapshot_id,omitempty"`
	Total           int           `json:"total"`
	New             []event.Event `json:"new"`
}

func runDiff(args []string) int {
	fs := flag.NewFlagSet("diff", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")
	category := fs.String("category", "", "Only list events of this category")
	limit := fs.Int("limit", 0, "Maximum rows to print (0 prints all)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *limit < 0 {
		fmt.Fprintln(os.Stderr, "--limit must be >= 0")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}
	var only *event.Category
	if raw := strings.TrimSpace(*category); raw != "" {
		parsed, err := event.ParseCategory(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid --category: %v\n", err)
			return 2
		}
		only = &parsed
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

	result := diffSnapshots(keyer, *latest, prior, only, *limit)
	if outputFormat == outputFormatJSON {
		if err := printJSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(result.New))
	for _, e := range result.New {
		rows = append(rows, []string{
			string(e.Category),
			formatEventDate(e.Date),
			truncateForTable(e.Title, 48),
			truncateForTable(e.Venue, 28),
			strings.Join(e.SourceList(), ","),
		})
	}
	if err := writeTable(os.Stdout, []string{"CATEGORY", "DATE", "TITLE", "VENUE", "SOURCES"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	fmt.Printf("\ndiff new=%d shown=%d snapshot=%s prior=%s\n", result.Total, len(result.New), result.SnapshotID, result.PriorSnapshotID)
	return 0
}

func diffSnapshots(keyer event.Keyer, latest snapshot.Snapshot, prior *snapshot.Snapshot, only *event.Category, limit int) diffOutput {
	out := diffOutput{SnapshotID: latest.ID, New: make([]event.Event, 0)}
	if prior != nil {
		out.PriorSnapshotID = prior.ID
	}
	for _, e := range snapshot.Diff(keyer, latest.Events, prior) {
		if only != nil && e.Category != *only {
			continue
		}
		out.Total++
		if limit > 0 && len(out.New) >= limit {
			continue
		}
		out.New = append(out.New, e)
	}
	return out
}
