package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/gigradar/internal/source"
)

type validateResult struct {
	Scanned  int
	Valid    int
	Invalid  int
	Events   int
	Dropped  int
	Dateless int
}

func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	dir := fs.String("dir", "data/sources", "Directory containing source feed .json files")
	strict := fs.Bool("strict", false, "Treat dropped records as a validation failure")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cleanDir := strings.TrimSpace(*dir)
	result, err := validateFeeds(ctx, cleanDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation setup failed: %v\n", err)
		return 1
	}

	fmt.Printf(
		"validate scanned=%d valid=%d invalid=%d events=%d dropped=%d dateless=%d dir=%s\n",
		result.Scanned,
		result.Valid,
		result.Invalid,
		result.Events,
		result.Dropped,
		result.Dateless,
		cleanDir,
	)

	if result.Scanned == 0 {
		fmt.Fprintf(os.Stderr, "Validation failed: no .json files found under %s\n", cleanDir)
		return 1
	}
	if result.Invalid > 0 {
		return 1
	}
	if *strict && result.Dropped > 0 {
		return 1
	}
	return 0
}

// validateFeeds reads every feed in dir. Record-level problems are counted, not fatal.
func validateFeeds(ctx context.Context, dir string) (validateResult, error) {
	files, err := source.Discover(dir, zerolog.Nop())
	if err != nil {
		return validateResult{}, err
	}

	result := validateResult{}
	for _, file := range files {
		result.Scanned++

		feed, err := file.CollectFeed(ctx)
		if err != nil {
			result.Invalid++
			fmt.Fprintf(os.Stderr, "INVALID %s: %v\n", file.Path(), err)
			continue
		}

		result.Valid++
		result.Events += len(feed.Events)
		result.Dropped += feed.Dropped
		result.Dateless += feed.Dateless
		if feed.Dropped > 0 {
			fmt.Fprintf(os.Stderr, "DROPPED %s: %d record(s) failed validation\n", file.Path(), feed.Dropped)
		}
	}
	return result, nil
}
