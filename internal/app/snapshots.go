package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"horse.fit/gigradar/internal/cli"
	"horse.fit/gigradar/internal/globaltime"
	"horse.fit/gigradar/internal/snapshot"
)

func runSnapshots(args []string) int {
	if len(args) == 0 {
		printSnapshotsUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printSnapshotsUsage()
		return 0
	case "list", "ls":
		return runSnapshotsList(args[1:])
	case "prune":
		return runSnapshotsPrune(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown snapshots command: %s\n\n", args[0])
		printSnapshotsUsage()
		return 2
	}
}

func printSnapshotsUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  gigradar snapshots list [flags]")
	fmt.Fprintln(os.Stderr, "  gigradar snapshots prune [flags]")
}

func runSnapshotsList(args []string) int {
	fs := flag.NewFlagSet("snapshots list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
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
	store, err := openStore(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	infos, err := store.List(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list snapshots: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(infos); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{
			info.Name,
			formatUTCTimestamp(info.CapturedAt),
			strconv.FormatInt(info.SizeBytes, 10),
		})
	}
	if err := writeTable(os.Stdout, []string{"NAME", "CAPTURED_AT", "BYTES"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}

func runSnapshotsPrune(args []string) int {
	fs := flag.NewFlagSet("snapshots prune", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	retentionDays := fs.Int("retention-days", 0, "Retention window in days (defaults to SNAPSHOT_RETENTION_DAYS)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *retentionDays < 0 {
		fmt.Fprintln(os.Stderr, "--retention-days must be >= 0")
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	store, err := openStore(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	window := cfg.SnapshotRetention()
	if *retentionDays > 0 {
		window = time.Duration(*retentionDays) * 24 * time.Hour
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	deleted, err := snapshot.Prune(ctx, store, window, globaltime.UTC(), logger)
	fmt.Printf("snapshots prune deleted=%d retention=%s dir=%s\n", deleted, window, store.Dir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Prune incomplete: %v\n", err)
		return 1
	}
	return 0
}
