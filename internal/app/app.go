package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "run":
		return runPipeline(args[1:])
	case "diff":
		return runDiff(args[1:])
	case "digest":
		return runDigest(args[1:])
	case "snapshots":
		return runSnapshots(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "gigradar CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  gigradar <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  run        Collect, dedup, match and snapshot one batch of events")
	fmt.Fprintln(os.Stderr, "  diff       List events new in the latest snapshot")
	fmt.Fprintln(os.Stderr, "  digest     Render new events grouped by category")
	fmt.Fprintln(os.Stderr, "  snapshots  List or prune stored snapshots")
	fmt.Fprintln(os.Stderr, "  validate   Validate source feed files against the event schema")
	fmt.Fprintln(os.Stderr, "  serve      Start Echo API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"gigradar <command> -h\" for command-specific flags.")
}
