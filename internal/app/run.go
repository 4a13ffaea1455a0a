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
	"horse.fit/gigradar/internal/metrics"
	"horse.fit/gigradar/internal/pipeline"
	"horse.fit/gigradar/internal/snapshot"
	"horse.fit/gigradar/internal/source"
)

func runPipeline(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	sourcesDir := fs.String("sources-dir", "", "Directory of source feed files (overrides SOURCES_DIR)")
	metricsFile := fs.String("metrics-file", "", "Write run metrics in Prometheus text format to this file")
	format := fs.String("format", outputFormatTable, "Report format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "run does not accept positional arguments")
		return 2
	}
	if *timeout <= 0 {
		fmt.Fprintln(os.Stderr, "--timeout must be > 0")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	dir := strings.TrimSpace(*sourcesDir)
	if dir == "" {
		dir = cfg.SourcesDir
	}
	files, err := source.Discover(dir, logger)
	if err != nil {
		logger.Error().Err(err).Str("dir", dir).Msg("source discovery failed")
		fmt.Fprintf(os.Stderr, "Source discovery failed: %v\n", err)
		return 1
	}
	if len(files) == 0 {
		logger.Warn().Str("dir", dir).Msg("no source feeds found; snapshot will be empty")
	}

	keyer, err := buildKeyer(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load venue aliases: %v\n", err)
		return 1
	}
	arbitrationStage, err := buildArbitrationStage(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure arbiter: %v\n", err)
		return 1
	}
	provider, err := buildInterestProvider(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure interest provider: %v\n", err)
		return 1
	}
	store, err := openStore(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	m := metrics.New()
	svc := pipeline.NewService(pipeline.Options{
		Collectors:        source.Collectors(files),
		Keyer:             keyer,
		Dedup:             buildDedupStage(cfg, keyer, logger),
		Arbitration:       arbitrationStage,
		Interest:          provider,
		InterestThreshold: cfg.InterestThreshold,
		Enricher:          buildEnricher(cfg),
		EnrichWorkers:     cfg.EnrichWorkers,
		Store:             store,
		Retention:         cfg.SnapshotRetention(),
		DropPast:          cfg.DropPastEvents,
		Metrics:           m,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, runErr := svc.Run(ctx)
	if runErr != nil && !errors.Is(runErr, snapshot.ErrWrite) {
		logger.Error().Err(runErr).Msg("pipeline run failed")
		fmt.Fprintf(os.Stderr, "Run failed: %v\n", runErr)
		return 1
	}

	if path := strings.TrimSpace(*metricsFile); path != "" {
		if err := m.WriteTextfile(path); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("metrics textfile not written")
		}
	}

	report := result.Report
	if outputFormat == outputFormatJSON {
		if err := printJSON(report); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
	} else {
		fmt.Printf(
			"run collected=%d dropped=%d events=%d new=%d matched=%d ambiguous=%d confirmed=%d source_errors=%d snapshot=%s\n",
			report.Collected,
			report.Dropped,
			report.Total,
			report.New,
			report.Matched,
			report.Dedup.Ambiguous,
			report.Arbitration.Confirmed,
			len(report.SourceErrors),
			result.Snapshot.ID,
		)
		for _, srcErr := range report.SourceErrors {
			fmt.Fprintf(os.Stderr, "SOURCE FAILED %s: %v\n", srcErr.Source, srcErr.Err)
		}
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Snapshot not persisted: %v\n", runErr)
		return 1
	}
	return 0
}
