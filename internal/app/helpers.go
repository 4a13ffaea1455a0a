package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"horse.fit/gigradar/internal/arbitration"
	"horse.fit/gigradar/internal/cli"
	"horse.fit/gigradar/internal/config"
	"horse.fit/gigradar/internal/dedup"
	"horse.fit/gigradar/internal/enrich"
	"horse.fit/gigradar/internal/event"
	"horse.fit/gigradar/internal/interest"
	"horse.fit/gigradar/internal/logging"
	"horse.fit/gigradar/internal/normalize"
	"horse.fit/gigradar/internal/snapshot"
)

const (
	outputFormatTable = "table"
	outputFormatJSON  = "json"
)

func parseOutputFormat(raw, defaultFormat string) (string, error) {
	format := strings.TrimSpace(strings.ToLower(raw))
	if format == "" {
		format = strings.TrimSpace(strings.ToLower(defaultFormat))
	}
	switch format {
	case outputFormatTable, outputFormatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("--format must be table or json")
	}
}

// loadRuntime loads the env file, config and logger the same way for every command.
func loadRuntime(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, error) {
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func buildKeyer(cfg *config.Config) (event.Keyer, error) {
	aliases, err := normalize.LoadVenueAliases(cfg.VenueAliasesFile)
	if err != nil {
		return event.Keyer{}, err
	}
	return event.NewKeyer(aliases), nil
}

func buildDedupStage(cfg *config.Config, keyer event.Keyer, logger zerolog.Logger) *dedup.Stage {
	return dedup.NewStage(keyer, dedup.Options{
		PrimaryThreshold:   cfg.DedupPrimaryThreshold,
		SecondaryThreshold: cfg.DedupSecondaryThreshold,
		AmbiguityMargin:    cfg.DedupAmbiguityMargin,
		Workers:            cfg.DedupWorkers,
	}, logger)
}

func buildArbitrationStage(cfg *config.Config, logger zerolog.Logger) (*arbitration.Stage, error) {
	arbiter, err := arbitration.New(cfg.ArbiterName(), arbitration.FactoryOptions{
		Endpoint: cfg.ArbiterEndpoint,
		Model:    cfg.ArbiterModel,
		APIKey:   cfg.ArbiterAPIKey,
		Timeout:  cfg.ArbiterTimeout,
	})
	if err != nil {
		return nil, err
	}
	return arbitration.NewStage(arbiter, arbitration.Options{
		BatchSize:    cfg.ArbiterBatchSize,
		MaxPairs:     cfg.ArbiterMaxPairs,
		BatchTimeout: cfg.ArbiterTimeout,
	}, logger), nil
}

// buildInterestProvider returns nil when interest matching is disabled.
func buildInterestProvider(cfg *config.Config) (interest.Provider, error) {
	switch cfg.InterestProviderName() {
	case "none":
		return nil, nil
	case "file":
		return interest.FileProvider{Path: strings.TrimSpace(cfg.InterestFile)}, nil
	case "spotify":
		return &interest.SpotifyProvider{
			ClientID:     strings.TrimSpace(cfg.SpotifyClientID),
			ClientSecret: strings.TrimSpace(cfg.SpotifyClientSecret),
			RefreshToken: strings.TrimSpace(cfg.SpotifyRefreshToken),
		}, nil
	default:
		return nil, fmt.Errorf("unknown interest provider %q", cfg.InterestProvider)
	}
}

// buildEnricher returns nil when enrichment is disabled.
func buildEnricher(cfg *config.Config) enrich.Enricher {
	if !cfg.EnrichEnabled {
		return nil
	}
	return enrich.NewReaderEnricher(enrich.ReaderOptions{Timeout: cfg.EnrichTimeout})
}

func openStore(cfg *config.Config) (*snapshot.FileStore, error) {
	store, err := snapshot.NewFileStore(cfg.SnapshotDir)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}
	return store, nil
}

// latestPair returns the newest snapshot and the one before it, if any.
func latestPair(snaps []snapshot.Snapshot) (*snapshot.Snapshot, *snapshot.Snapshot) {
	switch len(snaps) {
	case 0:
		return nil, nil
	case 1:
		return &snaps[0], nil
	default:
		return &snaps[0], &snaps[1]
	}
}

func truncateForTable(value string, maxLen int) string {
	trimmed := strings.TrimSpace(value)
	if maxLen <= 0 {
		return trimmed
	}
	if utf8.RuneCountInString(trimmed) <= maxLen {
		return trimmed
	}

	runes := []rune(trimmed)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

func pointerStringOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

func formatEventDate(value *time.Time) string {
	if value == nil || value.IsZero() {
		return "TBA"
	}
	if value.Hour() == 0 && value.Minute() == 0 {
		return value.Format(event.DayLayout)
	}
	return value.Format("2006-01-02 15:04")
}

func formatUTCTimestamp(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func printJSON(value any) error {
	return writeJSON(os.Stdout, value)
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func writeTable(w io.Writer, headers []string, rows [][]string) error {
	writer := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	if _, err := fmt.Fprintln(writer, strings.Join(headers, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(writer, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return writer.Flush()
}
