package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	SourcesDir            string `envconfig:"SOURCES_DIR" default:"data/sources"`
	SnapshotDir           string `envconfig:"SNAPSHOT_DIR" default:"data/snapshots"`
	SnapshotRetentionDays int    `envconfig:"SNAPSHOT_RETENTION_DAYS" default:"7"`
	VenueAliasesFile      string `envconfig:"VENUE_ALIASES_FILE" default:""`
	DropPastEvents        bool   `envconfig:"DROP_PAST_EVENTS" default:"true"`

	DedupPrimaryThreshold   float64 `envconfig:"DEDUP_PRIMARY_THRESHOLD" default:"0.85"`
	DedupSecondaryThreshold float64 `envconfig:"DEDUP_SECONDARY_THRESHOLD" default:"0.80"`
	DedupAmbiguityMargin    float64 `envconfig:"DEDUP_AMBIGUITY_MARGIN" default:"0.05"`
	DedupWorkers            int     `envconfig:"DEDUP_WORKERS" default:"4"`

	InterestProvider  string  `envconfig:"INTEREST_PROVIDER" default:"none"`
	InterestFile      string  `envconfig:"INTEREST_FILE" default:""`
	InterestThreshold float64 `envconfig:"INTEREST_THRESHOLD" default:"0.85"`

	SpotifyClientID     string `envconfig:"SPOTIFY_CLIENT_ID" default:""`
	SpotifyClientSecret string `envconfig:"SPOTIFY_CLIENT_SECRET" default:""`
	SpotifyRefreshToken string `envconfig:"SPOTIFY_REFRESH_TOKEN" default:""`

	Arbiter          string        `envconfig:"ARBITER" default:"none"`
	ArbiterEndpoint  string        `envconfig:"ARBITER_ENDPOINT" default:"http://127.0.0.1:8845/v1"`
	ArbiterModel     string        `envconfig:"ARBITER_MODEL" default:"gpt-4o-mini"`
	ArbiterAPIKey    string        `envconfig:"ARBITER_API_KEY" default:""`
	ArbiterTimeout   time.Duration `envconfig:"ARBITER_TIMEOUT" default:"30s"`
	ArbiterBatchSize int           `envconfig:"ARBITER_BATCH_SIZE" default:"20"`
	ArbiterMaxPairs  int           `envconfig:"ARBITER_MAX_PAIRS" default:"200"`

	EnrichEnabled bool          `envconfig:"ENRICH_ENABLED" default:"false"`
	EnrichTimeout time.Duration `envconfig:"ENRICH_TIMEOUT" default:"12s"`
	EnrichWorkers int           `envconfig:"ENRICH_WORKERS" default:"4"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.SnapshotDir) == "" {
		return fmt.Errorf("SNAPSHOT_DIR is required")
	}
	if c.SnapshotRetentionDays < 1 {
		return fmt.Errorf("SNAPSHOT_RETENTION_DAYS must be >= 1")
	}
	if err := validateRatio("DEDUP_PRIMARY_THRESHOLD", c.DedupPrimaryThreshold); err != nil {
		return err
	}
	if err := validateRatio("DEDUP_SECONDARY_THRESHOLD", c.DedupSecondaryThreshold); err != nil {
		return err
	}
	if err := validateRatio("INTEREST_THRESHOLD", c.InterestThreshold); err != nil {
		return err
	}
	if c.DedupAmbiguityMargin < 0 || c.DedupAmbiguityMargin >= 1 {
		return fmt.Errorf("DEDUP_AMBIGUITY_MARGIN must be in [0,1)")
	}
	if c.DedupWorkers < 1 {
		return fmt.Errorf("DEDUP_WORKERS must be >= 1")
	}

	switch c.InterestProviderName() {
	case "none":
	case "file":
		if strings.TrimSpace(c.InterestFile) == "" {
			return fmt.Errorf("INTEREST_FILE is required when INTEREST_PROVIDER=file")
		}
	case "spotify":
		if strings.TrimSpace(c.SpotifyClientID) == "" || strings.TrimSpace(c.SpotifyClientSecret) == "" {
			return fmt.Errorf("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET are required when INTEREST_PROVIDER=spotify")
		}
		if strings.TrimSpace(c.SpotifyRefreshToken) == "" {
			return fmt.Errorf("SPOTIFY_REFRESH_TOKEN is required when INTEREST_PROVIDER=spotify")
		}
	default:
		return fmt.Errorf("INTEREST_PROVIDER must be one of none, file, spotify")
	}

	switch c.ArbiterName() {
	case "none":
	case "llm":
		if strings.TrimSpace(c.ArbiterEndpoint) == "" {
			return fmt.Errorf("ARBITER_ENDPOINT is required when ARBITER=llm")
		}
	default:
		return fmt.Errorf("ARBITER must be one of none, llm")
	}
	if c.ArbiterTimeout <= 0 {
		return fmt.Errorf("ARBITER_TIMEOUT must be > 0")
	}
	if c.ArbiterBatchSize < 1 {
		return fmt.Errorf("ARBITER_BATCH_SIZE must be >= 1")
	}
	if c.ArbiterMaxPairs < 0 {
		return fmt.Errorf("ARBITER_MAX_PAIRS must be >= 0")
	}

	if c.EnrichTimeout <= 0 {
		return fmt.Errorf("ENRICH_TIMEOUT must be > 0")
	}
	if c.EnrichWorkers < 1 {
		return fmt.Errorf("ENRICH_WORKERS must be >= 1")
	}
	return nil
}

// SnapshotRetention is the trailing window of snapshots kept on disk.
func (c *Config) SnapshotRetention() time.Duration {
	if c == nil || c.SnapshotRetentionDays < 1 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.SnapshotRetentionDays) * 24 * time.Hour
}

func (c *Config) InterestProviderName() string {
	if c == nil {
		return "none"
	}
	name := strings.ToLower(strings.TrimSpace(c.InterestProvider))
	if name == "" {
		return "none"
	}
	return name
}

func (c *Config) ArbiterName() string {
	if c == nil {
		return "none"
	}
	name := strings.ToLower(strings.TrimSpace(c.Arbiter))
	if name == "" {
		return "none"
	}
	return name
}

func validateRatio(name string, value float64) error {
	if value <= 0 || value > 1 {
		return fmt.Errorf("%s must be in (0,1]", name)
	}
	return nil
}
