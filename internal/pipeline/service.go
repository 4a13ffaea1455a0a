package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/gigradar/internal/arbitration"
	"horse.fit/gigradar/internal/dedup"
	"horse.fit/gigradar/internal/enrich"
	"horse.fit/gigradar/internal/event"
	"horse.fit/gigradar/internal/globaltime"
	"horse.fit/gigradar/internal/interest"
	"horse.fit/gigradar/internal/metrics"
	"horse.fit/gigradar/internal/snapshot"
	"horse.fit/gigradar/internal/source"
)

type State string

const (
	StateCollecting  State = "COLLECTING"
	StateDeduping    State = "DEDUPING"
	StateArbitrating State = "ARBITRATING"
	StateMatching    State = "MATCHING"
	StateEnriching   State = "ENRICHING"
	StateDiffing     State = "DIFFING"
	StatePersisted   State = "PERSISTED"
)

var ErrNoStore = errors.New("snapshot store is required")

// SourceError records a collector that failed during a run. Other sources still run.
type SourceError struct {
	Source string
	Err    error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e SourceError) Unwrap() error {
	return e.Err
}

type Options struct {
	Collectors []source.Collector
	Keyer      event.Keyer

	Dedup       *dedup.Stage
	Arbitration *arbitration.Stage

	Interest          interest.Provider
	InterestThreshold float64

	Enricher      enrich.Enricher
	EnrichWorkers int

	Store     snapshot.Store
	Retention time.Duration

	// DropPast removes dated events before today. Dateless events are kept.
	DropPast bool

	// Now stamps the snapshot and decides what today and the prune cutoff are.
	// Defaults to globaltime.UTC.
	Now func() time.Time

	Metrics *metrics.Metrics
}

type SourceReport struct {
	Name     string `json:"name"`
	Events   int    `json:"events"`
	Dropped  int    `json:"dropped"`
	Dateless int    `json:"dateless"`
	Error    string `json:"error,omitempty"`
}

type Report struct {
	StartedAt   time.Time          `json:"started_at"`
	Duration    time.Duration      `json:"duration"`
	States      []State            `json:"states"`
	Sources     []SourceReport     `json:"sources"`
	Collected   int                `json:"collected"`
	Dropped     int                `json:"dropped"`
	DroppedPast int                `json:"dropped_past"`
	Dedup       dedup.Stats        `json:"dedup"`
	Arbitration arbitration.Report `json:"arbitration"`

	InterestProvider string `json:"interest_provider,omitempty"`
	InterestEntries  int    `json:"interest_entries"`
	InterestError    string `json:"interest_error,omitempty"`
	Matched          int    `json:"matched"`

	Enrichment enrich.Stats `json:"enrichment"`

	PriorSnapshotID string `json:"prior_snapshot_id,omitempty"`
	PriorReadError  string `json:"prior_read_error,omitempty"`
	Total           int    `json:"total"`
	New             int    `json:"new"`
	Pruned          int    `json:"pruned"`
	PruneError      string `json:"prune_error,omitempty"`

	SourceErrors []SourceError `json:"-"`
}

// Visited reports whether the run entered state.
func (r Report) Visited(state State) bool {
	for _, s := range r.States {
		if s == state {
			return true
		}
	}
	return false
}

type RunResult struct {
	Events   []event.Event
	New      []event.Event
	Snapshot snapshot.Snapshot
	Report   Report
}

type Service struct {
	opts   Options
	logger zerolog.Logger
}

func NewService(opts Options, logger zerolog.Logger) *Service {
	if opts.Dedup == nil {
		opts.Dedup = dedup.NewStage(opts.Keyer, dedup.DefaultOptions(), logger)
	}
	if opts.Arbitration == nil {
		opts.Arbitration = arbitration.NewStage(arbitration.Disabled{}, arbitration.Options{}, logger)
	}
	if opts.InterestThreshold <= 0 {
		opts.InterestThreshold = interest.DefaultThreshold
	}
	if opts.Retention <= 0 {
		opts.Retention = snapshot.DefaultRetention
	}
	if opts.Now == nil {
		opts.Now = globaltime.UTC
	}
	return &Service{opts: opts, logger: logger}
}

// Run executes one pipeline run. A snapshot write failure returns the complete result
// together with an error wrapping snapshot.ErrWrite. Any other error abandons the run
// before anything is persisted.
func (s *Service) Run(ctx context.Context) (RunResult, error) {
	if s.opts.Store == nil {
		return RunResult{}, ErrNoStore
	}

	started := time.Now()
	report := Report{StartedAt: s.opts.Now().UTC()}
	var (
		stage     State
		stageFrom time.Time
	)
	enter := func(next State) {
		if stage != "" {
			s.opts.Metrics.ObserveStage(string(stage), time.Since(stageFrom))
		}
		stage = next
		stageFrom = time.Now()
		report.States = append(report.States, next)
		s.logger.Debug().Str("state", string(next)).Msg("pipeline state entered")
	}

	enter(StateCollecting)
	batch, err := s.collect(ctx, &report)
	if err != nil {
		return RunResult{Report: report}, err
	}

	enter(StateDeduping)
	deduped, err := s.opts.Dedup.Run(ctx, batch)
	if err != nil {
		return RunResult{Report: report}, fmt.Errorf("dedup: %w", err)
	}
	report.Dedup = deduped.Stats
	s.opts.Metrics.DedupMerges(deduped.Stats.ExactMerges, deduped.Stats.FuzzyMerges, deduped.Stats.Ambiguous)

	resolved := deduped
	if len(deduped.Ambiguous) > 0 {
		enter(StateArbitrating)
		var arb arbitration.Report
		resolved, arb = s.opts.Arbitration.Resolve(ctx, deduped)
		report.Arbitration = arb
		rejected := arb.Sent - arb.Confirmed - arb.FailedPairs
		s.opts.Metrics.Arbitration(arb.Confirmed, rejected, arb.FailedPairs, arb.Capped)
	} else {
		resolved = deduped.Apply(nil)
	}
	if err := ctx.Err(); err != nil {
		return RunResult{Report: report}, err
	}
	events := resolved.Canonical()

	enter(StateMatching)
	matcher := s.loadInterest(ctx, &report)
	events, report.Matched = matcher.Annotate(events)

	if s.opts.Enricher != nil {
		enter(StateEnriching)
		events, report.Enrichment = enrich.Run(ctx, s.opts.Enricher, events, s.opts.EnrichWorkers, s.logger)
		if err := ctx.Err(); err != nil {
			return RunResult{Report: report}, err
		}
	}

	enter(StateDiffing)
	prior := s.priorSnapshot(ctx, &report)
	fresh := snapshot.Diff(s.opts.Keyer, events, prior)
	report.Total = len(events)
	report.New = len(fresh)

	capturedAt := s.opts.Now().UTC()
	snap := snapshot.New(capturedAt, events, matcher.Names())
	result := RunResult{
		Events:   events,
		New:      fresh,
		Snapshot: snap,
	}

	if err := s.opts.Store.Write(ctx, snap); err != nil {
		s.opts.Metrics.SnapshotError("write")
		s.opts.Metrics.ObserveStage(string(stage), time.Since(stageFrom))
		report.Duration = time.Since(started)
		result.Report = report
		s.logger.Error().
			Err(err).
			Int("events", report.Total).
			Int("new", report.New).
			Msg("snapshot write failed; returning unpersisted result")
		return result, fmt.Errorf("persist snapshot: %w", err)
	}

	enter(StatePersisted)
	pruned, err := snapshot.Prune(ctx, s.opts.Store, s.opts.Retention, capturedAt, s.logger)
	report.Pruned = pruned
	if err != nil {
		report.PruneError = err.Error()
		s.opts.Metrics.SnapshotError("prune")
	}
	s.opts.Metrics.ObserveStage(string(stage), time.Since(stageFrom))
	s.opts.Metrics.RunCompleted(capturedAt, report.Total, report.New, report.Matched)

	report.Duration = time.Since(started)
	result.Report = report

	s.logger.Info().
		Str("snapshot_id", snap.ID).
		Int("collected", report.Collected).
		Int("dropped", report.Dropped).
		Int("events", report.Total).
		Int("new", report.New).
		Int("matched", report.Matched).
		Int("source_errors", len(report.SourceErrors)).
		Dur("duration", report.Duration).
		Msg("pipeline run completed")
	return result, nil
}

func (s *Service) collect(ctx context.Context, report *Report) ([]event.Event, error) {
	batch := make([]event.Event, 0)
	for _, collector := range s.opts.Collectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := collector.Name()
		feed, err := collectFeed(ctx, collector)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			report.SourceErrors = append(report.SourceErrors, SourceError{Source: name, Err: err})
			report.Sources = append(report.Sources, SourceReport{Name: name, Error: err.Error()})
			s.opts.Metrics.SourceFailed(name)
			s.logger.Warn().Err(err).Str("source", name).Msg("source collection failed; continuing")
			continue
		}

		report.Sources = append(report.Sources, SourceReport{
			Name:     name,
			Events:   len(feed.Events),
			Dropped:  feed.Dropped,
			Dateless: feed.Dateless,
		})
		report.Dropped += feed.Dropped
		s.opts.Metrics.SourceCollected(name, len(feed.Events))
		s.opts.Metrics.SourceDropped(name, feed.Dropped)
		batch = append(batch, feed.Events...)
	}
	report.Collected = len(batch)

	if !s.opts.DropPast {
		return batch, nil
	}
	today := globaltime.Date(s.opts.Now().UTC())
	kept := batch[:0]
	for _, e := range batch {
		if e.IsPast(today) {
			report.DroppedPast++
			continue
		}
		kept = append(kept, e)
	}
	if report.DroppedPast > 0 {
		s.logger.Debug().Int("dropped", report.DroppedPast).Msg("dropped past events")
	}
	return kept, nil
}

// collectFeed keeps drop counts when the collector reports them.
func collectFeed(ctx context.Context, collector source.Collector) (source.FeedResult, error) {
	if feeder, ok := collector.(source.FeedCollector); ok {
		return feeder.CollectFeed(ctx)
	}
	events, err := collector.Collect(ctx)
	if err != nil {
		return source.FeedResult{}, err
	}
	return source.FeedResult{Source: collector.Name(), Events: events}, nil
}

// loadInterest never fails the run. Without entries every music event is unmatched.
func (s *Service) loadInterest(ctx context.Context, report *Report) *interest.Matcher {
	if s.opts.Interest == nil {
		return interest.NewMatcher(nil, s.opts.InterestThreshold, s.logger)
	}
	report.InterestProvider = s.opts.Interest.Name()

	entries, err := s.opts.Interest.Entries(ctx)
	if err != nil {
		report.InterestError = err.Error()
		s.logger.Warn().
			Err(err).
			Str("provider", report.InterestProvider).
			Msg("interest provider failed; matching against an empty set")
		entries = nil
	}
	matcher := interest.NewMatcher(entries, s.opts.InterestThreshold, s.logger)
	report.InterestEntries = matcher.Len()
	return matcher
}

// priorSnapshot treats any read failure as a first run.
func (s *Service) priorSnapshot(ctx context.Context, report *Report) *snapshot.Snapshot {
	latest, err := s.opts.Store.Latest(ctx, 1)
	if err != nil {
		report.PriorReadError = err.Error()
		s.opts.Metrics.SnapshotError("read")
		s.logger.Warn().Err(err).Msg("prior snapshot unreadable; treating every event as new")
		return nil
	}
	if len(latest) == 0 {
		return nil
	}
	report.PriorSnapshotID = latest[0].ID
	return &latest[0]
}
