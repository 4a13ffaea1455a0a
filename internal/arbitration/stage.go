package arbitration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/gigradar/internal/dedup"
	"horse.fit/gigradar/internal/event"
)

const (
	DefaultBatchSize    = 20
	DefaultMaxPairs     = 200
	DefaultBatchTimeout = 30 * time.Second
)

type Options struct {
	BatchSize    int
	MaxPairs     int
	BatchTimeout time.Duration
}

type Report struct {
	Arbiter       string `json:"arbiter"`
	Candidates    int    `json:"candidates"`
	Sent          int    `json:"sent"`
	Capped        int    `json:"capped"`
	Confirmed     int    `json:"confirmed"`
	Batches       int    `json:"batches"`
	FailedBatches int    `json:"failed_batches"`
	FailedPairs   int    `json:"failed_pairs"`
}

type Stage struct {
	arbiter Arbiter
	opts    Options
	logger  zerolog.Logger
}

func NewStage(arbiter Arbiter, opts Options, logger zerolog.Logger) *Stage {
	if arbiter == nil {
		arbiter = Disabled{}
	}
	return &Stage{
		arbiter: arbiter,
		opts:    normalizeOptions(opts),
		logger:  logger,
	}
}

// Resolve sends the near-miss pairs of a dedup result to the arbiter and applies the
// confirmed ones transitively. A failing batch leaves its pairs distinct; Resolve itself
// never fails.
func (s *Stage) Resolve(ctx context.Context, result dedup.Result) (dedup.Result, Report) {
	report := Report{Candidates: len(result.Ambiguous)}
	if s == nil {
		return result.Apply(nil), report
	}
	report.Arbiter = s.arbiter.Name()
	if len(result.Ambiguous) == 0 {
		return result.Apply(nil), report
	}
	if _, disabled := s.arbiter.(Disabled); disabled {
		s.logger.Debug().Int("candidates", report.Candidates).Msg("arbitration disabled; near-misses kept distinct")
		return result.Apply(nil), report
	}

	candidates := make([]dedup.Candidate, len(result.Ambiguous))
	copy(candidates, result.Ambiguous)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score() > candidates[j].Score()
	})
	if s.opts.MaxPairs > 0 && len(candidates) > s.opts.MaxPairs {
		report.Capped = len(candidates) - s.opts.MaxPairs
		candidates = candidates[:s.opts.MaxPairs]
	}
	report.Sent = len(candidates)

	var confirmed []dedup.Candidate
	for start := 0; start < len(candidates); start += s.opts.BatchSize {
		end := start + s.opts.BatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]
		report.Batches++

		verdicts, err := s.judgeBatch(ctx, result.Events, batch)
		if err != nil {
			report.FailedBatches++
			report.FailedPairs += len(batch)
			s.logger.Warn().
				Err(err).
				Str("arbiter", report.Arbiter).
				Int("batch", report.Batches).
				Int("pairs", len(batch)).
				Msg("arbitration batch failed; pairs kept distinct")
			continue
		}
		for i, duplicate := range verdicts {
			if duplicate {
				confirmed = append(confirmed, batch[i])
			}
		}
	}
	report.Confirmed = len(confirmed)

	s.logger.Info().
		Str("arbiter", report.Arbiter).
		Int("candidates", report.Candidates).
		Int("sent", report.Sent).
		Int("capped", report.Capped).
		Int("confirmed", report.Confirmed).
		Int("failed_batches", report.FailedBatches).
		Msg("arbitration completed")

	return result.Apply(confirmed), report
}

func (s *Stage) judgeBatch(ctx context.Context, events []event.Event, batch []dedup.Candidate) ([]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	pairs := make([]Pair, 0, len(batch))
	for _, candidate := range batch {
		pairs = append(pairs, Pair{
			Left:  recordFor(events[candidate.Left]),
			Right: recordFor(events[candidate.Right]),
		})
	}

	batchCtx, cancel := context.WithTimeout(ctx, s.opts.BatchTimeout)
	defer cancel()

	verdicts, err := s.arbiter.Judge(batchCtx, pairs)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(verdicts) != len(pairs) {
		return nil, fmt.Errorf("%w: got %d verdicts for %d pairs", ErrUnavailable, len(verdicts), len(pairs))
	}
	return verdicts, nil
}

func recordFor(e event.Event) Record {
	record := Record{
		Title: e.Title,
		Date:  e.Day(),
		Venue: e.Venue,
	}
	if e.Artist != nil {
		record.Artist = *e.Artist
	}
	return record
}

func normalizeOptions(opts Options) Options {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxPairs < 0 {
		opts.MaxPairs = DefaultMaxPairs
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = DefaultBatchTimeout
	}
	return opts
}
