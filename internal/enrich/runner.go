package enrich

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"horse.fit/gigradar/internal/event"
)

const DefaultWorkers = 4

type Stats struct {
	Eligible int `json:"eligible"`
	Enriched int `json:"enriched"`
	Failed   int `json:"failed"`
}

// Run enriches eligible events with a bounded worker pool. A failed event keeps its
// original fields; only context cancellation stops the run early.
func Run(ctx context.Context, enricher Enricher, events []event.Event, workers int, logger zerolog.Logger) ([]event.Event, Stats) {
	out := make([]event.Event, len(events))
	copy(out, events)

	var stats Stats
	if enricher == nil {
		return out, stats
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}

	eligible := make([]int, 0)
	for i, e := range events {
		if enricher.Applies(e) {
			eligible = append(eligible, i)
		}
	}
	stats.Eligible = len(eligible)
	if len(eligible) == 0 {
		return out, stats
	}

	errs := make([]error, len(eligible))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for slot, idx := range eligible {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[slot] = err
				return nil
			}
			enriched, err := enricher.Enrich(gctx, events[idx])
			if err != nil {
				errs[slot] = err
				return nil
			}
			out[idx] = enriched
			return nil
		})
	}
	_ = g.Wait()

	for slot, err := range errs {
		if err == nil {
			stats.Enriched++
			continue
		}
		stats.Failed++
		logger.Debug().
			Err(err).
			Str("enricher", enricher.Name()).
			Str("url", events[eligible[slot]].URL).
			Msg("event enrichment failed")
	}

	logger.Info().
		Str("enricher", enricher.Name()).
		Int("eligible", stats.Eligible).
		Int("enriched", stats.Enriched).
		Int("failed", stats.Failed).
		Msg("enrichment completed")
	return out, stats
}
