package snapshot

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/gigradar/internal/event"
)

const DefaultRetention = 7 * 24 * time.Hour

// Diff returns the current events whose exact key is absent from the prior snapshot.
// With no prior snapshot every event is new. Changed optional fields such as price do
// not make an event new.
func Diff(keyer event.Keyer, current []event.Event, prior *Snapshot) []event.Event {
	if prior == nil {
		out := make([]event.Event, len(current))
		copy(out, current)
		return out
	}

	seen := make(map[event.Key]struct{}, len(prior.Events))
	for _, e := range prior.Events {
		seen[keyer.Key(e)] = struct{}{}
	}

	out := make([]event.Event, 0)
	for _, e := range current {
		if _, ok := seen[keyer.Key(e)]; ok {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Prune deletes snapshots captured before now-window. Failures are logged and returned
// for reporting; they never invalidate a run.
func Prune(ctx context.Context, store Store, window time.Duration, now time.Time, logger zerolog.Logger) (int, error) {
	if store == nil {
		return 0, nil
	}
	if window <= 0 {
		window = DefaultRetention
	}
	cutoff := now.Add(-window)

	deleted, err := store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		logger.Warn().Err(err).Time("cutoff", cutoff).Int("deleted", deleted).Msg("snapshot retention prune incomplete")
		return deleted, err
	}
	if deleted > 0 {
		logger.Info().Time("cutoff", cutoff).Int("deleted", deleted).Msg("pruned expired snapshots")
	}
	return deleted, nil
}
