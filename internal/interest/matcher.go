package interest

import (
	"strings"

	"github.com/rs/zerolog"

	"horse.fit/gigradar/internal/event"
	"horse.fit/gigradar/internal/normalize"
	"horse.fit/gigradar/internal/similarity"
)

const DefaultThreshold = 0.85

// Entry is one followed artist.
type Entry struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

type normalizedEntry struct {
	Entry
	key string
}

// Matcher flags music events whose artist (or title, when no artist is known) matches
// an interest entry. The first matching entry in provider order wins.
type Matcher struct {
	entries   []normalizedEntry
	exact     map[string]int
	threshold float64
	logger    zerolog.Logger
}

func NewMatcher(entries []Entry, threshold float64, logger zerolog.Logger) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}

	m := &Matcher{
		entries:   make([]normalizedEntry, 0, len(entries)),
		exact:     make(map[string]int, len(entries)),
		threshold: threshold,
		logger:    logger,
	}
	for _, entry := range entries {
		key := normalize.Text(entry.Name)
		if key == "" {
			continue
		}
		if _, ok := m.exact[key]; ok {
			continue
		}
		m.exact[key] = len(m.entries)
		m.entries = append(m.entries, normalizedEntry{Entry: entry, key: key})
	}
	return m
}

func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Names returns the interest set in provider order.
func (m *Matcher) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.entries))
	for _, entry := range m.entries {
		names = append(names, entry.Name)
	}
	return names
}

// Match returns the entry matching a subject, if any.
func (m *Matcher) Match(subject string) (Entry, bool) {
	if m == nil {
		return Entry{}, false
	}
	key := normalize.Text(subject)
	if key == "" {
		return Entry{}, false
	}
	if idx, ok := m.exact[key]; ok {
		return m.entries[idx].Entry, true
	}
	for _, entry := range m.entries {
		if similarity.Ratio(key, entry.key) > m.threshold {
			return entry.Entry, true
		}
	}
	return Entry{}, false
}

// Annotate returns a copy of events with interest flags set on music events. Other
// categories are left without a flag.
func (m *Matcher) Annotate(events []event.Event) ([]event.Event, int) {
	out := make([]event.Event, len(events))
	matched := 0
	for i, e := range events {
		annotated := e.Clone()
		if annotated.Category != event.Music {
			annotated.InterestMatch = nil
			annotated.InterestURL = nil
			out[i] = annotated
			continue
		}

		entry, ok := m.Match(annotated.Subject())
		annotated.InterestMatch = event.BoolPtr(ok)
		annotated.InterestURL = nil
		if ok {
			matched++
			if url := strings.TrimSpace(entry.URL); url != "" {
				annotated.InterestURL = event.StringPtr(url)
			}
		}
		out[i] = annotated
	}

	if m != nil {
		m.logger.Debug().
			Int("events", len(events)).
			Int("interest_entries", len(m.entries)).
			Int("matched", matched).
			Msg("interest matching completed")
	}
	return out, matched
}
