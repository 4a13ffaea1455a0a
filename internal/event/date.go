package event

import (
	"fmt"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	DayLayout,
	"02.01.2006 15:04",
	"02.01.2006",
}

// ParseDate parses a collector date into timezone-naive wall time. Offsets are dropped,
// keeping the local wall clock the venue advertised.
func ParseDate(raw string) (*time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: date is empty", ErrParseFailure)
	}

	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, trimmed)
		if err != nil {
			continue
		}
		wall := time.Date(
			parsed.Year(), parsed.Month(), parsed.Day(),
			parsed.Hour(), parsed.Minute(), parsed.Second(), 0,
			time.UTC,
		)
		return &wall, nil
	}
	return nil, fmt.Errorf("%w: unrecognized date %q", ErrParseFailure, raw)
}
