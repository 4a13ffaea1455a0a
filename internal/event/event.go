package event

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrParseFailure marks a record field a collector could not parse. The record is kept.
var ErrParseFailure = errors.New("parse failure")

// DayLayout is the calendar-date form used in identity keys and snapshot diffs.
const DayLayout = "2006-01-02"

type Category string

const (
	Music   Category = "music"
	Theatre Category = "theatre"
	Culture Category = "culture"
)

// Categories lists the supported categories in digest order.
var Categories = []Category{Music, Theatre, Culture}

func ParseCategory(raw string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(raw))) {
	case Music:
		return Music, nil
	case Theatre, "theater":
		return Theatre, nil
	case Culture:
		return Culture, nil
	default:
		return "", fmt.Errorf("%w: unknown category %q", ErrParseFailure, raw)
	}
}

// Event is one listing as reported by a collector, or the canonical record of a merged cluster.
type Event struct {
	Title    string     `json:"title"`
	Artist   *string    `json:"artist,omitempty"`
	Venue    string     `json:"venue"`
	Date     *time.Time `json:"date"`
	URL      string     `json:"url"`
	Source   string     `json:"source"`
	Sources  []string   `json:"sources,omitempty"`
	Category Category   `json:"category"`
	Price    *string    `json:"price,omitempty"`

	Description       *string `json:"description,omitempty"`
	DescriptionSource *string `json:"description_source,omitempty"`
	ImageURL          *string `json:"image_url,omitempty"`
	VideoURL          *string `json:"video_url,omitempty"`

	InterestMatch *bool   `json:"interest_match,omitempty"`
	InterestURL   *string `json:"interest_url,omitempty"`
}

// Subject is the raw identity subject: the artist when known, otherwise the title.
func (e Event) Subject() string {
	if e.Artist != nil {
		if artist := strings.TrimSpace(*e.Artist); artist != "" {
			return artist
		}
	}
	return e.Title
}

// Day returns the calendar date of the event, or "" when the date is unknown.
func (e Event) Day() string {
	if e.Date == nil {
		return ""
	}
	return e.Date.Format(DayLayout)
}

// SourceList returns the contributing sources in order, falling back to Source.
func (e Event) SourceList() []string {
	if len(e.Sources) > 0 {
		out := make([]string, len(e.Sources))
		copy(out, e.Sources)
		return out
	}
	if strings.TrimSpace(e.Source) == "" {
		return nil
	}
	parts := strings.Split(e.Source, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// IsPast reports whether the event took place before the given day. Dateless events are never past.
func (e Event) IsPast(today time.Time) bool {
	if e.Date == nil {
		return false
	}
	day := time.Date(e.Date.Year(), e.Date.Month(), e.Date.Day(), 0, 0, 0, 0, time.UTC)
	ref := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return day.Before(ref)
}

// Clone copies the event including its sources slice. Pointer fields are shared; they are
// replaced, never written through.
func (e Event) Clone() Event {
	out := e
	if e.Sources != nil {
		out.Sources = make([]string, len(e.Sources))
		copy(out.Sources, e.Sources)
	}
	return out
}

func StringPtr(value string) *string {
	return &value
}

func BoolPtr(value bool) *bool {
	return &value
}
