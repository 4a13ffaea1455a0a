package dedup

import (
	"strings"

	"horse.fit/gigradar/internal/event"
	"horse.fit/gigradar/internal/normalize"
)

// Merge builds the canonical record of a cluster. Required fields come from the first
// member and each optional field takes the first non-nil value in member order. Artist
// is only borrowed when it normalizes to the first member's subject, so the canonical
// identity key always equals the first member's key. Sources from every member are
// listed once each.
func Merge(members []event.Event) event.Event {
	if len(members) == 0 {
		return event.Event{}
	}

	canonical := members[0].Clone()
	if len(members) == 1 {
		canonical.Sources = members[0].SourceList()
		return canonical
	}

	subject := normalize.Text(canonical.Subject())
	for _, member := range members[1:] {
		if canonical.Artist == nil && member.Artist != nil && normalize.Text(*member.Artist) == subject {
			canonical.Artist = member.Artist
		}
		if canonical.Price == nil {
			canonical.Price = member.Price
		}
		if canonical.Description == nil && member.Description != nil {
			canonical.Description = member.Description
			canonical.DescriptionSource = member.DescriptionSource
		}
		if canonical.ImageURL == nil {
			canonical.ImageURL = member.ImageURL
		}
		if canonical.VideoURL == nil {
			canonical.VideoURL = member.VideoURL
		}
		if canonical.InterestMatch == nil {
			canonical.InterestMatch = member.InterestMatch
			canonical.InterestURL = member.InterestURL
		}
		if strings.TrimSpace(canonical.URL) == "" {
			canonical.URL = member.URL
		}
	}

	seen := make(map[string]struct{})
	sources := make([]string, 0, len(members))
	for _, member := range members {
		for _, source := range member.SourceList() {
			if _, ok := seen[source]; ok {
				continue
			}
			seen[source] = struct{}{}
			sources = append(sources, source)
		}
	}
	canonical.Sources = sources
	canonical.Source = strings.Join(sources, ", ")
	return canonical
}
