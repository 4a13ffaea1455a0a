package dedup

import (
	"testing"

	"horse.fit/gigradar/internal/event"
)

func TestMergeTakesFirstNonNilOptionalFields(t *testing.T) {
	t.Parallel()

	first := gig("Subcarpati", "Control", "2025-02-15", "iabilet")
	first.URL = ""
	second := gig("Subcarpati", "Control Club", "2025-02-15", "control")
	second.Price = event.StringPtr("80 lei")
	second.Description = event.StringPtr("Folk electronica")
	second.DescriptionSource = event.StringPtr("scraped")
	third := gig("Subcarpati", "Control", "2025-02-15", "eventbook")
	third.Price = event.StringPtr("95 lei")
	third.ImageURL = event.StringPtr("https://img.example/subcarpati.jpg")

	canonical := Merge([]event.Event{first, second, third})

	if canonical.Venue != "Control" {
		t.Fatalf("required fields must come from the first member, got venue %q", canonical.Venue)
	}
	if canonical.URL != second.URL {
		t.Fatalf("empty URL should fall back to the next member, got %q", canonical.URL)
	}
	if canonical.Price == nil || *canonical.Price != "80 lei" {
		t.Fatalf("unexpected price: %v", canonical.Price)
	}
	if canonical.DescriptionSource == nil || *canonical.DescriptionSource != "scraped" {
		t.Fatalf("description source must travel with description")
	}
	if canonical.ImageURL == nil || *canonical.ImageURL != "https://img.example/subcarpati.jpg" {
		t.Fatalf("unexpected image: %v", canonical.ImageURL)
	}
	if canonical.Source != "iabilet, control, eventbook" {
		t.Fatalf("unexpected source list: %q", canonical.Source)
	}
}

func TestMergeBorrowsArtistOnlyWhenSubjectIsUnchanged(t *testing.T) {
	t.Parallel()

	titleOnly := gig("Hamlet", "TNB", "2025-03-08", "tnb")
	titleOnly.Title = "Hamlet"
	titleOnly.Artist = nil

	other := gig("Teatrul Bulandra", "TNB", "2025-03-08", "iabilet")
	if got := Merge([]event.Event{titleOnly, other}); got.Artist != nil {
		t.Fatalf("artist that changes the subject must not be borrowed, got %q", *got.Artist)
	}

	same := gig("HAMLET", "TNB", "2025-03-08", "iabilet")
	got := Merge([]event.Event{titleOnly, other, same})
	if got.Artist == nil || *got.Artist != "HAMLET" {
		t.Fatalf("artist matching the subject should be borrowed, got %v", got.Artist)
	}
}

func TestMergeDeduplicatesSources(t *testing.T) {
	t.Parallel()

	a := gig("X", "Y", "2025-01-01", "iabilet")
	a.Sources = []string{"iabilet", "control"}
	b := gig("X", "Y", "2025-01-01", "control")

	canonical := Merge([]event.Event{a, b})
	if len(canonical.Sources) != 2 {
		t.Fatalf("expected 2 unique sources, got %v", canonical.Sources)
	}
}

func TestDisjointSetGroups(t *testing.T) {
	t.Parallel()

	ds := NewDisjointSet(6)
	ds.Union(4, 1)
	ds.Union(5, 3)
	ds.Union(3, 4)
	if ds.Union(1, 5) {
		t.Fatalf("union of already connected members must report false")
	}

	groups := ds.Groups()
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %v", groups)
	}
	if got := groups[1]; len(got) != 4 || got[0] != 1 || got[3] != 5 {
		t.Fatalf("unexpected merged group: %v", got)
	}
	if groups[0][0] != 0 || groups[2][0] != 2 {
		t.Fatalf("groups must be ordered by smallest member: %v", groups)
	}
}
