package event

import (
	"strings"

	"horse.fit/gigradar/internal/normalize"
)

// Key is the exact identity of an event within one category.
type Key struct {
	Category Category
	Subject  string
	Day      string
	Venue    string
}

func (k Key) String() string {
	return strings.Join([]string{string(k.Category), k.Subject, k.Day, k.Venue}, "|")
}

// Keyer derives normalized comparison values for events using one venue alias table.
type Keyer struct {
	aliases normalize.VenueAliases
}

func NewKeyer(aliases normalize.VenueAliases) Keyer {
	return Keyer{aliases: aliases}
}

func (k Keyer) Subject(e Event) string {
	return normalize.Text(e.Subject())
}

func (k Keyer) Venue(e Event) string {
	return normalize.Venue(e.Venue, k.aliases)
}

func (k Keyer) Key(e Event) Key {
	return Key{
		Category: e.Category,
		Subject:  k.Subject(e),
		Day:      e.Day(),
		Venue:    k.Venue(e),
	}
}
