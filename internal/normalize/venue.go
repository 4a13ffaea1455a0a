package normalize

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed venue_aliases.yaml
var defaultVenueAliasesYAML []byte

// VenueAliases maps a punctuation-free venue form to its canonical venue key.
type VenueAliases map[string]string

type venueAliasFile struct {
	Venues map[string][]string `yaml:"venues"`
}

// Venue builds the comparison key for a venue name.
func Venue(name string, aliases VenueAliases) string {
	key := StripPunctuation(Text(name))
	if canonical, ok := aliases[key]; ok {
		return canonical
	}
	return key
}

// DefaultVenueAliases returns the built-in alias table.
func DefaultVenueAliases() VenueAliases {
	aliases, err := ParseVenueAliases(defaultVenueAliasesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded venue aliases are invalid: %v", err))
	}
	return aliases
}

// LoadVenueAliases reads an alias file and layers it over the built-in table.
// An empty path returns the built-in table.
func LoadVenueAliases(path string) (VenueAliases, error) {
	aliases := DefaultVenueAliases()
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return aliases, nil
	}

	raw, err := os.ReadFile(trimmed)
	if err != nil {
		return nil, fmt.Errorf("read venue aliases %s: %w", trimmed, err)
	}
	custom, err := ParseVenueAliases(raw)
	if err != nil {
		return nil, fmt.Errorf("parse venue aliases %s: %w", trimmed, err)
	}
	for alias, canonical := range custom {
		aliases[alias] = canonical
	}
	return aliases, nil
}

// ParseVenueAliases decodes a YAML document of the form
//
//	venues:
//	  control:
//	    - control club
//	    - club control
func ParseVenueAliases(raw []byte) (VenueAliases, error) {
	var file venueAliasFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(file.Venues))
	for name := range file.Venues {
		names = append(names, name)
	}
	sort.Strings(names)

	aliases := make(VenueAliases)
	for _, name := range names {
		canonical := StripPunctuation(Text(name))
		if canonical == "" {
			return nil, fmt.Errorf("venue name must not be empty")
		}
		aliases[canonical] = canonical
		for _, alias := range file.Venues[name] {
			key := StripPunctuation(Text(alias))
			if key == "" {
				continue
			}
			if existing, ok := aliases[key]; ok && existing != canonical {
				return nil, fmt.Errorf("alias %q maps to both %q and %q", alias, existing, canonical)
			}
			aliases[key] = canonical
		}
	}
	return aliases, nil
}
