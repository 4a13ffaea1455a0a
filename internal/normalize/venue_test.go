package normalize

import (
	"os"
	"path/filepath"
	"testing"
)

func TestVenueResolvesDefaultAliases(t *testing.T) {
	t.Parallel()

	aliases := DefaultVenueAliases()
	for _, name := range []string{"Control Club", "Club Control", "CONTROL BUCUREȘTI", "control"} {
		if got := Venue(name, aliases); got != "control" {
			t.Fatalf("Venue(%q) = %q, want control", name, got)
		}
	}
}

func TestVenueWithoutAlias(t *testing.T) {
	t.Parallel()

	if got := Venue("  Quantic  Club! ", nil); got != "quantic club" {
		t.Fatalf("unexpected venue key: %q", got)
	}
}

func TestLoadVenueAliasesLayersOverDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "aliases.yaml")
	mustWriteFile(t, path, "venues:\n  quantic:\n    - quantic club\n    - Quantic Bucuresti\n")

	aliases, err := LoadVenueAliases(path)
	if err != nil {
		t.Fatalf("LoadVenueAliases failed: %v", err)
	}
	if got := Venue("Quantic Club", aliases); got != "quantic" {
		t.Fatalf("custom alias not applied: %q", got)
	}
	if got := Venue("Club Control", aliases); got != "control" {
		t.Fatalf("default alias lost: %q", got)
	}
}

func TestParseVenueAliasesRejectsConflicts(t *testing.T) {
	t.Parallel()

	raw := []byte("venues:\n  a:\n    - shared\n  b:\n    - shared\n")
	if _, err := ParseVenueAliases(raw); err == nil {
		t.Fatalf("expected conflict error")
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
