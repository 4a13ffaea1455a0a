package similarity

import (
	"math"
	"testing"
)

func TestRatioIdentity(t *testing.T) {
	t.Parallel()

	for _, value := range []string{"", "a", "subcarpati", "ţara lui ştefan"} {
		if got := Ratio(value, value); got != 1 {
			t.Fatalf("Ratio(%q, %q) = %f, want 1", value, value, got)
		}
	}
}

func TestRatioSymmetric(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"subcarpati", "subcarpaţi live"},
		{"control", "control club"},
		{"", "anything"},
		{"the motans", "motans"},
	}
	for _, pair := range pairs {
		left := Ratio(pair[0], pair[1])
		right := Ratio(pair[1], pair[0])
		if math.Abs(left-right) > 1e-12 {
			t.Fatalf("Ratio not symmetric for %q/%q: %f vs %f", pair[0], pair[1], left, right)
		}
	}
}

func TestRatioBounds(t *testing.T) {
	t.Parallel()

	if got := Ratio("", "abc"); got != 0 {
		t.Fatalf("Ratio against empty = %f, want 0", got)
	}
	if got := Ratio("abc", "xyz"); got != 0 {
		t.Fatalf("Ratio of disjoint strings = %f, want 0", got)
	}
	got := Ratio("kitten", "sitting")
	want := 1 - 3.0/7.0
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("Ratio(kitten, sitting) = %f, want %f", got, want)
	}
}

func TestRatioCountsRunes(t *testing.T) {
	t.Parallel()

	got := Ratio("ştefan", "stefan")
	want := 1 - 1.0/6.0
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("Ratio over multibyte text = %f, want %f", got, want)
	}
}
