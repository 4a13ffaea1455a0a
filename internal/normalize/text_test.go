package normalize

import "testing"

func TestText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "   ", want: ""},
		{in: "  Subcarpați \t LIVE  ", want: "subcarpati live"},
		{in: "Ţara lui Ştefan", want: "tara lui stefan"},
		{in: "Café\u0000 Noir", want: "cafe noir"},
		{in: "line\nbreak", want: "line break"},
		{in: "Mø", want: "mo"},
		{in: "Łódź Đorđe", want: "lodz dorde"},
		{in: "Straße ÆON Œuvre", want: "strasse aeon oeuvre"},
	}
	for _, tc := range cases {
		if got := Text(tc.in); got != tc.want {
			t.Fatalf("Text(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTextIdempotent(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"Énorme  Fête", "ŞTEFAN banica jr.", "control-club", "Ärzte", "Sigur Rós Ølstykke", "Weiß"} {
		once := Text(in)
		if twice := Text(once); twice != once {
			t.Fatalf("Text not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestStripPunctuation(t *testing.T) {
	t.Parallel()

	if got := StripPunctuation("control, club!  (bucuresti)"); got != "control club bucuresti" {
		t.Fatalf("unexpected stripped value: %q", got)
	}
}
