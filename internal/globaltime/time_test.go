package globaltime

import (
	"testing"
	"time"
)

func TestDateKeepsCalendarDay(t *testing.T) {
	t.Parallel()

	bucharest := time.FixedZone("EEST", 3*60*60)
	got := Date(time.Date(2026, 10, 15, 1, 30, 0, 0, bucharest))
	want := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Date() = %s, want %s", got, want)
	}
}
