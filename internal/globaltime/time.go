package globaltime

import "time"

// Now is the process clock. Components that need a fixed time take a func() time.Time
// defaulting to UTC.
func Now() time.Time {
	return time.Now()
}

func UTC() time.Time {
	return Now().UTC()
}

// Date returns midnight of t's calendar day as a wall-clock value in UTC, matching how
// event dates are stored.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
