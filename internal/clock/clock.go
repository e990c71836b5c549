package clock

import "time"

func Now() time.Time {
	return time.Now().UTC()
}

func FormatRFC3339(now time.Time) string {
	return now.UTC().Format(time.RFC3339)
}

// RFC3339ToUnixMilli returns 0 for a value that does not parse, which sorts it first.
func RFC3339ToUnixMilli(rfc3339Date string) int64 {
	t, err := time.Parse(time.RFC3339, rfc3339Date)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (m RealClock) Now() time.Time {
	return Now()
}

// Since is time.Since on c.
func Since(c Clock, start time.Time) time.Duration {
	return c.Now().Sub(start)
}
