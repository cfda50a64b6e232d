package domain

import "time"

// Seoul is the business timezone for day boundaries and report buckets.
var Seoul = time.FixedZone("KST", 9*60*60)

const DateLayout = "2006-01-02"

// SeoulDayStart returns local midnight of the day containing t.
func SeoulDayStart(t time.Time) time.Time {
	l := t.In(Seoul)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, Seoul)
}

// ParseSeoulDate parses YYYY-MM-DD as midnight in Seoul.
func ParseSeoulDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, Seoul)
}

// SeoulDayRange returns the half-open [start, end) window of the Seoul day containing t.
func SeoulDayRange(t time.Time) (time.Time, time.Time) {
	start := SeoulDayStart(t)
	return start, start.AddDate(0, 0, 1)
}
