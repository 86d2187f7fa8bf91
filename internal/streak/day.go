package streak

import "time"

// Day is a civil date counted in days since 1970-01-01.
type Day int64

const secondsPerDay = 24 * 60 * 60

// DayOf returns the civil date of t in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return Day(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay)
}

func (d Day) Time() time.Time {
	return time.Unix(int64(d)*secondsPerDay, 0).UTC()
}

func (d Day) String() string {
	return d.Time().Format(time.DateOnly)
}
