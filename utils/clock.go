package utils

import "time"

// Clock supplies the current instant and the quota day key. Services take a
// Clock instead of calling time.Now so day-rollover logic is testable.
type Clock interface {
	Now() time.Time
	TodayKey() string
}

const dayKeyLayout = "2006-01-02"

type realClock struct {
	loc *time.Location
}

// NewClock returns a Clock whose day boundary follows the given IANA
// timezone. An empty or unknown name falls back to UTC.
func NewClock(tzName string) Clock {
	loc, err := time.LoadLocation(tzName)
	if err != nil || tzName == "" {
		loc = time.UTC
	}
	return &realClock{loc: loc}
}

func (c *realClock) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c *realClock) TodayKey() string {
	return c.Now().Format(dayKeyLayout)
}

// DayKey formats an instant as a quota day key in the clock's convention.
func DayKey(t time.Time) string {
	return t.Format(dayKeyLayout)
}
