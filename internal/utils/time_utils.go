package utils

import (
	"time"
)

// DayKeyLayout is the format of daily counter keys.
const DayKeyLayout = "2006-01-02"

// LoadLocation resolves a configured timezone name.
// Falls back to UTC if timezone data is missing; in docker, ensure tzdata is installed.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DayKey returns the calendar day of t in loc, used to key the daily signal cap.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DayKeyLayout)
}
