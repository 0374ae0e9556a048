package settings

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// ParseClock parses "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Location returns the settings timezone, falling back to UTC when the
// name is empty or unknown.
func (s WeatherSettings) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ChecksOn reports whether day is one of the configured check days. An
// empty list means every day.
func (tf ForecastTimeframe) ChecksOn(day time.Weekday) bool {
	if len(tf.CheckDays) == 0 {
		return true
	}
	name := strings.ToLower(day.String())
	for _, d := range tf.CheckDays {
		if strings.EqualFold(d, name) {
			return true
		}
	}
	return false
}

// InWorkingHours reports whether the local wall-clock time of t falls in
// [start, end). Disabled or malformed windows admit every hour.
func (tf ForecastTimeframe) InWorkingHours(t time.Time) bool {
	wh := tf.WorkingHours
	if !wh.Enabled {
		return true
	}
	start, err := ParseClock(wh.Start)
	if err != nil {
		return true
	}
	end, err := ParseClock(wh.End)
	if err != nil || end <= start {
		return true
	}
	m := t.Hour()*60 + t.Minute()
	return m >= start && m < end
}

// DueAt reports whether the daily check should run in the minute that
// contains now, in the settings timezone.
func (s WeatherSettings) DueAt(now time.Time) bool {
	if !s.Enabled {
		return false
	}
	at, err := ParseClock(s.CheckTime)
	if err != nil {
		return false
	}
	local := now.In(s.Location())
	if !s.ForecastTimeframe.ChecksOn(local.Weekday()) {
		return false
	}
	return local.Hour()*60+local.Minute() == at
}
