package settings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid wraps every validation failure so HTTP handlers can map it to
// a 400.
var ErrInvalid = errors.New("invalid weather settings")

var validate = validator.New()

// MaxForecastDays is the longest forecast the provider returns.
const MaxForecastDays = 14

// ForecastDaysFor is how many provider days cover a look-ahead of
// hoursAhead from any time of day. Forecasts start at local midnight, so a
// late check needs the following day as well.
func ForecastDaysFor(hoursAhead int) int {
	if hoursAhead <= 0 {
		hoursAhead = Defaults().ForecastTimeframe.HoursAhead
	}
	days := (hoursAhead + 24 + 23) / 24
	return min(max(days, 1), MaxForecastDays)
}

// Normalize lowercases check days and channels so "Monday" and "monday"
// are stored alike.
func (s *WeatherSettings) Normalize() {
	for i, d := range s.ForecastTimeframe.CheckDays {
		s.ForecastTimeframe.CheckDays[i] = strings.ToLower(strings.TrimSpace(d))
	}
	for i, c := range s.Notifications.Channels {
		s.Notifications.Channels[i] = strings.ToLower(strings.TrimSpace(c))
	}
}

// Validate checks field ranges and the cross-field rules the struct tags
// cannot express. Day and channel names are compared case-insensitively.
func Validate(s WeatherSettings) error {
	s.ForecastTimeframe.CheckDays = append([]string(nil), s.ForecastTimeframe.CheckDays...)
	s.Notifications.Channels = append([]string(nil), s.Notifications.Channels...)
	s.Normalize()
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if _, err := ParseClock(s.CheckTime); err != nil {
		return fmt.Errorf("%w: checkTime: %v", ErrInvalid, err)
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalid, s.Timezone, err)
	}

	wh := s.ForecastTimeframe.WorkingHours
	if wh.Enabled {
		start, err := ParseClock(wh.Start)
		if err != nil {
			return fmt.Errorf("%w: workingHours.start: %v", ErrInvalid, err)
		}
		end, err := ParseClock(wh.End)
		if err != nil {
			return fmt.Errorf("%w: workingHours.end: %v", ErrInvalid, err)
		}
		if start >= end {
			return fmt.Errorf("%w: workingHours.start %s must be before end %s", ErrInvalid, wh.Start, wh.End)
		}
	}

	temp := s.AlertThresholds.Temperature
	if temp.Enabled && temp.MinThreshold >= temp.MaxThreshold {
		return fmt.Errorf("%w: temperature minThreshold %.1f must be below maxThreshold %.1f",
			ErrInvalid, temp.MinThreshold, temp.MaxThreshold)
	}

	return nil
}
