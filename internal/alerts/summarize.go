package alerts

import (
	"time"

	"go.uber.org/zap"

	"github.com/lox/siteweather/internal/settings"
	"github.com/lox/siteweather/internal/weather"
)

// Summarize collapses the forecast hours in (now, now+hoursAhead] into a
// Reading. Hours outside the check days or the working-hours window (both
// judged in loc) are skipped, as are hours that fail validation. Provider
// alerts count when they overlap the whole look-ahead window.
func Summarize(f *weather.Forecast, tf settings.ForecastTimeframe, now time.Time, loc *time.Location) Reading {
	var r Reading
	if f == nil {
		return r
	}
	if loc == nil {
		loc = time.UTC
	}

	hoursAhead := tf.HoursAhead
	if hoursAhead <= 0 {
		hoursAhead = settings.Defaults().ForecastTimeframe.HoursAhead
	}
	end := now.Add(time.Duration(hoursAhead) * time.Hour)

	for _, h := range f.Hours {
		if !h.Time.After(now) || h.Time.After(end) {
			continue
		}
		local := h.Time.In(loc)
		if !tf.ChecksOn(local.Weekday()) || !tf.InWorkingHours(local) {
			continue
		}
		if flags := weather.Validate(h); len(flags) > 0 {
			zap.S().Debugw("alerts: hour dropped", "time", h.Time, "flags", weather.QualityFlagsToJSON(flags))
			continue
		}

		r.PrecipProbability = max(r.PrecipProbability, h.ChanceOfRain)
		r.PrecipAmountIn += h.RainIn()
		r.SnowAmountIn += h.SnowIn
		switch h.Precip {
		case weather.PrecipSleet:
			r.SleetProbability = max(r.SleetProbability, h.PrecipChance())
		case weather.PrecipHail:
			r.HailProbability = max(r.HailProbability, h.PrecipChance())
		}
		r.WindSpeedMph = max(r.WindSpeedMph, h.WindMph)
		r.WindGustMph = max(r.WindGustMph, h.GustMph)
		r.AirQualityIndex = max(r.AirQualityIndex, h.AirQuality)

		if !r.HasTemp {
			r.TempMinF, r.TempMaxF, r.HasTemp = h.TempF, h.TempF, true
		} else {
			r.TempMinF = min(r.TempMinF, h.TempF)
			r.TempMaxF = max(r.TempMaxF, h.TempF)
		}
		r.Samples++
	}

	seen := make(map[string]bool)
	for _, a := range f.Alerts {
		if a.Event == "" || seen[a.Event] || !a.Overlaps(now, end) {
			continue
		}
		seen[a.Event] = true
		r.Alerts = append(r.Alerts, a.Event)
	}

	return r
}
