// Package weather fetches and decodes hourly forecasts from the weather
// provider (WeatherAPI.com forecast endpoint).
package weather

import "time"

// Forecast is the decoded provider response for one location.
type Forecast struct {
	Location  Location
	Current   Current
	Hours     []Hour
	Alerts    []Alert
	FetchedAt time.Time
	RawJSON   string
}

type Location struct {
	Name     string
	Region   string
	Country  string
	Lat      float64
	Lon      float64
	Timezone string
}

type Current struct {
	TempF         float64
	WindMph       float64
	GustMph       float64
	PrecipIn      float64
	ConditionCode int
	ConditionText string
	AirQuality    float64
}

// Hour is one hourly forecast point. Probabilities are percentages,
// amounts are inches.
type Hour struct {
	Time          time.Time
	TempF         float64
	WindMph       float64
	GustMph       float64
	PrecipIn      float64
	SnowIn        float64
	ChanceOfRain  float64
	ChanceOfSnow  float64
	ConditionCode int
	ConditionText string
	Precip        PrecipType
	AirQuality    float64 // US EPA index, 0 when not reported
}

// Horizon returns the latest forecast hour, or the zero time when there
// are none.
func (f *Forecast) Horizon() time.Time {
	var last time.Time
	for _, h := range f.Hours {
		if h.Time.After(last) {
			last = h.Time
		}
	}
	return last
}

// snowToLiquid is the usual depth ratio of fresh snow to its melted water.
const snowToLiquid = 10

// RainIn is the rain share of PrecipIn. The provider reports liquid
// equivalent across all precipitation types, so snow hours contribute
// nothing and mixed hours lose the melted snow.
func (h Hour) RainIn() float64 {
	switch h.Precip {
	case PrecipSnow:
		return 0
	case PrecipSleet:
		return max(h.PrecipIn-h.SnowIn/snowToLiquid, 0)
	}
	return h.PrecipIn
}

// PrecipChance is the larger of the rain and snow chances.
func (h Hour) PrecipChance() float64 {
	if h.ChanceOfSnow > h.ChanceOfRain {
		return h.ChanceOfSnow
	}
	return h.ChanceOfRain
}

// Alert is a government-issued alert passed through by the provider.
type Alert struct {
	Headline    string
	Event       string
	Severity    Severity
	Urgency     string
	Areas       string
	Description string
	Effective   time.Time
	Expires     time.Time
}

// Overlaps reports whether the alert is in force at any point of
// [start, end]. Missing bounds are treated as open.
func (a Alert) Overlaps(start, end time.Time) bool {
	if !a.Expires.IsZero() && a.Expires.Before(start) {
		return false
	}
	if !a.Effective.IsZero() && a.Effective.After(end) {
		return false
	}
	return true
}
