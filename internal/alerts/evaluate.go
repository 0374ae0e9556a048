// Package alerts decides which weather hazards cross a user's thresholds
// and who should hear about it.
package alerts

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/lox/siteweather/internal/settings"
)

type Hazard string

const (
	HazardRain          Hazard = "rain"
	HazardSnow          Hazard = "snow"
	HazardSleet         Hazard = "sleet"
	HazardHail          Hazard = "hail"
	HazardWind          Hazard = "wind"
	HazardTemperature   Hazard = "temperature"
	HazardSpecialAlerts Hazard = "specialAlerts"
	HazardAirQuality    Hazard = "airQuality"
)

var ErrMalformedReading = errors.New("malformed weather reading")

// Reading is a forecast window collapsed to the values thresholds are
// compared against. Probabilities are percentages, amounts inches.
type Reading struct {
	PrecipProbability float64
	PrecipAmountIn    float64
	SnowAmountIn      float64
	SleetProbability  float64
	HailProbability   float64
	WindSpeedMph      float64
	WindGustMph       float64
	TempMinF          float64
	TempMaxF          float64
	HasTemp           bool
	AirQualityIndex   float64
	Alerts            []string
	Samples           int
}

// Trigger is one crossed threshold.
type Trigger struct {
	Hazard    Hazard  `json:"hazard"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Message   string  `json:"message"`
}

// Evaluate returns the hazards in r that cross the enabled thresholds in t,
// in a fixed hazard order. A disabled hazard never triggers, and a numeric
// threshold of zero or less is treated as unset.
func Evaluate(r Reading, t settings.AlertThresholds) ([]Trigger, error) {
	if err := check(r); err != nil {
		return nil, err
	}

	var out []Trigger

	if t.Rain.Enabled {
		switch {
		case t.Rain.ProbabilityThreshold > 0 && r.PrecipProbability >= t.Rain.ProbabilityThreshold:
			out = append(out, Trigger{
				Hazard: HazardRain, Value: r.PrecipProbability, Threshold: t.Rain.ProbabilityThreshold,
				Message: fmt.Sprintf("%.0f%% chance of rain (threshold %.0f%%)", r.PrecipProbability, t.Rain.ProbabilityThreshold),
			})
		case t.Rain.AmountThreshold > 0 && r.PrecipAmountIn >= t.Rain.AmountThreshold:
			out = append(out, Trigger{
				Hazard: HazardRain, Value: r.PrecipAmountIn, Threshold: t.Rain.AmountThreshold,
				Message: fmt.Sprintf("%.2f in of rain expected (threshold %.2f in)", r.PrecipAmountIn, t.Rain.AmountThreshold),
			})
		}
	}

	if t.Snow.Enabled && t.Snow.AmountThreshold > 0 && r.SnowAmountIn >= t.Snow.AmountThreshold {
		out = append(out, Trigger{
			Hazard: HazardSnow, Value: r.SnowAmountIn, Threshold: t.Snow.AmountThreshold,
			Message: fmt.Sprintf("%.1f in of snow expected (threshold %.1f in)", r.SnowAmountIn, t.Snow.AmountThreshold),
		})
	}

	if t.Sleet.Enabled && t.Sleet.ProbabilityThreshold > 0 && r.SleetProbability >= t.Sleet.ProbabilityThreshold {
		out = append(out, Trigger{
			Hazard: HazardSleet, Value: r.SleetProbability, Threshold: t.Sleet.ProbabilityThreshold,
			Message: fmt.Sprintf("%.0f%% chance of sleet (threshold %.0f%%)", r.SleetProbability, t.Sleet.ProbabilityThreshold),
		})
	}

	if t.Hail.Enabled && t.Hail.ProbabilityThreshold > 0 && r.HailProbability >= t.Hail.ProbabilityThreshold {
		out = append(out, Trigger{
			Hazard: HazardHail, Value: r.HailProbability, Threshold: t.Hail.ProbabilityThreshold,
			Message: fmt.Sprintf("%.0f%% chance of hail (threshold %.0f%%)", r.HailProbability, t.Hail.ProbabilityThreshold),
		})
	}

	if t.Wind.Enabled {
		switch {
		case t.Wind.SpeedThreshold > 0 && r.WindSpeedMph >= t.Wind.SpeedThreshold:
			out = append(out, Trigger{
				Hazard: HazardWind, Value: r.WindSpeedMph, Threshold: t.Wind.SpeedThreshold,
				Message: fmt.Sprintf("sustained wind %.0f mph (threshold %.0f mph)", r.WindSpeedMph, t.Wind.SpeedThreshold),
			})
		case t.Wind.GustThreshold > 0 && r.WindGustMph >= t.Wind.GustThreshold:
			out = append(out, Trigger{
				Hazard: HazardWind, Value: r.WindGustMph, Threshold: t.Wind.GustThreshold,
				Message: fmt.Sprintf("wind gusts to %.0f mph (threshold %.0f mph)", r.WindGustMph, t.Wind.GustThreshold),
			})
		}
	}

	if t.Temperature.Enabled && r.HasTemp {
		switch {
		case r.TempMinF < t.Temperature.MinThreshold:
			out = append(out, Trigger{
				Hazard: HazardTemperature, Value: r.TempMinF, Threshold: t.Temperature.MinThreshold,
				Message: fmt.Sprintf("low of %.0f°F is below %.0f°F", r.TempMinF, t.Temperature.MinThreshold),
			})
		case r.TempMaxF > t.Temperature.MaxThreshold:
			out = append(out, Trigger{
				Hazard: HazardTemperature, Value: r.TempMaxF, Threshold: t.Temperature.MaxThreshold,
				Message: fmt.Sprintf("high of %.0f°F is above %.0f°F", r.TempMaxF, t.Temperature.MaxThreshold),
			})
		}
	}

	if t.SpecialAlerts.Enabled {
		if matched := matchAlerts(r.Alerts, t.SpecialAlerts.Types); len(matched) > 0 {
			out = append(out, Trigger{
				Hazard:  HazardSpecialAlerts,
				Value:   float64(len(matched)),
				Message: strings.Join(matched, "; "),
			})
		}
	}

	if t.AirQuality.Enabled && t.AirQuality.AQIThreshold > 0 && r.AirQualityIndex >= t.AirQuality.AQIThreshold {
		out = append(out, Trigger{
			Hazard: HazardAirQuality, Value: r.AirQualityIndex, Threshold: t.AirQuality.AQIThreshold,
			Message: fmt.Sprintf("air quality index %.0f (threshold %.0f)", r.AirQualityIndex, t.AirQuality.AQIThreshold),
		})
	}

	return out, nil
}

// Names returns the hazard names of triggers.
func Names(triggers []Trigger) []string {
	names := make([]string, 0, len(triggers))
	for _, t := range triggers {
		names = append(names, string(t.Hazard))
	}
	return names
}

func check(r Reading) error {
	fields := []struct {
		name     string
		v        float64
		signed   bool
		maxValue float64
	}{
		{"precipProbability", r.PrecipProbability, false, 100},
		{"precipAmount", r.PrecipAmountIn, false, 0},
		{"snowAmount", r.SnowAmountIn, false, 0},
		{"sleetProbability", r.SleetProbability, false, 100},
		{"hailProbability", r.HailProbability, false, 100},
		{"windSpeed", r.WindSpeedMph, false, 0},
		{"windGust", r.WindGustMph, false, 0},
		{"tempMin", r.TempMinF, true, 0},
		{"tempMax", r.TempMaxF, true, 0},
		{"airQuality", r.AirQualityIndex, false, 0},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s is not a number", ErrMalformedReading, f.name)
		}
		if !f.signed && f.v < 0 {
			return fmt.Errorf("%w: %s is negative", ErrMalformedReading, f.name)
		}
		if f.maxValue > 0 && f.v > f.maxValue {
			return fmt.Errorf("%w: %s above %.0f", ErrMalformedReading, f.name, f.maxValue)
		}
	}
	if r.HasTemp && r.TempMinF > r.TempMaxF {
		return fmt.Errorf("%w: tempMin above tempMax", ErrMalformedReading)
	}
	return nil
}

// matchAlerts returns the alert events selected by types. An empty types
// list selects every alert; otherwise an event matches when it contains
// any of the types, case-insensitively.
func matchAlerts(events, types []string) []string {
	var matched []string
	for _, ev := range events {
		if ev == "" {
			continue
		}
		if len(types) == 0 {
			matched = append(matched, ev)
			continue
		}
		lower := strings.ToLower(ev)
		for _, typ := range types {
			if typ != "" && strings.Contains(lower, strings.ToLower(typ)) {
				matched = append(matched, ev)
				break
			}
		}
	}
	return matched
}
