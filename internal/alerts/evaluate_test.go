package alerts

import (
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/lox/siteweather/internal/settings"
)

func hazards(triggers []Trigger) []string {
	names := Names(triggers)
	sort.Strings(names)
	return names
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEvaluate(t *testing.T) {
	th := settings.Defaults().AlertThresholds
	th.AirQuality.Enabled = true

	calm := Reading{
		PrecipProbability: 10,
		WindSpeedMph:      5,
		WindGustMph:       8,
		TempMinF:          55,
		TempMaxF:          72,
		HasTemp:           true,
		AirQualityIndex:   1,
	}

	tests := []struct {
		name   string
		modify func(*Reading)
		thresh func(*settings.AlertThresholds)
		want   []string
	}{
		{"calm day", nil, nil, nil},
		{"rain by probability at threshold", func(r *Reading) { r.PrecipProbability = 50 }, nil, []string{"rain"}},
		{"rain just below probability", func(r *Reading) { r.PrecipProbability = 49.9 }, nil, nil},
		{"rain by amount only", func(r *Reading) { r.PrecipAmountIn = 0.3 }, nil, []string{"rain"}},
		{"rain disabled", func(r *Reading) { r.PrecipProbability = 90 }, func(a *settings.AlertThresholds) { a.Rain.Enabled = false }, nil},
		{"snow", func(r *Reading) { r.SnowAmountIn = 1.2 }, nil, []string{"snow"}},
		{"sleet", func(r *Reading) { r.SleetProbability = 30 }, nil, []string{"sleet"}},
		{"hail", func(r *Reading) { r.HailProbability = 25 }, nil, []string{"hail"}},
		{"wind by gust", func(r *Reading) { r.WindGustMph = 40 }, nil, []string{"wind"}},
		{"wind by speed", func(r *Reading) { r.WindSpeedMph = 25 }, nil, []string{"wind"}},
		{"freezing", func(r *Reading) { r.TempMinF = 28 }, nil, []string{"temperature"}},
		{"at freezing is inside range", func(r *Reading) { r.TempMinF = 32 }, nil, nil},
		{"heat", func(r *Reading) { r.TempMaxF = 101 }, nil, []string{"temperature"}},
		{"no temperature samples", func(r *Reading) { r.TempMinF, r.TempMaxF, r.HasTemp = 0, 0, false }, nil, nil},
		{"any special alert", func(r *Reading) { r.Alerts = []string{"Flood Watch"} }, nil, []string{"specialAlerts"}},
		{"special alert type filter miss", func(r *Reading) { r.Alerts = []string{"Flood Watch"} },
			func(a *settings.AlertThresholds) { a.SpecialAlerts.Types = []string{"tornado"} }, nil},
		{"special alert type filter hit", func(r *Reading) { r.Alerts = []string{"Tornado Warning"} },
			func(a *settings.AlertThresholds) { a.SpecialAlerts.Types = []string{"tornado"} }, []string{"specialAlerts"}},
		{"air quality", func(r *Reading) { r.AirQualityIndex = 4 }, nil, []string{"airQuality"}},
		{"zero threshold is unset", func(r *Reading) { r.SnowAmountIn = 0 },
			func(a *settings.AlertThresholds) { a.Snow.AmountThreshold = 0 }, nil},
		{"storm", func(r *Reading) {
			r.PrecipProbability = 90
			r.PrecipAmountIn = 1.1
			r.WindGustMph = 55
			r.Alerts = []string{"Severe Thunderstorm Warning"}
		}, nil, []string{"rain", "specialAlerts", "wind"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := calm
			if tt.modify != nil {
				tt.modify(&r)
			}
			a := th
			if tt.thresh != nil {
				tt.thresh(&a)
			}
			got, err := Evaluate(r, a)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if !equal(hazards(got), tt.want) {
				t.Errorf("hazards = %v, want %v", hazards(got), tt.want)
			}
		})
	}
}

func TestEvaluate_AllDisabled(t *testing.T) {
	var th settings.AlertThresholds
	r := Reading{PrecipProbability: 100, PrecipAmountIn: 5, SnowAmountIn: 10, WindGustMph: 90, TempMinF: -20, TempMaxF: 120, HasTemp: true, Alerts: []string{"Blizzard Warning"}}
	got, err := Evaluate(r, th)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want no triggers", Names(got))
	}
}

func TestEvaluate_Malformed(t *testing.T) {
	th := settings.Defaults().AlertThresholds
	tests := []struct {
		name string
		r    Reading
	}{
		{"NaN probability", Reading{PrecipProbability: math.NaN()}},
		{"infinite wind", Reading{WindSpeedMph: math.Inf(1)}},
		{"negative amount", Reading{PrecipAmountIn: -0.5}},
		{"probability over 100", Reading{SleetProbability: 140}},
		{"inverted temperature", Reading{TempMinF: 80, TempMaxF: 60, HasTemp: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.r, th)
			if !errors.Is(err, ErrMalformedReading) {
				t.Fatalf("err = %v, want ErrMalformedReading", err)
			}
		})
	}
}

func TestEvaluate_NegativeTemperatureIsValid(t *testing.T) {
	th := settings.Defaults().AlertThresholds
	got, err := Evaluate(Reading{TempMinF: -12, TempMaxF: 5, HasTemp: true}, th)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !equal(hazards(got), []string{"temperature"}) {
		t.Errorf("hazards = %v", hazards(got))
	}
	if got[0].Value != -12 || got[0].Threshold != 32 {
		t.Errorf("trigger = %+v", got[0])
	}
}
