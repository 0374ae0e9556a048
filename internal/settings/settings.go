// Package settings holds the per-user weather notification configuration
// and the rules for combining it with per-jobsite overrides.
package settings

// WeatherSettings is the owner-level alert configuration. JSON names match
// what the dashboard stores.
type WeatherSettings struct {
	Enabled           bool              `json:"enabled"`
	CheckTime         string            `json:"checkTime" validate:"required"`
	Timezone          string            `json:"timezone" validate:"required"`
	ForecastTimeframe ForecastTimeframe `json:"forecastTimeframe"`
	AlertThresholds   AlertThresholds   `json:"alertThresholds"`
	Notifications     Notifications     `json:"notifications"`
}

type ForecastTimeframe struct {
	HoursAhead   int          `json:"hoursAhead" validate:"min=1,max=168"`
	WorkingHours WorkingHours `json:"workingHours"`
	CheckDays    []string     `json:"checkDays" validate:"dive,oneof=sunday monday tuesday wednesday thursday friday saturday"`
}

type WorkingHours struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

type AlertThresholds struct {
	Rain          RainThreshold          `json:"rain"`
	Snow          SnowThreshold          `json:"snow"`
	Sleet         ChanceThreshold        `json:"sleet"`
	Hail          ChanceThreshold        `json:"hail"`
	Wind          WindThreshold          `json:"wind"`
	Temperature   TemperatureThreshold   `json:"temperature"`
	SpecialAlerts SpecialAlertsThreshold `json:"specialAlerts"`
	AirQuality    AirQualityThreshold    `json:"airQuality"`
}

type RainThreshold struct {
	Enabled              bool    `json:"enabled"`
	ProbabilityThreshold float64 `json:"probabilityThreshold" validate:"min=0,max=100"` // %
	AmountThreshold      float64 `json:"amountThreshold" validate:"min=0"`              // inches
}

type SnowThreshold struct {
	Enabled         bool    `json:"enabled"`
	AmountThreshold float64 `json:"amountThreshold" validate:"min=0"` // inches
}

// ChanceThreshold covers hazards the provider only reports as a chance of
// occurrence (sleet, hail).
type ChanceThreshold struct {
	Enabled              bool    `json:"enabled"`
	ProbabilityThreshold float64 `json:"probabilityThreshold" validate:"min=0,max=100"`
}

type WindThreshold struct {
	Enabled        bool    `json:"enabled"`
	SpeedThreshold float64 `json:"speedThreshold" validate:"min=0"` // mph
	GustThreshold  float64 `json:"gustThreshold" validate:"min=0"`  // mph
}

type TemperatureThreshold struct {
	Enabled      bool    `json:"enabled"`
	MinThreshold float64 `json:"minThreshold"` // °F
	MaxThreshold float64 `json:"maxThreshold"` // °F
}

// SpecialAlertsThreshold matches provider-issued alerts (tornado warning,
// flood watch, ...). An empty Types list matches any alert.
type SpecialAlertsThreshold struct {
	Enabled bool     `json:"enabled"`
	Types   []string `json:"types"`
}

type AirQualityThreshold struct {
	Enabled      bool    `json:"enabled"`
	AQIThreshold float64 `json:"aqiThreshold" validate:"min=0,max=6"` // US EPA index
}

type Notifications struct {
	NotifyClient  bool     `json:"notifyClient"`
	NotifyWorkers bool     `json:"notifyWorkers"`
	NotifyOwner   bool     `json:"notifyOwner"`
	Channels      []string `json:"channels" validate:"dive,oneof=email"`
	CooldownHours int      `json:"cooldownHours" validate:"min=0,max=168"`
}

// JobsiteWeatherSettings is the per-jobsite override record. The two flags
// are meant to be mutually exclusive but only the dashboard enforces that;
// Resolve gives UseGlobalDefaults precedence.
type JobsiteWeatherSettings struct {
	JobsiteID              string           `json:"jobsiteId"`
	UseGlobalDefaults      bool             `json:"useGlobalDefaults"`
	OverrideGlobalSettings bool             `json:"overrideGlobalSettings"`
	Settings               *WeatherSettings `json:"settings,omitempty"`
}

const ChannelEmail = "email"

// Defaults returns the built-in settings used for users that never saved
// their own.
func Defaults() WeatherSettings {
	return WeatherSettings{
		Enabled:   true,
		CheckTime: "06:00",
		Timezone:  "America/New_York",
		ForecastTimeframe: ForecastTimeframe{
			HoursAhead: 24,
			WorkingHours: WorkingHours{
				Enabled: true,
				Start:   "07:00",
				End:     "17:00",
			},
			CheckDays: []string{"monday", "tuesday", "wednesday", "thursday", "friday"},
		},
		AlertThresholds: AlertThresholds{
			Rain:          RainThreshold{Enabled: true, ProbabilityThreshold: 50, AmountThreshold: 0.25},
			Snow:          SnowThreshold{Enabled: true, AmountThreshold: 1},
			Sleet:         ChanceThreshold{Enabled: true, ProbabilityThreshold: 30},
			Hail:          ChanceThreshold{Enabled: true, ProbabilityThreshold: 20},
			Wind:          WindThreshold{Enabled: true, SpeedThreshold: 25, GustThreshold: 35},
			Temperature:   TemperatureThreshold{Enabled: true, MinThreshold: 32, MaxThreshold: 95},
			SpecialAlerts: SpecialAlertsThreshold{Enabled: true},
			AirQuality:    AirQualityThreshold{Enabled: false, AQIThreshold: 4},
		},
		Notifications: Notifications{
			NotifyClient:  false,
			NotifyWorkers: true,
			NotifyOwner:   true,
			Channels:      []string{ChannelEmail},
			CooldownHours: 12,
		},
	}
}
