package weather

import (
	"encoding/json"
	"math"
)

const (
	FlagTempOutOfRange    = "temp_out_of_range"
	FlagWindSpeedUnlikely = "wind_speed_unlikely"
	FlagPrecipNegative    = "precip_negative"
	FlagChanceInvalid     = "chance_invalid"
	FlagAirQualityInvalid = "air_quality_invalid"
	FlagNotFinite         = "not_finite"
)

// Validate returns quality flags for implausible hourly values. Hours with
// any flag are left out of alert evaluation.
func Validate(h Hour) []string {
	var flags []string

	for _, v := range []float64{h.TempF, h.WindMph, h.GustMph, h.PrecipIn, h.SnowIn, h.ChanceOfRain, h.ChanceOfSnow, h.AirQuality} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return []string{FlagNotFinite}
		}
	}

	if h.TempF < -80 || h.TempF > 140 {
		flags = append(flags, FlagTempOutOfRange)
	}
	if h.WindMph < 0 || h.WindMph > 250 || h.GustMph < 0 || h.GustMph > 250 {
		flags = append(flags, FlagWindSpeedUnlikely)
	}
	if h.PrecipIn < 0 || h.SnowIn < 0 {
		flags = append(flags, FlagPrecipNegative)
	}
	if h.ChanceOfRain < 0 || h.ChanceOfRain > 100 || h.ChanceOfSnow < 0 || h.ChanceOfSnow > 100 {
		flags = append(flags, FlagChanceInvalid)
	}
	if h.AirQuality < 0 || h.AirQuality > 6 {
		flags = append(flags, FlagAirQualityInvalid)
	}

	return flags
}

// QualityFlagsToJSON renders flags for logging; empty input yields "".
func QualityFlagsToJSON(flags []string) string {
	if len(flags) == 0 {
		return ""
	}
	b, _ := json.Marshal(flags)
	return string(b)
}
