package settings

// Resolve returns the settings that apply to a jobsite. The override only
// takes effect when the jobsite opted out of global defaults and actually
// carries settings; it then replaces the global record wholesale, except
// that an empty timezone or check time falls back to the owner's.
func Resolve(global WeatherSettings, js *JobsiteWeatherSettings) WeatherSettings {
	if js == nil || js.UseGlobalDefaults || !js.OverrideGlobalSettings || js.Settings == nil {
		return global
	}

	eff := *js.Settings
	if eff.Timezone == "" {
		eff.Timezone = global.Timezone
	}
	if eff.CheckTime == "" {
		eff.CheckTime = global.CheckTime
	}
	if eff.ForecastTimeframe.HoursAhead == 0 {
		eff.ForecastTimeframe.HoursAhead = global.ForecastTimeframe.HoursAhead
	}
	return eff
}
