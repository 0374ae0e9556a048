package weather

import "strings"

type PrecipType string

const (
	PrecipNone  PrecipType = "none"
	PrecipRain  PrecipType = "rain"
	PrecipSnow  PrecipType = "snow"
	PrecipSleet PrecipType = "sleet"
	PrecipHail  PrecipType = "hail"
)

// Provider condition codes, grouped by the hazard they imply.
var (
	sleetCodes = codeSet(1069, 1072, 1168, 1171, 1198, 1201, 1204, 1207, 1249, 1252)
	hailCodes  = codeSet(1237, 1261, 1264)
	snowCodes  = codeSet(1066, 1114, 1117, 1210, 1213, 1216, 1219, 1222, 1225, 1255, 1258, 1279, 1282)
	rainCodes  = codeSet(1063, 1150, 1153, 1180, 1183, 1186, 1189, 1192, 1195, 1240, 1243, 1246, 1273, 1276)
)

func codeSet(codes ...int) map[int]struct{} {
	m := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		m[c] = struct{}{}
	}
	return m
}

// ClassifyPrecip determines the precipitation type from the condition code,
// falling back to the condition text for codes it does not know.
func ClassifyPrecip(code int, text string) PrecipType {
	switch {
	case has(sleetCodes, code):
		return PrecipSleet
	case has(hailCodes, code):
		return PrecipHail
	case has(snowCodes, code):
		return PrecipSnow
	case has(rainCodes, code):
		return PrecipRain
	}

	lower := strings.ToLower(text)

	// Freezing rain and ice pellets come before plain rain and snow since
	// the text usually mentions both.
	if strings.Contains(lower, "sleet") || strings.Contains(lower, "freezing") {
		return PrecipSleet
	}
	if strings.Contains(lower, "hail") || strings.Contains(lower, "ice pellets") {
		return PrecipHail
	}
	if strings.Contains(lower, "snow") || strings.Contains(lower, "blizzard") {
		return PrecipSnow
	}
	if strings.Contains(lower, "rain") || strings.Contains(lower, "drizzle") ||
		strings.Contains(lower, "shower") || strings.Contains(lower, "thunder") {
		return PrecipRain
	}
	return PrecipNone
}

func has(set map[int]struct{}, code int) bool {
	_, ok := set[code]
	return ok
}
