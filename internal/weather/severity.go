package weather

import "strings"

type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityMinor
	SeverityModerate
	SeveritySevere
	SeverityExtreme
)

func (s Severity) String() string {
	switch s {
	case SeverityMinor:
		return "Minor"
	case SeverityModerate:
		return "Moderate"
	case SeveritySevere:
		return "Severe"
	case SeverityExtreme:
		return "Extreme"
	default:
		return "Unknown"
	}
}

// ParseSeverity maps the provider severity string. When the field is
// empty or unrecognised the event name is used as a hint.
func ParseSeverity(severity, event string) Severity {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "extreme":
		return SeverityExtreme
	case "severe":
		return SeveritySevere
	case "moderate":
		return SeverityModerate
	case "minor":
		return SeverityMinor
	}

	check := strings.ToLower(event)
	switch {
	case strings.Contains(check, "emergency"):
		return SeverityExtreme
	case strings.Contains(check, "warning"):
		return SeveritySevere
	case strings.Contains(check, "watch"):
		return SeverityModerate
	case strings.Contains(check, "advisory"), strings.Contains(check, "statement"):
		return SeverityMinor
	default:
		return SeverityUnknown
	}
}
