package settings

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// LoadDefaults overlays a YAML file on top of Defaults(). Keys use the same
// camelCase names as the JSON form; anything the file omits keeps its
// built-in value. An empty path returns Defaults() unchanged.
func LoadDefaults(path string) (WeatherSettings, error) {
	s := Defaults()
	if path == "" {
		return s, nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return s, fmt.Errorf("load defaults %s: %w", path, err)
	}
	// Lists in the file replace the defaults rather than overwrite them
	// element by element.
	for key, dst := range map[string]*[]string{
		"forecastTimeframe.checkDays":         &s.ForecastTimeframe.CheckDays,
		"notifications.channels":              &s.Notifications.Channels,
		"alertThresholds.specialAlerts.types": &s.AlertThresholds.SpecialAlerts.Types,
	} {
		if k.Exists(key) {
			*dst = nil
		}
	}

	if err := k.UnmarshalWithConf("", &s, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return s, fmt.Errorf("unmarshal defaults %s: %w", path, err)
	}
	s.Normalize()
	if err := Validate(s); err != nil {
		return s, fmt.Errorf("defaults %s: %w", path, err)
	}
	return s, nil
}
