package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lox/siteweather/internal/settings"
)

// GetWeatherSettings returns the saved settings for a user, or ErrNotFound
// when the user never saved any.
func (s *Store) GetWeatherSettings(ctx context.Context, userID string) (settings.WeatherSettings, error) {
	var raw string
	if err := s.get(ctx, &raw, `SELECT settings FROM weather_settings WHERE user_id = ?`, userID); err != nil {
		return settings.WeatherSettings{}, err
	}
	var ws settings.WeatherSettings
	if err := json.Unmarshal([]byte(raw), &ws); err != nil {
		return settings.WeatherSettings{}, fmt.Errorf("decode weather settings for %s: %w", userID, err)
	}
	return ws, nil
}

func (s *Store) SaveWeatherSettings(ctx context.Context, userID string, ws settings.WeatherSettings) error {
	b, err := json.Marshal(ws)
	if err != nil {
		return fmt.Errorf("encode weather settings: %w", err)
	}
	_, err = s.exec(ctx, `
		INSERT INTO weather_settings (user_id, settings, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET settings = excluded.settings, updated_at = excluded.updated_at
	`, userID, string(b), time.Now().UTC())
	return err
}

// UserSettings pairs a user with their saved settings.
type UserSettings struct {
	UserID   string
	Settings settings.WeatherSettings
}

// ListUserSettings returns every saved settings row. Rows that fail to
// decode are reported in the error after the rest are returned.
func (s *Store) ListUserSettings(ctx context.Context) ([]UserSettings, error) {
	var rows []struct {
		UserID   string `db:"user_id"`
		Settings string `db:"settings"`
	}
	if err := s.sel(ctx, &rows, `SELECT user_id, settings FROM weather_settings ORDER BY user_id`); err != nil {
		return nil, err
	}

	out := make([]UserSettings, 0, len(rows))
	var firstErr error
	for _, r := range rows {
		var ws settings.WeatherSettings
		if err := json.Unmarshal([]byte(r.Settings), &ws); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("decode weather settings for %s: %w", r.UserID, err)
			}
			continue
		}
		out = append(out, UserSettings{UserID: r.UserID, Settings: ws})
	}
	return out, firstErr
}

type jobsiteSettingsRow struct {
	JobsiteID              string         `db:"jobsite_id"`
	UserID                 string         `db:"user_id"`
	UseGlobalDefaults      bool           `db:"use_global_defaults"`
	OverrideGlobalSettings bool           `db:"override_global_settings"`
	Settings               sql.NullString `db:"settings"`
}

// GetJobsiteWeatherSettings returns the override record for a jobsite, or
// ErrNotFound when none was saved.
func (s *Store) GetJobsiteWeatherSettings(ctx context.Context, jobsiteID string) (*settings.JobsiteWeatherSettings, error) {
	var row jobsiteSettingsRow
	if err := s.get(ctx, &row, `
		SELECT jobsite_id, user_id, use_global_defaults, override_global_settings, settings
		FROM jobsite_weather_settings WHERE jobsite_id = ?
	`, jobsiteID); err != nil {
		return nil, err
	}

	js := &settings.JobsiteWeatherSettings{
		JobsiteID:              row.JobsiteID,
		UseGlobalDefaults:      row.UseGlobalDefaults,
		OverrideGlobalSettings: row.OverrideGlobalSettings,
	}
	if row.Settings.Valid && row.Settings.String != "" {
		var ws settings.WeatherSettings
		if err := json.Unmarshal([]byte(row.Settings.String), &ws); err != nil {
			return nil, fmt.Errorf("decode jobsite settings for %s: %w", jobsiteID, err)
		}
		js.Settings = &ws
	}
	return js, nil
}

func (s *Store) SaveJobsiteWeatherSettings(ctx context.Context, userID string, js settings.JobsiteWeatherSettings) error {
	var raw sql.NullString
	if js.Settings != nil {
		b, err := json.Marshal(js.Settings)
		if err != nil {
			return fmt.Errorf("encode jobsite settings: %w", err)
		}
		raw = sql.NullString{String: string(b), Valid: true}
	}
	_, err := s.exec(ctx, `
		INSERT INTO jobsite_weather_settings (jobsite_id, user_id, use_global_defaults, override_global_settings, settings, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(jobsite_id) DO UPDATE SET
			use_global_defaults = excluded.use_global_defaults,
			override_global_settings = excluded.override_global_settings,
			settings = excluded.settings,
			updated_at = excluded.updated_at
	`, js.JobsiteID, userID, js.UseGlobalDefaults, js.OverrideGlobalSettings, raw, time.Now().UTC())
	return err
}

// MaxHoursAhead returns the longest look-ahead across saved user settings
// and jobsite overrides, or 0 when nothing is saved.
func (s *Store) MaxHoursAhead(ctx context.Context) (int, error) {
	var raws []string
	if err := s.sel(ctx, &raws, `
		SELECT settings FROM weather_settings
		UNION ALL
		SELECT settings FROM jobsite_weather_settings WHERE settings IS NOT NULL AND settings <> ''
	`); err != nil {
		return 0, fmt.Errorf("list settings: %w", err)
	}

	longest := 0
	for _, raw := range raws {
		var ws settings.WeatherSettings
		if err := json.Unmarshal([]byte(raw), &ws); err != nil {
			continue
		}
		longest = max(longest, ws.ForecastTimeframe.HoursAhead)
	}
	return longest, nil
}
