package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/lox/siteweather/internal/models"
)

const weatherColumns = `location_key, query, latitude, longitude, sources, payload, fetched_at`

// UpsertWeatherData replaces the stored forecast for rec.LocationKey. It
// reports whether the payload differs from the one previously stored.
func (s *Store) UpsertWeatherData(ctx context.Context, rec models.WeatherRecord) (changed bool, err error) {
	sum := sha256.Sum256([]byte(rec.Payload))
	hash := hex.EncodeToString(sum[:])

	var prev string
	switch err := s.get(ctx, &prev, `SELECT payload_hash FROM weather_data WHERE location_key = ?`, rec.LocationKey); err {
	case nil, ErrNotFound:
	default:
		return false, err
	}

	_, err = s.exec(ctx, `
		INSERT INTO weather_data (location_key, query, latitude, longitude, sources, payload, payload_hash, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location_key) DO UPDATE SET
			query = excluded.query,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			sources = excluded.sources,
			payload = excluded.payload,
			payload_hash = excluded.payload_hash,
			fetched_at = excluded.fetched_at
	`, rec.LocationKey, rec.Query, rec.Latitude, rec.Longitude, rec.Sources, rec.Payload, hash, rec.FetchedAt.UTC())
	if err != nil {
		return false, err
	}
	return prev != hash, nil
}

func (s *Store) GetWeatherData(ctx context.Context, locationKey string) (*models.WeatherRecord, error) {
	var rec models.WeatherRecord
	if err := s.get(ctx, &rec, `SELECT `+weatherColumns+` FROM weather_data WHERE location_key = ?`, locationKey); err != nil {
		return nil, err
	}
	return &rec, nil
}
