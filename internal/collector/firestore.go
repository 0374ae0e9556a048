package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/lox/siteweather/internal/models"
)

const weatherCollection = "weather_data"

type weatherDoc struct {
	LocationKey string         `firestore:"locationKey"`
	Query       string         `firestore:"query"`
	Latitude    *float64       `firestore:"latitude"`
	Longitude   *float64       `firestore:"longitude"`
	Sources     []string       `firestore:"sources"`
	Payload     map[string]any `firestore:"payload"`
	FetchedAt   time.Time      `firestore:"fetchedAt"`
	UpdatedAt   time.Time      `firestore:"updatedAt,serverTimestamp"`
}

// FirestoreMirror copies weather records into a Firestore collection for
// the dashboard, one document per location key.
type FirestoreMirror struct {
	client *firestore.Client
}

func NewFirestoreMirror(ctx context.Context, projectID string) (*FirestoreMirror, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &FirestoreMirror{client: client}, nil
}

func (m *FirestoreMirror) Mirror(ctx context.Context, rec models.WeatherRecord) error {
	doc := weatherDoc{
		LocationKey: rec.LocationKey,
		Query:       rec.Query,
		Latitude:    rec.Latitude,
		Longitude:   rec.Longitude,
		FetchedAt:   rec.FetchedAt,
	}
	if err := json.Unmarshal([]byte(rec.Sources), &doc.Sources); err != nil {
		return fmt.Errorf("decode sources: %w", err)
	}
	if rec.Payload != "" {
		if err := json.Unmarshal([]byte(rec.Payload), &doc.Payload); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
	}
	if _, err := m.client.Collection(weatherCollection).Doc(rec.LocationKey).Set(ctx, doc); err != nil {
		return fmt.Errorf("mirror %s: %w", rec.LocationKey, err)
	}
	return nil
}

func (m *FirestoreMirror) Close() error {
	return m.client.Close()
}
