package collector

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lox/siteweather/internal/models"
	"github.com/lox/siteweather/internal/settings"
	"github.com/lox/siteweather/internal/store"
	"github.com/lox/siteweather/internal/weather"
)

type fakeFetcher struct {
	mu      sync.Mutex
	queries []string
	days    []int
	fail    map[string]bool
}

func (f *fakeFetcher) Forecast(_ context.Context, query string, days int) (*weather.Forecast, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	f.days = append(f.days, days)
	if f.fail[query] {
		return nil, errors.New("provider error")
	}
	return &weather.Forecast{RawJSON: `{"location":{"name":"` + query + `"}}`, FetchedAt: time.Now()}, nil
}

type fakeMirror struct {
	mu   sync.Mutex
	keys []string
}

func (m *fakeMirror) Mirror(_ context.Context, rec models.WeatherRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, rec.LocationKey)
	return nil
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st
}

func ptr(f float64) *float64 { return &f }

func seed(t *testing.T, st *store.Store) {
	t.Helper()
	ctx := context.Background()
	for _, p := range []models.UserProfile{
		{ID: "u1", Email: "a@example.com", Latitude: ptr(30.2672), Longitude: ptr(-97.7431)},
		{ID: "u2", Email: "b@example.com", Zip: "78701-1234"},
	} {
		if err := st.UpsertUserProfile(ctx, p); err != nil {
			t.Fatalf("UpsertUserProfile: %v", err)
		}
	}
	for _, j := range []models.Jobsite{
		{UserID: "u1", Name: "Downtown", Latitude: ptr(30.2669), Longitude: ptr(-97.7428), Active: true},
		{UserID: "u1", Name: "East", Zip: "78702", Active: true},
		{UserID: "u2", Name: "Closed", Zip: "10001", Active: false},
	} {
		if _, err := st.CreateJobsite(ctx, j); err != nil {
			t.Fatalf("CreateJobsite: %v", err)
		}
	}
	if _, err := st.CreateClient(ctx, models.Client{UserID: "u2", Name: "Acme", Address: "1 Main St"}); err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
}

func TestRun(t *testing.T) {
	st := setupTestStore(t)
	seed(t, st)
	fetcher := &fakeFetcher{fail: map[string]bool{"1 Main St": true}}
	mirror := &fakeMirror{}

	c := New(st, fetcher, mirror)
	c.BatchSize = 2
	var sleeps int
	c.sleep = func(context.Context, time.Duration) error { sleeps++; return nil }

	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Downtown and u1's profile round to the same key; the inactive jobsite
	// is skipped.
	if res.Locations != 4 || res.Succeeded != 3 || res.Failed != 1 {
		t.Fatalf("Result = %+v", res)
	}
	if sleeps != 1 {
		t.Errorf("sleeps = %d, want 1 between two batches", sleeps)
	}
	if len(fetcher.queries) != 4 {
		t.Errorf("queries = %v", fetcher.queries)
	}
	if len(mirror.keys) != 3 {
		t.Errorf("mirrored = %v", mirror.keys)
	}

	ctx := context.Background()
	rec, err := st.GetWeatherData(ctx, "geo:30.27,-97.74")
	if err != nil {
		t.Fatalf("GetWeatherData: %v", err)
	}
	var sources []string
	if err := json.Unmarshal([]byte(rec.Sources), &sources); err != nil {
		t.Fatalf("decode sources: %v", err)
	}
	if len(sources) != 2 || !strings.HasPrefix(sources[0], "jobsite:") || sources[1] != "profile:u1" {
		t.Errorf("sources = %v", sources)
	}

	runs, err := st.ListCollectRuns(ctx, 5)
	if err != nil {
		t.Fatalf("ListCollectRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Locations != 4 || runs[0].Failed != 1 || runs[0].Success {
		t.Errorf("runs = %+v", runs)
	}
}

func TestRun_ForecastCoversLongestLookAhead(t *testing.T) {
	st := setupTestStore(t)
	seed(t, st)
	ctx := context.Background()
	fetcher := &fakeFetcher{}
	c := New(st, fetcher, nil)
	c.sleep = func(context.Context, time.Duration) error { return nil }

	if _, err := c.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, d := range fetcher.days {
		if d != DefaultForecastDays {
			t.Fatalf("days without saved settings = %v, want %d", fetcher.days, DefaultForecastDays)
		}
	}

	ws := settings.Defaults()
	ws.ForecastTimeframe.HoursAhead = 120
	if err := st.SaveWeatherSettings(ctx, "u1", ws); err != nil {
		t.Fatal(err)
	}
	fetcher.days = nil
	if _, err := c.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(fetcher.days) == 0 {
		t.Fatal("no fetches")
	}
	for _, d := range fetcher.days {
		if d != 6 {
			t.Errorf("days = %v, want 6 for a 120h look-ahead", fetcher.days)
			break
		}
	}
}

func TestRun_UnchangedPayloadNotMirrored(t *testing.T) {
	st := setupTestStore(t)
	seed(t, st)
	mirror := &fakeMirror{}
	c := New(st, &fakeFetcher{}, mirror)
	c.sleep = func(context.Context, time.Duration) error { return nil }

	for i := 0; i < 2; i++ {
		if _, err := c.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}
	}
	if len(mirror.keys) != 4 {
		t.Errorf("mirrored %d records across two identical runs, want 4", len(mirror.keys))
	}
}

func TestRun_Cancelled(t *testing.T) {
	st := setupTestStore(t)
	seed(t, st)
	c := New(st, &fakeFetcher{}, nil)
	c.BatchSize = 1

	ctx, cancel := context.WithCancel(context.Background())
	c.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}
	res, err := c.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res.Succeeded != 1 {
		t.Errorf("Succeeded = %d, want 1 before cancellation", res.Succeeded)
	}
}

func TestRun_Empty(t *testing.T) {
	st := setupTestStore(t)
	res, err := New(st, &fakeFetcher{}, nil).Run(context.Background())
	if err != nil || res != (Result{}) {
		t.Errorf("Run = %+v, %v", res, err)
	}
}

func TestFirestoreMirror(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	m, err := NewFirestoreMirror(ctx, "siteweather-test")
	if err != nil {
		t.Fatalf("NewFirestoreMirror: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	rec := models.WeatherRecord{
		LocationKey: "zip:78701",
		Query:       "78701",
		Sources:     `["profile:u2"]`,
		Payload:     `{"location":{"name":"Austin"}}`,
		FetchedAt:   time.Now().UTC(),
	}
	if err := m.Mirror(ctx, rec); err != nil {
		t.Fatalf("Mirror: %v", err)
	}
	snap, err := m.client.Collection(weatherCollection).Doc("zip:78701").Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.Data()["query"] != "78701" {
		t.Errorf("query = %v", snap.Data()["query"])
	}
}
