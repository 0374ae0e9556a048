// Package collector fetches forecasts for every known location, sharing one
// provider call between records that resolve to the same place.
package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lox/siteweather/internal/locations"
	"github.com/lox/siteweather/internal/metrics"
	"github.com/lox/siteweather/internal/models"
	"github.com/lox/siteweather/internal/settings"
	"github.com/lox/siteweather/internal/store"
	"github.com/lox/siteweather/internal/weather"
)

const (
	DefaultBatchSize    = 10
	DefaultBatchDelay   = time.Second
	DefaultForecastDays = 3
)

// Store is the persistence the collector needs.
type Store interface {
	ListAllActiveJobsites(ctx context.Context) ([]models.Jobsite, error)
	ListUserProfiles(ctx context.Context) ([]models.UserProfile, error)
	ListAllClients(ctx context.Context) ([]models.Client, error)
	UpsertWeatherData(ctx context.Context, rec models.WeatherRecord) (bool, error)
	MaxHoursAhead(ctx context.Context) (int, error)
	StartCollectRun(ctx context.Context) (*store.CollectRun, error)
	CompleteCollectRun(ctx context.Context, run *store.CollectRun) error
}

// Fetcher returns the provider forecast for a query.
type Fetcher interface {
	Forecast(ctx context.Context, query string, days int) (*weather.Forecast, error)
}

// Mirror receives a copy of every stored record.
type Mirror interface {
	Mirror(ctx context.Context, rec models.WeatherRecord) error
}

type Collector struct {
	store      Store
	fetcher    Fetcher
	mirror     Mirror
	BatchSize  int
	BatchDelay time.Duration
	// ForecastDays is the minimum number of days fetched. Runs fetch more
	// when a saved look-ahead needs them.
	ForecastDays int
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
}

// New returns a collector with the default batching. mirror may be nil.
func New(st Store, fetcher Fetcher, mirror Mirror) *Collector {
	return &Collector{
		store:        st,
		fetcher:      fetcher,
		mirror:       mirror,
		BatchSize:    DefaultBatchSize,
		BatchDelay:   DefaultBatchDelay,
		ForecastDays: DefaultForecastDays,
		now:          time.Now,
		sleep:        sleepCtx,
	}
}

// Result summarizes one collection pass.
type Result struct {
	Locations int `json:"locations"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Run collects weather for every active jobsite, user profile and client.
// A failing location is counted and logged; Run only errors when it cannot
// list locations or the context is cancelled.
func (c *Collector) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	run, err := c.store.StartCollectRun(ctx)
	if err != nil {
		zap.S().Warnw("collector: start run", "error", err)
	}

	res, runErr := c.collect(ctx)

	if run != nil {
		run.Locations, run.Succeeded, run.Failed = res.Locations, res.Succeeded, res.Failed
		run.Success = runErr == nil && res.Failed == 0
		if runErr != nil {
			run.ErrorMessage = runErr.Error()
		}
		if err := c.store.CompleteCollectRun(context.WithoutCancel(ctx), run); err != nil {
			zap.S().Warnw("collector: complete run", "run", run.ID, "error", err)
		}
	}

	zap.S().Infow("collector: run complete",
		"locations", res.Locations,
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"duration", time.Since(start).Round(time.Millisecond))
	return res, runErr
}

func (c *Collector) collect(ctx context.Context) (Result, error) {
	groups, err := c.gather(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{Locations: len(groups)}
	if len(groups) == 0 {
		return res, nil
	}

	size := c.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	days := c.forecastDays(ctx)

	var succeeded, failed atomic.Int64
	for i := 0; i < len(groups); i += size {
		if i > 0 && c.BatchDelay > 0 {
			if err := c.sleep(ctx, c.BatchDelay); err != nil {
				break
			}
		}
		batch := groups[i:min(i+size, len(groups))]
		batchStart := time.Now()

		var g errgroup.Group
		g.SetLimit(size)
		for _, grp := range batch {
			g.Go(func() error {
				if _, err := c.FetchGroup(ctx, grp, days); err != nil {
					failed.Add(1)
					metrics.LocationsCollected.WithLabelValues("error").Inc()
					zap.S().Warnw("collector: fetch location", "key", grp.Key, "error", err)
					return nil
				}
				succeeded.Add(1)
				metrics.LocationsCollected.WithLabelValues("ok").Inc()
				return nil
			})
		}
		g.Wait()
		metrics.CollectorBatchDuration.Observe(time.Since(batchStart).Seconds())
	}

	res.Succeeded, res.Failed = int(succeeded.Load()), int(failed.Load())
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// forecastDays is the configured minimum raised to cover the longest saved
// look-ahead.
func (c *Collector) forecastDays(ctx context.Context) int {
	days := max(c.ForecastDays, 1)
	hours, err := c.store.MaxHoursAhead(ctx)
	if err != nil {
		zap.S().Warnw("collector: longest look-ahead", "error", err)
		return days
	}
	if hours > 0 {
		if need := settings.ForecastDaysFor(hours); need > days {
			zap.S().Debugw("collector: extending forecast", "hoursAhead", hours, "days", need)
			days = need
		}
	}
	return days
}

// gather lists every location source and deduplicates them.
func (c *Collector) gather(ctx context.Context) ([]locations.Group, error) {
	jobsites, err := c.store.ListAllActiveJobsites(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobsites: %w", err)
	}
	profiles, err := c.store.ListUserProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list user profiles: %w", err)
	}
	clients, err := c.store.ListAllClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}

	all := make([]locations.Location, 0, len(jobsites)+len(profiles)+len(clients))
	for _, j := range jobsites {
		all = append(all, locations.FromJobsite(j))
	}
	for _, p := range profiles {
		all = append(all, locations.FromUserProfile(p))
	}
	for _, cl := range clients {
		all = append(all, locations.FromClient(cl))
	}
	return locations.Dedupe(all), nil
}

// FetchGroup fetches and stores the forecast for one location group. days
// below ForecastDays are raised to it.
func (c *Collector) FetchGroup(ctx context.Context, g locations.Group, days int) (models.WeatherRecord, error) {
	query := locations.Query(g)
	if query == "" {
		return models.WeatherRecord{}, errors.New("location has no query")
	}
	fc, err := c.fetcher.Forecast(ctx, query, min(max(days, c.ForecastDays, 1), settings.MaxForecastDays))
	if err != nil {
		return models.WeatherRecord{}, err
	}

	sources, err := json.Marshal(g.Sources)
	if err != nil {
		return models.WeatherRecord{}, fmt.Errorf("marshal sources: %w", err)
	}
	rec := models.WeatherRecord{
		LocationKey: g.Key,
		Query:       query,
		Latitude:    g.Lat,
		Longitude:   g.Lon,
		Sources:     string(sources),
		Payload:     fc.RawJSON,
		FetchedAt:   c.now().UTC(),
	}
	if rec.Latitude == nil && fc.Location.Lat != 0 {
		lat, lon := fc.Location.Lat, fc.Location.Lon
		rec.Latitude, rec.Longitude = &lat, &lon
	}

	changed, err := c.store.UpsertWeatherData(ctx, rec)
	if err != nil {
		return rec, fmt.Errorf("store weather %s: %w", g.Key, err)
	}
	if c.mirror != nil && changed {
		if err := c.mirror.Mirror(ctx, rec); err != nil {
			zap.S().Warnw("collector: mirror", "key", g.Key, "error", err)
		}
	}
	return rec, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
