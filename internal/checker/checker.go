// Package checker evaluates each user's jobsites against their alert
// thresholds and hands triggered alerts to the notifier.
package checker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lox/siteweather/internal/alerts"
	"github.com/lox/siteweather/internal/billing"
	"github.com/lox/siteweather/internal/locations"
	"github.com/lox/siteweather/internal/metrics"
	"github.com/lox/siteweather/internal/models"
	"github.com/lox/siteweather/internal/notify"
	"github.com/lox/siteweather/internal/settings"
	"github.com/lox/siteweather/internal/store"
	"github.com/lox/siteweather/internal/weather"
)

// MaxWeatherAge is how old a stored forecast may be before a check fetches
// a fresh one.
const MaxWeatherAge = 3 * time.Hour

// ErrAlertsNotIncluded is returned when the user's plan has no weather
// alerts.
var ErrAlertsNotIncluded = errors.New("plan does not include weather alerts")

type Store interface {
	ListUserSettings(ctx context.Context) ([]store.UserSettings, error)
	GetWeatherSettings(ctx context.Context, userID string) (settings.WeatherSettings, error)
	GetJobsiteWeatherSettings(ctx context.Context, jobsiteID string) (*settings.JobsiteWeatherSettings, error)
	GetSubscription(ctx context.Context, userID string) (*models.Subscription, error)
	ListActiveJobsites(ctx context.Context, userID string) ([]models.Jobsite, error)
	GetUserProfile(ctx context.Context, id string) (*models.UserProfile, error)
	GetClient(ctx context.Context, userID, id string) (*models.Client, error)
	ListJobsiteWorkers(ctx context.Context, jobsiteID string) ([]models.Worker, error)
	GetWeatherData(ctx context.Context, locationKey string) (*models.WeatherRecord, error)
}

// Refresher fetches and stores the forecast for one location.
type Refresher interface {
	FetchGroup(ctx context.Context, g locations.Group, days int) (models.WeatherRecord, error)
}

type Notifier interface {
	Notify(ctx context.Context, a notify.Alert) (notify.Result, error)
}

type Checker struct {
	store     Store
	refresher Refresher
	notifier  Notifier
	defaults  settings.WeatherSettings
}

// New returns a checker. defaults apply to manual checks of users that
// never saved settings.
func New(st Store, refresher Refresher, notifier Notifier, defaults settings.WeatherSettings) *Checker {
	return &Checker{store: st, refresher: refresher, notifier: notifier, defaults: defaults}
}

// Outcome statuses.
const (
	StatusNotified  = "notified"
	StatusNoAlerts  = "no_alerts"
	StatusNotDue    = "not_due"
	StatusDisabled  = "disabled"
	StatusOverLimit = "over_limit"
	StatusNoWeather = "no_weather"
	StatusNoContact = "no_recipients"
	StatusError     = "error"
)

// Outcome is the result of checking one jobsite.
type Outcome struct {
	JobsiteID   string           `json:"jobsiteId"`
	JobsiteName string           `json:"jobsiteName"`
	Status      string           `json:"status"`
	Triggers    []alerts.Trigger `json:"triggers,omitempty"`
	Sent        int              `json:"sent"`
	Failed      int              `json:"failed"`
	Suppressed  int              `json:"suppressed"`
	Error       string           `json:"error,omitempty"`
}

// Report is the result of checking one user.
type Report struct {
	UserID   string    `json:"userId"`
	Plan     string    `json:"plan"`
	Outcomes []Outcome `json:"outcomes"`
}

// RunDue checks every user with saved settings, limited to jobsites whose
// resolved check time falls in the minute containing now. It returns how
// many jobsites were evaluated.
func (c *Checker) RunDue(ctx context.Context, now time.Time) (int, error) {
	users, err := c.store.ListUserSettings(ctx)
	if err != nil {
		if users == nil {
			return 0, fmt.Errorf("list user settings: %w", err)
		}
		zap.S().Warnw("checker: some settings failed to decode", "error", err)
	}

	checked := 0
	for _, u := range users {
		if ctx.Err() != nil {
			return checked, ctx.Err()
		}
		rep, err := c.check(ctx, u.UserID, u.Settings, now, false)
		if errors.Is(err, ErrAlertsNotIncluded) {
			continue
		}
		if err != nil {
			zap.S().Errorw("checker: check user", "user", u.UserID, "error", err)
			continue
		}
		for _, o := range rep.Outcomes {
			if o.Status != StatusNotDue && o.Status != StatusDisabled && o.Status != StatusOverLimit {
				checked++
			}
		}
	}
	return checked, nil
}

// CheckUser runs the check for one user. With force set, jobsites are
// evaluated regardless of their check time and enabled flag; manual checks
// use this.
func (c *Checker) CheckUser(ctx context.Context, userID string, now time.Time, force bool) (Report, error) {
	ws, err := c.store.GetWeatherSettings(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		ws = c.defaults
	} else if err != nil {
		return Report{UserID: userID}, fmt.Errorf("get weather settings: %w", err)
	}
	return c.check(ctx, userID, ws, now, force)
}

func (c *Checker) check(ctx context.Context, userID string, global settings.WeatherSettings, now time.Time, force bool) (Report, error) {
	rep := Report{UserID: userID}

	sub, err := c.store.GetSubscription(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return rep, fmt.Errorf("get subscription: %w", err)
	}
	plan, features := billing.FeaturesForSubscription(sub)
	rep.Plan = string(plan)
	if !features.WeatherAlerts || !features.EmailNotifications {
		return rep, ErrAlertsNotIncluded
	}

	jobsites, err := c.store.ListActiveJobsites(ctx, userID)
	if err != nil {
		return rep, fmt.Errorf("list jobsites: %w", err)
	}

	var owner *models.UserProfile
	for i, j := range jobsites {
		out := Outcome{JobsiteID: j.ID, JobsiteName: j.Name}
		if !features.AllowsJobsites(i + 1) {
			out.Status = StatusOverLimit
			rep.Outcomes = append(rep.Outcomes, out)
			continue
		}

		eff := global
		if features.JobsiteOverrides {
			js, err := c.store.GetJobsiteWeatherSettings(ctx, j.ID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				zap.S().Warnw("checker: jobsite settings", "jobsite", j.ID, "error", err)
			}
			eff = settings.Resolve(global, js)
		}
		if !features.CustomThresholds {
			eff.AlertThresholds = c.defaults.AlertThresholds
		}

		switch {
		case !force && !eff.Enabled:
			out.Status = StatusDisabled
		case !force && !eff.DueAt(now):
			out.Status = StatusNotDue
		default:
			if owner == nil {
				owner = c.owner(ctx, userID)
			}
			out = c.checkJobsite(ctx, j, eff, owner, now)
			metrics.AlertChecksTotal.WithLabelValues(out.Status).Inc()
		}
		rep.Outcomes = append(rep.Outcomes, out)
	}
	return rep, nil
}

func (c *Checker) owner(ctx context.Context, userID string) *models.UserProfile {
	p, err := c.store.GetUserProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			zap.S().Warnw("checker: owner profile", "user", userID, "error", err)
		}
		return &models.UserProfile{ID: userID}
	}
	return p
}

func (c *Checker) checkJobsite(ctx context.Context, j models.Jobsite, eff settings.WeatherSettings, owner *models.UserProfile, now time.Time) Outcome {
	out := Outcome{JobsiteID: j.ID, JobsiteName: j.Name}
	fail := func(err error) Outcome {
		out.Status = StatusError
		out.Error = err.Error()
		zap.S().Warnw("checker: jobsite", "jobsite", j.ID, "error", err)
		return out
	}

	fc, err := c.forecast(ctx, j, now, eff.ForecastTimeframe.HoursAhead)
	if err != nil {
		return fail(err)
	}
	if fc == nil {
		out.Status = StatusNoWeather
		return out
	}

	loc := eff.Location()
	reading := alerts.Summarize(fc, eff.ForecastTimeframe, now, loc)
	triggers, err := alerts.Evaluate(reading, eff.AlertThresholds)
	if err != nil {
		return fail(err)
	}
	out.Triggers = triggers
	if len(triggers) == 0 {
		out.Status = StatusNoAlerts
		return out
	}
	for _, t := range triggers {
		metrics.AlertsTriggered.WithLabelValues(string(t.Hazard)).Inc()
	}

	contacts, err := c.contacts(ctx, j, owner)
	if err != nil {
		return fail(err)
	}
	recipients := alerts.Recipients(triggers, eff.Notifications, contacts)
	if len(recipients) == 0 {
		out.Status = StatusNoContact
		return out
	}

	res, err := c.notifier.Notify(ctx, notify.Alert{
		UserID:        j.UserID,
		JobsiteID:     j.ID,
		JobsiteName:   j.Name,
		Address:       j.Address,
		CompanyName:   owner.CompanyName,
		Timezone:      loc.String(),
		WindowStart:   now,
		WindowEnd:     now.Add(time.Duration(eff.ForecastTimeframe.HoursAhead) * time.Hour),
		Reading:       reading,
		Triggers:      triggers,
		Recipients:    recipients,
		CooldownHours: eff.Notifications.CooldownHours,
	})
	out.Sent, out.Failed, out.Suppressed = res.Sent, res.Failed, res.Suppressed
	if err != nil {
		return fail(err)
	}
	out.Status = StatusNotified
	return out
}

// forecast returns the stored forecast for the jobsite's location. A fresh
// one is fetched when none is stored, it is older than MaxWeatherAge, or it
// ends before the look-ahead does. A nil forecast means the jobsite has no
// usable location.
func (c *Checker) forecast(ctx context.Context, j models.Jobsite, now time.Time, hoursAhead int) (*weather.Forecast, error) {
	groups := locations.Dedupe([]locations.Location{locations.FromJobsite(j)})
	if len(groups) == 0 {
		return nil, nil
	}
	g := groups[0]
	if hoursAhead <= 0 {
		hoursAhead = settings.Defaults().ForecastTimeframe.HoursAhead
	}
	end := now.Add(time.Duration(hoursAhead) * time.Hour)

	rec, err := c.store.GetWeatherData(ctx, g.Key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		rec = nil
	case err != nil:
		return nil, fmt.Errorf("get weather data: %w", err)
	}

	var fc *weather.Forecast
	var parseErr error
	if rec != nil {
		fc, parseErr = weather.ParseForecast([]byte(rec.Payload), rec.FetchedAt)
		if parseErr != nil {
			parseErr = fmt.Errorf("parse stored weather %s: %w", g.Key, parseErr)
			zap.S().Warnw("checker: stored forecast unreadable", "key", g.Key, "error", parseErr)
		}
	}

	stale := fc == nil || now.Sub(rec.FetchedAt) > MaxWeatherAge || fc.Horizon().Before(end)
	if stale && c.refresher != nil {
		fresh, err := c.refresher.FetchGroup(ctx, g, settings.ForecastDaysFor(hoursAhead))
		switch {
		case err != nil && fc == nil:
			return nil, fmt.Errorf("fetch weather %s: %w", g.Key, err)
		case err != nil:
			zap.S().Warnw("checker: refresh failed, using stored forecast", "key", g.Key, "age", now.Sub(rec.FetchedAt).Round(time.Minute), "error", err)
		default:
			parsed, err := weather.ParseForecast([]byte(fresh.Payload), fresh.FetchedAt)
			if err != nil {
				return nil, fmt.Errorf("parse fetched weather %s: %w", g.Key, err)
			}
			fc = parsed
		}
	}

	if fc == nil {
		return nil, parseErr
	}
	if horizon := fc.Horizon(); horizon.Before(end) {
		metrics.ShortForecasts.Inc()
		zap.S().Warnw("checker: forecast ends before look-ahead",
			"jobsite", j.ID, "key", g.Key, "forecastEnd", horizon, "lookAheadEnd", end)
	}
	return fc, nil
}

func (c *Checker) contacts(ctx context.Context, j models.Jobsite, owner *models.UserProfile) (alerts.Contacts, error) {
	ct := alerts.Contacts{Owner: alerts.Contact{Name: owner.FullName, Email: owner.Email}}
	if j.ClientID != "" {
		cl, err := c.store.GetClient(ctx, j.UserID, j.ClientID)
		switch {
		case err == nil:
			ct.Client = alerts.Contact{Name: cl.Name, Email: cl.Email}
		case !errors.Is(err, store.ErrNotFound):
			return ct, fmt.Errorf("get client: %w", err)
		}
	}
	workers, err := c.store.ListJobsiteWorkers(ctx, j.ID)
	if err != nil {
		return ct, fmt.Errorf("list jobsite workers: %w", err)
	}
	for _, w := range workers {
		ct.Workers = append(ct.Workers, alerts.Contact{Name: w.Name, Email: w.Email})
	}
	return ct, nil
}
