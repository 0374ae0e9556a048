package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lox/siteweather/internal/billing"
	"github.com/lox/siteweather/internal/checker"
	"github.com/lox/siteweather/internal/collector"
	"github.com/lox/siteweather/internal/config"
	"github.com/lox/siteweather/internal/notify"
	"github.com/lox/siteweather/internal/settings"
	"github.com/lox/siteweather/internal/store"
	"github.com/lox/siteweather/internal/weather"
)

// app holds the wired components for one command invocation.
type app struct {
	store     *store.Store
	collector *collector.Collector
	notifier  *notify.Notifier
	checker   *checker.Checker
	billing   *billing.Service
	defaults  settings.WeatherSettings
	closers   []func() error
}

func openStore(cfg *config.Config) (*store.Store, error) {
	if cfg.DBDriver == store.DriverSQLite && cfg.DatabaseURL != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabaseURL), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	st, err := store.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.DBDriver == store.DriverSQLite {
		st.DB().Exec("PRAGMA journal_mode=WAL")
		st.DB().Exec("PRAGMA busy_timeout=5000")
	}
	if err := st.Migrate(); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return st, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{store: st, closers: []func() error{st.Close}}

	a.defaults, err = settings.LoadDefaults(cfg.DefaultsFile)
	if err != nil {
		a.Close()
		return nil, err
	}

	var mirror collector.Mirror
	if cfg.FirestoreProject != "" {
		m, err := collector.NewFirestoreMirror(ctx, cfg.FirestoreProject)
		if err != nil {
			a.Close()
			return nil, err
		}
		mirror = m
		a.closers = append(a.closers, m.Close)
		zap.S().Infow("app: mirroring weather to firestore", "project", cfg.FirestoreProject)
	}
	a.collector = collector.New(st, weather.NewClient(cfg.WeatherAPIKey, cfg.WeatherBaseURL), mirror)
	a.collector.BatchSize = cfg.BatchSize
	a.collector.BatchDelay = cfg.BatchDelay
	a.collector.ForecastDays = cfg.ForecastDays

	var brief notify.BriefWriter
	if b := notify.NewOpenAIBrief(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL); b != nil {
		brief = b
	}

	var cooldown notify.Cooldown = notify.NewStoreCooldown(st)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		rc := redis.NewClient(opts)
		a.closers = append(a.closers, rc.Close)
		cooldown = notify.NewRedisCooldown(rc)
	}

	var publisher notify.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		p := notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		a.closers = append(a.closers, p.Close)
		publisher = p
	}

	sender := notify.NewSendGrid(cfg.SendGridAPIKey, "", cfg.FromEmail, cfg.FromName)
	a.notifier = notify.NewNotifier(notify.NewComposer(brief), sender, cooldown, st, publisher)
	a.checker = checker.New(st, a.collector, a.notifier, a.defaults)
	a.billing = billing.NewService(cfg.Billing(), st)

	if cfg.WeatherAPIKey == "" {
		zap.S().Warn("app: WEATHER_API_KEY not set, weather fetches will fail")
	}
	if cfg.SendGridAPIKey == "" {
		zap.S().Warn("app: SENDGRID_API_KEY not set, alert emails are disabled")
	}
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			zap.S().Warnw("app: close", "error", err)
		}
	}
}
