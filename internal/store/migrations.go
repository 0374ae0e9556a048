package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

// Column types are limited to ones both SQLite and Postgres accept.
var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS user_profiles (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL DEFAULT '',
    full_name TEXT NOT NULL DEFAULT '',
    company_name TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT '',
    address TEXT NOT NULL DEFAULT '',
    zip TEXT NOT NULL DEFAULT '',
    latitude DOUBLE PRECISION,
    longitude DOUBLE PRECISION,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS clients (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    name TEXT NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT '',
    address TEXT NOT NULL DEFAULT '',
    zip TEXT NOT NULL DEFAULT '',
    latitude DOUBLE PRECISION,
    longitude DOUBLE PRECISION,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_clients_user ON clients(user_id);

CREATE TABLE IF NOT EXISTS workers (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    name TEXT NOT NULL,
    email TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT '',
    role TEXT NOT NULL DEFAULT '',
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_workers_user ON workers(user_id);

CREATE TABLE IF NOT EXISTS jobsites (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    client_id TEXT NOT NULL DEFAULT '',
    name TEXT NOT NULL,
    address TEXT NOT NULL DEFAULT '',
    zip TEXT NOT NULL DEFAULT '',
    latitude DOUBLE PRECISION,
    longitude DOUBLE PRECISION,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobsites_user ON jobsites(user_id);

CREATE TABLE IF NOT EXISTS jobsite_workers (
    jobsite_id TEXT NOT NULL,
    worker_id TEXT NOT NULL,
    PRIMARY KEY (jobsite_id, worker_id)
);

CREATE TABLE IF NOT EXISTS weather_settings (
    user_id TEXT PRIMARY KEY,
    settings TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS jobsite_weather_settings (
    jobsite_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    use_global_defaults BOOLEAN NOT NULL DEFAULT TRUE,
    override_global_settings BOOLEAN NOT NULL DEFAULT FALSE,
    settings TEXT,
    updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS subscriptions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL UNIQUE,
    plan TEXT NOT NULL DEFAULT 'none',
    status TEXT NOT NULL DEFAULT '',
    billing_cycle TEXT NOT NULL DEFAULT '',
    stripe_customer_id TEXT NOT NULL DEFAULT '',
    stripe_subscription_id TEXT NOT NULL DEFAULT '',
    stripe_price_id TEXT NOT NULL DEFAULT '',
    current_period_end TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_subscriptions_customer ON subscriptions(stripe_customer_id);
CREATE INDEX IF NOT EXISTS idx_subscriptions_stripe ON subscriptions(stripe_subscription_id);

CREATE TABLE IF NOT EXISTS billing_history (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    subscription_id TEXT NOT NULL DEFAULT '',
    stripe_invoice_id TEXT NOT NULL UNIQUE,
    amount_cents BIGINT NOT NULL DEFAULT 0,
    currency TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT '',
    invoice_url TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_billing_history_user ON billing_history(user_id, created_at);

CREATE TABLE IF NOT EXISTS weather_data (
    location_key TEXT PRIMARY KEY,
    query TEXT NOT NULL,
    latitude DOUBLE PRECISION,
    longitude DOUBLE PRECISION,
    sources TEXT NOT NULL DEFAULT '[]',
    payload TEXT NOT NULL,
    payload_hash TEXT NOT NULL DEFAULT '',
    fetched_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    jobsite_id TEXT NOT NULL,
    hazard TEXT NOT NULL,
    recipient TEXT NOT NULL,
    channel TEXT NOT NULL,
    status TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    sent_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notifications_lookup ON notifications(jobsite_id, hazard, recipient, sent_at);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, sent_at);

CREATE TABLE IF NOT EXISTS collect_runs (
    id TEXT PRIMARY KEY,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    locations INTEGER NOT NULL DEFAULT 0,
    succeeded INTEGER NOT NULL DEFAULT 0,
    failed INTEGER NOT NULL DEFAULT 0,
    success BOOLEAN NOT NULL DEFAULT FALSE,
    error_message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_collect_runs_started ON collect_runs(started_at);
`,
	},
	{
		Version:     2,
		Description: "Add jobsite worker lookup index",
		SQL: `
CREATE INDEX IF NOT EXISTS idx_jobsite_workers_worker ON jobsite_workers(worker_id);
`,
	},
}

// ErrMigrationChanged is returned when an applied migration no longer
// matches the SQL it was applied from.
var ErrMigrationChanged = errors.New("applied migration was modified")

func (m migration) checksum() string {
	sum := sha256.Sum256([]byte(m.SQL))
	return hex.EncodeToString(sum[:])
}

// Migrate brings the schema up to date. Each pending migration runs in its
// own transaction and is recorded with a checksum of its SQL; an applied
// migration whose SQL has since changed stops the run with
// ErrMigrationChanged.
func (s *Store) Migrate() error {
	ctx := context.Background()
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL DEFAULT '',
			checksum TEXT NOT NULL DEFAULT '',
			applied_at TIMESTAMP NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var rows []struct {
		Version  int    `db:"version"`
		Checksum string `db:"checksum"`
	}
	if err := s.sel(ctx, &rows, `SELECT version, checksum FROM schema_migrations`); err != nil {
		return fmt.Errorf("list applied migrations: %w", err)
	}
	applied := make(map[int]string, len(rows))
	for _, r := range rows {
		applied[r.Version] = r.Checksum
	}

	pending := 0
	for _, m := range migrations {
		sum, done := applied[m.Version]
		if done {
			if sum != m.checksum() {
				return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, ErrMigrationChanged)
			}
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return err
		}
		pending++
	}
	if pending > 0 {
		zap.S().Infow("migrations: schema updated", "applied", pending, "version", migrations[len(migrations)-1].Version)
	}
	return nil
}

func (s *Store) apply(ctx context.Context, m migration) error {
	zap.S().Infow("migrations: applying", "version", m.Version, "description", m.Description)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("execute migration %d: %w", m.Version, err)
	}
	if _, err := tx.ExecContext(ctx,
		tx.Rebind(`INSERT INTO schema_migrations (version, description, checksum, applied_at) VALUES (?, ?, ?, ?)`),
		m.Version, m.Description, m.checksum(), time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}
	return nil
}

// MigrationVersion returns the highest applied migration, or 0.
func (s *Store) MigrationVersion() (int, error) {
	var version sql.NullInt64
	if err := s.db.Get(&version, "SELECT MAX(version) FROM schema_migrations"); err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
