package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CollectRun audits one pass of the weather collector.
type CollectRun struct {
	ID           string     `db:"id" json:"id"`
	StartedAt    time.Time  `db:"started_at" json:"startedAt"`
	FinishedAt   *time.Time `db:"finished_at" json:"finishedAt,omitempty"`
	Locations    int        `db:"locations" json:"locations"`
	Succeeded    int        `db:"succeeded" json:"succeeded"`
	Failed       int        `db:"failed" json:"failed"`
	Success      bool       `db:"success" json:"success"`
	ErrorMessage string     `db:"error_message" json:"errorMessage,omitempty"`
}

// StartCollectRun creates a new run record and returns it.
func (s *Store) StartCollectRun(ctx context.Context) (*CollectRun, error) {
	run := &CollectRun{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	_, err := s.exec(ctx, `
		INSERT INTO collect_runs (id, started_at, success) VALUES (?, ?, FALSE)
	`, run.ID, run.StartedAt)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// CompleteCollectRun records the outcome of run.
func (s *Store) CompleteCollectRun(ctx context.Context, run *CollectRun) error {
	if run == nil {
		return nil
	}
	finished := time.Now().UTC()
	run.FinishedAt = &finished

	return s.execOne(ctx, `
		UPDATE collect_runs SET
			finished_at = ?,
			locations = ?,
			succeeded = ?,
			failed = ?,
			success = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.Locations, run.Succeeded, run.Failed, run.Success, run.ErrorMessage, run.ID)
}

// ListCollectRuns returns the most recent runs, newest first.
func (s *Store) ListCollectRuns(ctx context.Context, limit int) ([]CollectRun, error) {
	var out []CollectRun
	err := s.sel(ctx, &out, `
		SELECT id, started_at, finished_at, locations, succeeded, failed, success, error_message
		FROM collect_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	return out, err
}
