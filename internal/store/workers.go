package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lox/siteweather/internal/models"
)

const workerColumns = `id, user_id, name, email, phone, role, active, created_at`

func (s *Store) CreateWorker(ctx context.Context, w models.Worker) (models.Worker, error) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO workers (`+workerColumns+`)
		VALUES (:id, :user_id, :name, :email, :phone, :role, :active, :created_at)
	`, w)
	return w, err
}

func (s *Store) ListWorkers(ctx context.Context, userID string) ([]models.Worker, error) {
	var out []models.Worker
	err := s.sel(ctx, &out, `SELECT `+workerColumns+` FROM workers WHERE user_id = ? ORDER BY name, id`, userID)
	return out, err
}

// AssignWorker links a worker to a jobsite. Repeated calls are no-ops.
func (s *Store) AssignWorker(ctx context.Context, jobsiteID, workerID string) error {
	_, err := s.exec(ctx, `
		INSERT INTO jobsite_workers (jobsite_id, worker_id) VALUES (?, ?)
		ON CONFLICT(jobsite_id, worker_id) DO NOTHING
	`, jobsiteID, workerID)
	return err
}

// ListJobsiteWorkers returns the active workers assigned to a jobsite.
func (s *Store) ListJobsiteWorkers(ctx context.Context, jobsiteID string) ([]models.Worker, error) {
	var out []models.Worker
	err := s.sel(ctx, &out, `
		SELECT w.id, w.user_id, w.name, w.email, w.phone, w.role, w.active, w.created_at
		FROM workers w
		JOIN jobsite_workers jw ON jw.worker_id = w.id
		WHERE jw.jobsite_id = ? AND w.active = TRUE
		ORDER BY w.name, w.id
	`, jobsiteID)
	return out, err
}
