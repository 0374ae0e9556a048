package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lox/siteweather/internal/models"
)

const jobsiteColumns = `id, user_id, client_id, name, address, zip, latitude, longitude, active, created_at, updated_at`

func (s *Store) CreateJobsite(ctx context.Context, j models.Jobsite) (models.Jobsite, error) {
	now := time.Now().UTC()
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO jobsites (`+jobsiteColumns+`)
		VALUES (:id, :user_id, :client_id, :name, :address, :zip, :latitude, :longitude, :active, :created_at, :updated_at)
	`, j)
	return j, err
}

// GetJobsite returns the jobsite only if it belongs to userID.
func (s *Store) GetJobsite(ctx context.Context, userID, id string) (*models.Jobsite, error) {
	var j models.Jobsite
	if err := s.get(ctx, &j, `SELECT `+jobsiteColumns+` FROM jobsites WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *Store) ListJobsites(ctx context.Context, userID string) ([]models.Jobsite, error) {
	var out []models.Jobsite
	err := s.sel(ctx, &out, `SELECT `+jobsiteColumns+` FROM jobsites WHERE user_id = ? ORDER BY created_at, id`, userID)
	return out, err
}

// ListActiveJobsites returns a user's active jobsites, oldest first, which
// is the order plan limits are applied in.
func (s *Store) ListActiveJobsites(ctx context.Context, userID string) ([]models.Jobsite, error) {
	var out []models.Jobsite
	err := s.sel(ctx, &out, `SELECT `+jobsiteColumns+` FROM jobsites WHERE user_id = ? AND active = TRUE ORDER BY created_at, id`, userID)
	return out, err
}

func (s *Store) ListAllActiveJobsites(ctx context.Context) ([]models.Jobsite, error) {
	var out []models.Jobsite
	err := s.sel(ctx, &out, `SELECT `+jobsiteColumns+` FROM jobsites WHERE active = TRUE ORDER BY created_at, id`)
	return out, err
}

func (s *Store) CountActiveJobsites(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.get(ctx, &n, `SELECT COUNT(*) FROM jobsites WHERE user_id = ? AND active = TRUE`, userID)
	return n, err
}
