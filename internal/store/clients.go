package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lox/siteweather/internal/models"
)

const clientColumns = `id, user_id, name, email, phone, address, zip, latitude, longitude, created_at`

// CreateClient assigns an ID and creation time when missing and inserts c.
func (s *Store) CreateClient(ctx context.Context, c models.Client) (models.Client, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES (:id, :user_id, :name, :email, :phone, :address, :zip, :latitude, :longitude, :created_at)
	`, c)
	return c, err
}

// GetClient returns the client only if it belongs to userID.
func (s *Store) GetClient(ctx context.Context, userID, id string) (*models.Client, error) {
	var c models.Client
	if err := s.get(ctx, &c, `SELECT `+clientColumns+` FROM clients WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListClients(ctx context.Context, userID string) ([]models.Client, error) {
	var out []models.Client
	err := s.sel(ctx, &out, `SELECT `+clientColumns+` FROM clients WHERE user_id = ? ORDER BY name, id`, userID)
	return out, err
}

func (s *Store) ListAllClients(ctx context.Context) ([]models.Client, error) {
	var out []models.Client
	err := s.sel(ctx, &out, `SELECT `+clientColumns+` FROM clients ORDER BY created_at, id`)
	return out, err
}
