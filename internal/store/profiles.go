package store

import (
	"context"
	"time"

	"github.com/lox/siteweather/internal/models"
)

const profileColumns = `id, email, full_name, company_name, phone, address, zip, latitude, longitude, created_at, updated_at`

// UpsertUserProfile inserts or replaces the profile for p.ID.
func (s *Store) UpsertUserProfile(ctx context.Context, p models.UserProfile) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO user_profiles (`+profileColumns+`)
		VALUES (:id, :email, :full_name, :company_name, :phone, :address, :zip, :latitude, :longitude, :created_at, :updated_at)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			full_name = excluded.full_name,
			company_name = excluded.company_name,
			phone = excluded.phone,
			address = excluded.address,
			zip = excluded.zip,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			updated_at = excluded.updated_at
	`, p)
	return err
}

// EnsureUserProfile creates a bare profile for id when none exists and
// fills in the email of an existing profile that has none. Other fields are
// left alone.
func (s *Store) EnsureUserProfile(ctx context.Context, id, email string) error {
	now := time.Now().UTC()
	_, err := s.exec(ctx, `
		INSERT INTO user_profiles (id, email, full_name, company_name, phone, address, zip, created_at, updated_at)
		VALUES (?, ?, '', '', '', '', '', ?, ?)
		ON CONFLICT(id) DO UPDATE SET email = excluded.email, updated_at = excluded.updated_at
		WHERE user_profiles.email = ''
	`, id, email, now, now)
	return err
}

func (s *Store) GetUserProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	var p models.UserProfile
	if err := s.get(ctx, &p, `SELECT `+profileColumns+` FROM user_profiles WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListUserProfiles(ctx context.Context) ([]models.UserProfile, error) {
	var out []models.UserProfile
	err := s.sel(ctx, &out, `SELECT `+profileColumns+` FROM user_profiles ORDER BY created_at, id`)
	return out, err
}
