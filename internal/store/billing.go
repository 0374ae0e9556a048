package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lox/siteweather/internal/models"
)

const billingColumns = `id, user_id, subscription_id, stripe_invoice_id, amount_cents, currency, status, invoice_url, created_at`

// InsertBillingRecord appends an invoice to the user's billing history.
// Stripe redelivers webhooks, so a repeated invoice ID is ignored.
func (s *Store) InsertBillingRecord(ctx context.Context, rec models.BillingRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO billing_history (`+billingColumns+`)
		VALUES (:id, :user_id, :subscription_id, :stripe_invoice_id, :amount_cents, :currency, :status, :invoice_url, :created_at)
		ON CONFLICT(stripe_invoice_id) DO NOTHING
	`, rec)
	return err
}

func (s *Store) ListBillingHistory(ctx context.Context, userID string, limit int) ([]models.BillingRecord, error) {
	var out []models.BillingRecord
	err := s.sel(ctx, &out, `SELECT `+billingColumns+` FROM billing_history WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	return out, err
}
