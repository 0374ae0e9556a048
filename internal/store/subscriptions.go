package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lox/siteweather/internal/models"
)

const subscriptionColumns = `id, user_id, plan, status, billing_cycle, stripe_customer_id, stripe_subscription_id, stripe_price_id, current_period_end, created_at, updated_at`

func (s *Store) GetSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.get(ctx, &sub, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = ?`, userID); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Store) GetSubscriptionByCustomer(ctx context.Context, customerID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.get(ctx, &sub, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE stripe_customer_id = ?`, customerID); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *Store) GetSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.get(ctx, &sub, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE stripe_subscription_id = ?`, stripeSubscriptionID); err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpsertSubscription writes the subscription for sub.UserID. There is at
// most one row per user; the existing ID and creation time are kept.
func (s *Store) UpsertSubscription(ctx context.Context, sub models.Subscription) (models.Subscription, error) {
	now := time.Now().UTC()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES (:id, :user_id, :plan, :status, :billing_cycle, :stripe_customer_id, :stripe_subscription_id, :stripe_price_id, :current_period_end, :created_at, :updated_at)
		ON CONFLICT(user_id) DO UPDATE SET
			plan = excluded.plan,
			status = excluded.status,
			billing_cycle = excluded.billing_cycle,
			stripe_customer_id = excluded.stripe_customer_id,
			stripe_subscription_id = excluded.stripe_subscription_id,
			stripe_price_id = excluded.stripe_price_id,
			current_period_end = excluded.current_period_end,
			updated_at = excluded.updated_at
	`, sub)
	if err != nil {
		return sub, err
	}

	stored, err := s.GetSubscription(ctx, sub.UserID)
	if err != nil {
		return sub, err
	}
	return *stored, nil
}
