package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownKey identifies one hazard sent to one recipient for a jobsite.
type CooldownKey struct {
	JobsiteID string
	Hazard    string
	Recipient string
}

func (k CooldownKey) String() string {
	return fmt.Sprintf("notify_sent:%s:%s:%s", k.JobsiteID, k.Hazard, k.Recipient)
}

// Cooldown suppresses repeat notifications within a window.
type Cooldown interface {
	Seen(ctx context.Context, k CooldownKey, window time.Duration) (bool, error)
	Mark(ctx context.Context, k CooldownKey, window time.Duration) error
}

// RedisCooldown keeps one expiring key per sent notification.
type RedisCooldown struct {
	redis *redis.Client
}

func NewRedisCooldown(client *redis.Client) *RedisCooldown {
	return &RedisCooldown{redis: client}
}

func (c *RedisCooldown) Seen(ctx context.Context, k CooldownKey, window time.Duration) (bool, error) {
	if window <= 0 {
		return false, nil
	}
	n, err := c.redis.Exists(ctx, k.String()).Result()
	if err != nil {
		return false, fmt.Errorf("check cooldown: %w", err)
	}
	return n > 0, nil
}

func (c *RedisCooldown) Mark(ctx context.Context, k CooldownKey, window time.Duration) error {
	if window <= 0 {
		return nil
	}
	if err := c.redis.Set(ctx, k.String(), time.Now().UTC().Format(time.RFC3339), window).Err(); err != nil {
		return fmt.Errorf("set cooldown: %w", err)
	}
	return nil
}

// SentLookup finds the last successful send in the notification log.
type SentLookup interface {
	LastNotificationSent(ctx context.Context, jobsiteID, hazard, recipient string) (time.Time, bool, error)
}

// StoreCooldown derives the cooldown from the notifications table, which
// the notifier writes regardless. Mark is a no-op.
type StoreCooldown struct {
	lookup SentLookup
	now    func() time.Time
}

func NewStoreCooldown(lookup SentLookup) *StoreCooldown {
	return &StoreCooldown{lookup: lookup, now: time.Now}
}

func (c *StoreCooldown) Seen(ctx context.Context, k CooldownKey, window time.Duration) (bool, error) {
	if window <= 0 {
		return false, nil
	}
	at, ok, err := c.lookup.LastNotificationSent(ctx, k.JobsiteID, k.Hazard, k.Recipient)
	if err != nil {
		return false, fmt.Errorf("check cooldown: %w", err)
	}
	return ok && c.now().Sub(at) < window, nil
}

func (c *StoreCooldown) Mark(context.Context, CooldownKey, time.Duration) error {
	return nil
}
