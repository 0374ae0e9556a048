package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lox/siteweather/internal/models"
)

const notificationColumns = `id, user_id, jobsite_id, hazard, recipient, channel, status, error, sent_at`

const (
	NotificationSent   = "sent"
	NotificationFailed = "failed"
)

func (s *Store) InsertNotification(ctx context.Context, n models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.SentAt.IsZero() {
		n.SentAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES (:id, :user_id, :jobsite_id, :hazard, :recipient, :channel, :status, :error, :sent_at)
	`, n)
	return err
}

// LastNotificationSent returns when hazard was last successfully sent to
// recipient for a jobsite. ok is false when it never was.
func (s *Store) LastNotificationSent(ctx context.Context, jobsiteID, hazard, recipient string) (at time.Time, ok bool, err error) {
	err = s.get(ctx, &at, `
		SELECT sent_at FROM notifications
		WHERE jobsite_id = ? AND hazard = ? AND recipient = ? AND status = ?
		ORDER BY sent_at DESC
		LIMIT 1
	`, jobsiteID, hazard, recipient, NotificationSent)
	if errors.Is(err, ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	var out []models.Notification
	err := s.sel(ctx, &out, `SELECT `+notificationColumns+` FROM notifications WHERE user_id = ? ORDER BY sent_at DESC LIMIT ?`, userID, limit)
	return out, err
}
