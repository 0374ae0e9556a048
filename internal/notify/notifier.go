package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lox/siteweather/internal/alerts"
	"github.com/lox/siteweather/internal/models"
	"github.com/lox/siteweather/internal/store"
)

// NotificationLog records every attempted send.
type NotificationLog interface {
	InsertNotification(ctx context.Context, n models.Notification) error
}

type Notifier struct {
	composer  *Composer
	sender    Sender
	cooldown  Cooldown
	log       NotificationLog
	publisher Publisher
	now       func() time.Time
}

// NewNotifier wires the delivery pipeline. cooldown and publisher may be
// nil.
func NewNotifier(composer *Composer, sender Sender, cooldown Cooldown, log NotificationLog, publisher Publisher) *Notifier {
	return &Notifier{
		composer:  composer,
		sender:    sender,
		cooldown:  cooldown,
		log:       log,
		publisher: publisher,
		now:       time.Now,
	}
}

// Result summarizes one Notify call.
type Result struct {
	Sent       int      `json:"sent"`
	Failed     int      `json:"failed"`
	Suppressed int      `json:"suppressed"`
	Recipients []string `json:"recipients"`
}

// Notify emails each recipient the hazards they have not been told about
// within the cooldown window. Recipients with nothing fresh are skipped.
// An event is published once if at least one email was sent.
func (n *Notifier) Notify(ctx context.Context, a Alert) (Result, error) {
	var res Result
	if len(a.Triggers) == 0 || len(a.Recipients) == 0 {
		return res, nil
	}
	window := time.Duration(a.CooldownHours) * time.Hour
	composed := make(map[string]Message)
	var sendErrs []error

	for _, r := range a.Recipients {
		fresh, err := n.freshTriggers(ctx, a, r, window)
		if err != nil {
			return res, err
		}
		if len(fresh) == 0 {
			res.Suppressed++
			continue
		}

		key := strings.Join(alerts.Names(fresh), ",")
		msg, ok := composed[key]
		if !ok {
			sub := a
			sub.Triggers = fresh
			msg, err = n.composer.Compose(ctx, sub)
			if err != nil {
				return res, err
			}
			composed[key] = msg
		}
		msg.To, msg.ToName = r.Email, r.Name

		sendErr := n.sender.Send(ctx, msg)
		status, errText := store.NotificationSent, ""
		if sendErr != nil {
			status, errText = store.NotificationFailed, sendErr.Error()
			res.Failed++
			sendErrs = append(sendErrs, fmt.Errorf("%s: %w", r.Email, sendErr))
			zap.S().Warnw("notify: send failed", "jobsite", a.JobsiteID, "recipient", r.Email, "error", sendErr)
		} else {
			res.Sent++
			res.Recipients = append(res.Recipients, r.Email)
		}

		for _, t := range fresh {
			if err := n.log.InsertNotification(ctx, models.Notification{
				UserID:    a.UserID,
				JobsiteID: a.JobsiteID,
				Hazard:    string(t.Hazard),
				Recipient: strings.ToLower(r.Email),
				Channel:   r.Channel,
				Status:    status,
				Error:     errText,
				SentAt:    n.now().UTC(),
			}); err != nil {
				zap.S().Errorw("notify: log notification", "jobsite", a.JobsiteID, "error", err)
			}
			if sendErr == nil && n.cooldown != nil {
				k := CooldownKey{JobsiteID: a.JobsiteID, Hazard: string(t.Hazard), Recipient: strings.ToLower(r.Email)}
				if err := n.cooldown.Mark(ctx, k, window); err != nil {
					zap.S().Warnw("notify: mark cooldown", "key", k.String(), "error", err)
				}
			}
		}
	}

	if res.Sent > 0 && n.publisher != nil {
		hazards := alerts.Names(a.Triggers)
		sort.Strings(hazards)
		ev := AlertEvent{
			ID:          uuid.NewString(),
			UserID:      a.UserID,
			JobsiteID:   a.JobsiteID,
			JobsiteName: a.JobsiteName,
			Hazards:     hazards,
			Triggers:    a.Triggers,
			Recipients:  res.Sent,
			WindowStart: a.WindowStart,
			WindowEnd:   a.WindowEnd,
			CreatedAt:   n.now().UTC(),
		}
		if err := n.publisher.Publish(ctx, ev); err != nil {
			zap.S().Warnw("notify: publish event", "jobsite", a.JobsiteID, "error", err)
		}
	}

	if res.Sent == 0 && res.Failed > 0 {
		return res, errors.Join(sendErrs...)
	}
	return res, nil
}

func (n *Notifier) freshTriggers(ctx context.Context, a Alert, r alerts.Recipient, window time.Duration) ([]alerts.Trigger, error) {
	if n.cooldown == nil {
		return a.Triggers, nil
	}
	var fresh []alerts.Trigger
	for _, t := range a.Triggers {
		k := CooldownKey{JobsiteID: a.JobsiteID, Hazard: string(t.Hazard), Recipient: strings.ToLower(r.Email)}
		seen, err := n.cooldown.Seen(ctx, k, window)
		if err != nil {
			return nil, err
		}
		if !seen {
			fresh = append(fresh, t)
		}
	}
	return fresh, nil
}

// SendTest delivers the admin test email.
func (n *Notifier) SendTest(ctx context.Context, to string) error {
	msg, err := n.composer.ComposeTest(to, n.now())
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, msg)
}
