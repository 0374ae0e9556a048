package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/lox/siteweather/internal/alerts"
)

// AlertEvent is published for downstream consumers (dashboards, SMS
// gateways) whenever an alert email went out.
type AlertEvent struct {
	ID          string           `json:"id"`
	UserID      string           `json:"userId"`
	JobsiteID   string           `json:"jobsiteId"`
	JobsiteName string           `json:"jobsiteName"`
	Hazards     []string         `json:"hazards"`
	Triggers    []alerts.Trigger `json:"triggers"`
	Recipients  int              `json:"recipients"`
	WindowStart time.Time        `json:"windowStart"`
	WindowEnd   time.Time        `json:"windowEnd"`
	CreatedAt   time.Time        `json:"createdAt"`
}

type Publisher interface {
	Publish(ctx context.Context, ev AlertEvent) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes alert events keyed by jobsite so one jobsite's
// events stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev AlertEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal alert event: %w", err)
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.JobsiteID), Value: value}); err != nil {
		return fmt.Errorf("write alert event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
