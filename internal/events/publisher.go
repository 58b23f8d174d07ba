// Package events publishes day-rollover notifications to Kafka so downstream
// consumers (reporting, streak badges) can react without polling daily_stats.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/peterdesantis17/66-Challenge/internal/domain"
)

// TopicDayRollovers carries DayRolledOver events.
const TopicDayRollovers = "habit_day_rollovers"

// DayRolledOver is emitted after a reconciliation run crossed at least one day
// boundary and advanced the owner's anchor.
type DayRolledOver struct {
	OwnerID        uuid.UUID  `json:"owner_id"`
	Today          domain.Day `json:"today"`
	DaysBackfilled int        `json:"days_backfilled"`
	FailedWrites   int        `json:"failed_writes"`
	HabitsReset    bool       `json:"habits_reset"`
	OccurredAt     time.Time  `json:"occurred_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes events to a single topic. A nil Publisher silently drops
// events, so callers need no broker to run.
type Publisher struct {
	w messageWriter
}

// NewPublisher creates a Publisher for the given brokers, or nil when none
// are configured.
func NewPublisher(brokers []string) *Publisher {
	if len(brokers) == 0 {
		return nil
	}
	return &Publisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        TopicDayRollovers,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}}
}

// PublishDayRolledOver writes one event keyed by owner, so per-owner ordering
// is preserved within a partition.
func (p *Publisher) PublishDayRolledOver(ctx context.Context, event DayRolledOver) error {
	if p == nil {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OwnerID.String()),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("habits.day_rolled_over")},
		},
	})
}

// Close releases the underlying writer.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.w.Close()
}
