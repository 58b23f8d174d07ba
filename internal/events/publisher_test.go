package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/peterdesantis17/66-Challenge/internal/domain"
)

type stubWriter struct {
	messages []kafka.Message
	closed   bool
}

func (w *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *stubWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishDayRolledOver(t *testing.T) {
	writer := &stubWriter{}
	publisher := &Publisher{w: writer}

	ownerID := uuid.New()
	today, err := domain.ParseDay("2025-06-05")
	require.NoError(t, err)

	event := DayRolledOver{
		OwnerID:        ownerID,
		Today:          today,
		DaysBackfilled: 3,
		FailedWrites:   1,
		HabitsReset:    true,
		OccurredAt:     time.Date(2025, time.June, 5, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, publisher.PublishDayRolledOver(context.Background(), event))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	require.Equal(t, ownerID.String(), string(msg.Key), "messages are keyed by owner for partition ordering")

	require.Len(t, msg.Headers, 1)
	require.Equal(t, "event_type", msg.Headers[0].Key)
	require.Equal(t, "habits.day_rolled_over", string(msg.Headers[0].Value))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	require.Equal(t, "2025-06-05", decoded["today"])
	require.Equal(t, float64(3), decoded["days_backfilled"])
	require.Equal(t, float64(1), decoded["failed_writes"])
	require.Equal(t, true, decoded["habits_reset"])
}

func TestNilPublisherDropsEvents(t *testing.T) {
	var publisher *Publisher
	require.NoError(t, publisher.PublishDayRolledOver(context.Background(), DayRolledOver{}))
	require.NoError(t, publisher.Close())
}

func TestNewPublisherRequiresBrokers(t *testing.T) {
	require.Nil(t, NewPublisher(nil))
	require.NotNil(t, NewPublisher([]string{"kafka:9092"}))
}
