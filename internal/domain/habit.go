// Package domain defines the habit, statistic, and last-seen records the sync
// engine operates on, plus the remote store contract they are persisted
// through.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Habit is a single daily habit owned by one user. Order is the 1-based
// display position within the owner's collection.
type Habit struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Title       string    `json:"title"`
	IsCompleted bool      `json:"is_completed"`
	CreatedAt   time.Time `json:"created_at"`
	Order       int       `json:"order"`
}

// DailyStat records how much of the owner's collection was completed on one
// calendar day. Rows are append-only: once written for a (owner, date) pair
// they are never mutated.
type DailyStat struct {
	ID                   uuid.UUID `json:"id"`
	OwnerID              uuid.UUID `json:"owner_id"`
	Date                 Day       `json:"date"`
	CompletionPercentage float64   `json:"completion_percentage"`
	HabitsCompleted      int       `json:"habits_completed"`
	TotalHabits          int       `json:"total_habits"`
	CreatedAt            time.Time `json:"created_at"`
}

// LastSeen is the per-owner reconciliation anchor: the most recent calendar
// day a reconciliation run completed for. It only ever moves forward, and only
// after the gap behind it has been processed.
type LastSeen struct {
	OwnerID     uuid.UUID `json:"owner_id"`
	LastSeenDay Day       `json:"last_seen_day"`
}

// CompletionPercentage computes the completed share in [0,100]. A zero-habit
// collection scores 0, never a division by zero.
func CompletionPercentage(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}
