package domain

import (
	"context"

	"github.com/google/uuid"
)

// RemoteStore is the authoritative record store the engine reconciles
// against. Implementations back the three collections (habits, daily_stats,
// last_logins); the engine never assumes cross-call transactionality.
type RemoteStore interface {
	// ListHabits returns the owner's habits ordered by position ascending.
	ListHabits(ctx context.Context, ownerID uuid.UUID) ([]Habit, error)
	InsertHabit(ctx context.Context, habit Habit) error
	// SetHabitCompleted updates the completion flag of a single habit.
	SetHabitCompleted(ctx context.Context, habitID uuid.UUID, completed bool) error
	// SetHabitOrder moves a single habit to the given 1-based position.
	SetHabitOrder(ctx context.Context, habitID uuid.UUID, order int) error
	// ResetCompletion clears the completion flag on every habit the owner has.
	ResetCompletion(ctx context.Context, ownerID uuid.UUID) error

	// UpsertDailyStat records a stat for (owner, date). Repeating the call for
	// a day that already has a row is a no-op, which makes backfill retries
	// after a partial failure safe.
	UpsertDailyStat(ctx context.Context, stat DailyStat) error
	// ListDailyStats returns the owner's stats ordered by date descending.
	ListDailyStats(ctx context.Context, ownerID uuid.UUID, limit int) ([]DailyStat, error)

	// GetLastSeen returns the owner's anchor, or nil when none exists yet.
	GetLastSeen(ctx context.Context, ownerID uuid.UUID) (*LastSeen, error)
	UpsertLastSeen(ctx context.Context, record LastSeen) error
}
