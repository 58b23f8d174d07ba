// Package postgres provides the Postgres-backed remote store for habits,
// daily stats, and last-seen anchors.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/peterdesantis17/66-Challenge/internal/domain"
)

// Store implements domain.RemoteStore on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ListHabits returns the owner's habits ordered by position ascending.
func (s *Store) ListHabits(ctx context.Context, ownerID uuid.UUID) ([]domain.Habit, error) {
	const query = `SELECT id, owner_id, title, is_completed, created_at, position
        FROM habits WHERE owner_id=$1 ORDER BY position ASC`

	rows, err := s.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var habits []domain.Habit
	for rows.Next() {
		var h domain.Habit
		if err := rows.Scan(&h.ID, &h.OwnerID, &h.Title, &h.IsCompleted, &h.CreatedAt, &h.Order); err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

// InsertHabit persists a new habit row.
func (s *Store) InsertHabit(ctx context.Context, habit domain.Habit) error {
	const stmt = `INSERT INTO habits (id, owner_id, title, is_completed, created_at, position)
        VALUES ($1,$2,$3,$4,$5,$6)`

	_, err := s.pool.Exec(ctx, stmt,
		habit.ID,
		habit.OwnerID,
		habit.Title,
		habit.IsCompleted,
		habit.CreatedAt,
		habit.Order,
	)
	return err
}

// SetHabitCompleted updates the completion flag of one habit.
func (s *Store) SetHabitCompleted(ctx context.Context, habitID uuid.UUID, completed bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE habits SET is_completed=$2 WHERE id=$1`, habitID, completed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrHabitNotFound
	}
	return nil
}

// SetHabitOrder moves one habit to the given position.
func (s *Store) SetHabitOrder(ctx context.Context, habitID uuid.UUID, order int) error {
	tag, err := s.pool.Exec(ctx, `UPDATE habits SET position=$2 WHERE id=$1`, habitID, order)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrHabitNotFound
	}
	return nil
}

// ResetCompletion clears every completion flag the owner has set.
func (s *Store) ResetCompletion(ctx context.Context, ownerID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE habits SET is_completed=FALSE WHERE owner_id=$1`, ownerID)
	return err
}

// UpsertDailyStat records a stat row for (owner, date). The ledger is
// append-only, so a conflicting insert leaves the existing row untouched
// rather than overwriting it.
func (s *Store) UpsertDailyStat(ctx context.Context, stat domain.DailyStat) error {
	const stmt = `INSERT INTO daily_stats (id, owner_id, date, completion_percentage, habits_completed, total_habits, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (owner_id, date) DO NOTHING`

	_, err := s.pool.Exec(ctx, stmt,
		stat.ID,
		stat.OwnerID,
		stat.Date.Time(),
		stat.CompletionPercentage,
		stat.HabitsCompleted,
		stat.TotalHabits,
		stat.CreatedAt,
	)
	return err
}

// ListDailyStats returns recent stats ordered by date descending.
func (s *Store) ListDailyStats(ctx context.Context, ownerID uuid.UUID, limit int) ([]domain.DailyStat, error) {
	const query = `SELECT id, owner_id, date, completion_percentage, habits_completed, total_habits, created_at
        FROM daily_stats WHERE owner_id=$1 ORDER BY date DESC LIMIT $2`

	rows, err := s.pool.Query(ctx, query, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make([]domain.DailyStat, 0, limit)
	for rows.Next() {
		var (
			stat domain.DailyStat
			date time.Time
		)
		if err := rows.Scan(&stat.ID, &stat.OwnerID, &date, &stat.CompletionPercentage, &stat.HabitsCompleted, &stat.TotalHabits, &stat.CreatedAt); err != nil {
			return nil, err
		}
		stat.Date = domain.DayOf(date)
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

// GetLastSeen returns the owner's anchor row, or nil when none exists.
func (s *Store) GetLastSeen(ctx context.Context, ownerID uuid.UUID) (*domain.LastSeen, error) {
	row := s.pool.QueryRow(ctx, `SELECT owner_id, last_seen_day FROM last_logins WHERE owner_id=$1`, ownerID)

	var (
		record domain.LastSeen
		day    time.Time
	)
	if err := row.Scan(&record.OwnerID, &day); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	record.LastSeenDay = domain.DayOf(day)
	return &record, nil
}

// UpsertLastSeen advances (or creates) the owner's anchor.
func (s *Store) UpsertLastSeen(ctx context.Context, record domain.LastSeen) error {
	const stmt = `INSERT INTO last_logins (owner_id, last_seen_day) VALUES ($1,$2)
        ON CONFLICT (owner_id) DO UPDATE SET last_seen_day=EXCLUDED.last_seen_day`

	_, err := s.pool.Exec(ctx, stmt, record.OwnerID, record.LastSeenDay.Time())
	return err
}
