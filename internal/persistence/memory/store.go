// Package memory provides an in-memory remote store for local development and
// unit tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/peterdesantis17/66-Challenge/internal/domain"
)

// Store implements domain.RemoteStore with process-local maps.
type Store struct {
	mu       sync.RWMutex
	habits   map[uuid.UUID]domain.Habit
	stats    map[uuid.UUID]map[string]domain.DailyStat
	lastSeen map[uuid.UUID]domain.LastSeen
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		habits:   make(map[uuid.UUID]domain.Habit),
		stats:    make(map[uuid.UUID]map[string]domain.DailyStat),
		lastSeen: make(map[uuid.UUID]domain.LastSeen),
	}
}

// ListHabits implements domain.RemoteStore.
func (s *Store) ListHabits(ctx context.Context, ownerID uuid.UUID) ([]domain.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var habits []domain.Habit
	for _, h := range s.habits {
		if h.OwnerID == ownerID {
			habits = append(habits, h)
		}
	}
	sort.Slice(habits, func(i, j int) bool { return habits[i].Order < habits[j].Order })
	return habits, nil
}

// InsertHabit implements domain.RemoteStore.
func (s *Store) InsertHabit(ctx context.Context, habit domain.Habit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.habits[habit.ID] = habit
	return nil
}

// SetHabitCompleted implements domain.RemoteStore.
func (s *Store) SetHabitCompleted(ctx context.Context, habitID uuid.UUID, completed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	habit, ok := s.habits[habitID]
	if !ok {
		return domain.ErrHabitNotFound
	}
	habit.IsCompleted = completed
	s.habits[habitID] = habit
	return nil
}

// SetHabitOrder implements domain.RemoteStore.
func (s *Store) SetHabitOrder(ctx context.Context, habitID uuid.UUID, order int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	habit, ok := s.habits[habitID]
	if !ok {
		return domain.ErrHabitNotFound
	}
	habit.Order = order
	s.habits[habitID] = habit
	return nil
}

// ResetCompletion implements domain.RemoteStore.
func (s *Store) ResetCompletion(ctx context.Context, ownerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, habit := range s.habits {
		if habit.OwnerID == ownerID && habit.IsCompleted {
			habit.IsCompleted = false
			s.habits[id] = habit
		}
	}
	return nil
}

// UpsertDailyStat implements domain.RemoteStore. The first write for a
// (owner, date) pair wins; later writes for the same day are dropped.
func (s *Store) UpsertDailyStat(ctx context.Context, stat domain.DailyStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byDay, ok := s.stats[stat.OwnerID]
	if !ok {
		byDay = make(map[string]domain.DailyStat)
		s.stats[stat.OwnerID] = byDay
	}
	key := stat.Date.String()
	if _, exists := byDay[key]; exists {
		return nil
	}
	byDay[key] = stat
	return nil
}

// ListDailyStats implements domain.RemoteStore.
func (s *Store) ListDailyStats(ctx context.Context, ownerID uuid.UUID, limit int) ([]domain.DailyStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats []domain.DailyStat
	for _, stat := range s.stats[ownerID] {
		stats = append(stats, stat)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[j].Date.Before(stats[i].Date) })
	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	return stats, nil
}

// GetLastSeen implements domain.RemoteStore.
func (s *Store) GetLastSeen(ctx context.Context, ownerID uuid.UUID) (*domain.LastSeen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.lastSeen[ownerID]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

// UpsertLastSeen implements domain.RemoteStore.
func (s *Store) UpsertLastSeen(ctx context.Context, record domain.LastSeen) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen[record.OwnerID] = record
	return nil
}
