// Package habits owns the in-memory habit collection per owner and keeps it
// consistent with the remote store and the on-disk cache. Mutations go remote
// first; the published list and the cache only change after the remote store
// acknowledged the write, so a crash never leaves the cache ahead of the
// remote truth.
package habits

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/peterdesantis17/66-Challenge/internal/cache"
	"github.com/peterdesantis17/66-Challenge/internal/domain"
)

// Manager coordinates habit collection state for all active owners.
type Manager struct {
	store domain.RemoteStore
	cache *cache.Store
	now   func() time.Time

	mu     sync.RWMutex
	lists  map[uuid.UUID][]domain.Habit
	loaded map[uuid.UUID]bool
}

// Option customises a Manager.
type Option func(*Manager)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager constructs a Manager.
func NewManager(store domain.RemoteStore, cacheStore *cache.Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		cache:  cacheStore,
		now:    time.Now,
		lists:  make(map[uuid.UUID][]domain.Habit),
		loaded: make(map[uuid.UUID]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Published returns a copy of the owner's current list. Before the first
// successful remote fetch this is the cached snapshot, possibly stale.
func (m *Manager) Published(ownerID uuid.UUID) []domain.Habit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyHabits(m.listLocked(ownerID))
}

// listLocked returns the live slice for the owner, loading the cache blob on
// first touch. Callers must hold mu.
func (m *Manager) listLocked(ownerID uuid.UUID) []domain.Habit {
	if !m.loaded[ownerID] {
		m.lists[ownerID] = m.cache.Load(ownerID)
		m.loaded[ownerID] = true
	}
	return m.lists[ownerID]
}

// publishLocked replaces the owner's list and mirrors it to the cache. The
// cache write is best-effort: the remote store already holds the truth and the
// next save retries it.
func (m *Manager) publishLocked(ownerID uuid.UUID, habits []domain.Habit) {
	m.lists[ownerID] = habits
	m.loaded[ownerID] = true
	_ = m.cache.Save(ownerID, habits)
}

// FetchAll replaces the published list with the remote state. On failure the
// previously published (cached) list stays authoritative and the error wraps
// domain.ErrRemoteUnavailable.
func (m *Manager) FetchAll(ctx context.Context, ownerID uuid.UUID) ([]domain.Habit, error) {
	habits, err := m.store.ListHabits(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list habits: %v", domain.ErrRemoteUnavailable, err)
	}

	m.mu.Lock()
	m.publishLocked(ownerID, habits)
	m.mu.Unlock()
	return copyHabits(habits), nil
}

// Add creates a habit at the end of the collection. The new order is
// max(existing)+1, so positions freed by past deletions are never reused.
func (m *Manager) Add(ctx context.Context, ownerID uuid.UUID, title string) (domain.Habit, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Habit{}, fmt.Errorf("%w: title must not be empty", domain.ErrInvalidInput)
	}

	m.mu.Lock()
	current := m.listLocked(ownerID)
	order := 1
	for _, h := range current {
		if h.Order >= order {
			order = h.Order + 1
		}
	}
	m.mu.Unlock()

	habit := domain.Habit{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Title:       title,
		IsCompleted: false,
		CreatedAt:   m.now().UTC(),
		Order:       order,
	}

	if err := m.store.InsertHabit(ctx, habit); err != nil {
		return domain.Habit{}, fmt.Errorf("%w: insert habit: %v", domain.ErrRemoteUnavailable, err)
	}

	m.mu.Lock()
	m.publishLocked(ownerID, append(copyHabits(m.listLocked(ownerID)), habit))
	m.mu.Unlock()
	return habit, nil
}

// Toggle flips a habit's completion flag. Two toggles deliberately invert
// twice; there is no idempotency at this level.
func (m *Manager) Toggle(ctx context.Context, ownerID, habitID uuid.UUID) (domain.Habit, error) {
	m.mu.Lock()
	var (
		target domain.Habit
		found  bool
	)
	for _, h := range m.listLocked(ownerID) {
		if h.ID == habitID {
			target, found = h, true
			break
		}
	}
	m.mu.Unlock()
	if !found {
		return domain.Habit{}, domain.ErrHabitNotFound
	}

	target.IsCompleted = !target.IsCompleted
	if err := m.store.SetHabitCompleted(ctx, target.ID, target.IsCompleted); err != nil {
		return domain.Habit{}, fmt.Errorf("%w: toggle habit: %v", domain.ErrRemoteUnavailable, err)
	}

	m.mu.Lock()
	updated := copyHabits(m.listLocked(ownerID))
	for i := range updated {
		if updated[i].ID == target.ID {
			updated[i] = target
			break
		}
	}
	m.publishLocked(ownerID, updated)
	m.mu.Unlock()
	return target, nil
}

// ReorderFailure reports habits whose new position could not be persisted.
// The local list keeps the requested order; the caller may retry the listed
// ids.
type ReorderFailure struct {
	FailedIDs []uuid.UUID
}

func (e *ReorderFailure) Error() string {
	return fmt.Sprintf("failed to persist order for %d habit(s)", len(e.FailedIDs))
}

func (e *ReorderFailure) Unwrap() error { return domain.ErrRemoteUnavailable }

// Reorder applies the requested id order to the owner's collection. Positions
// become dense and 1-based; only habits whose position actually changed are
// written remotely. The locally reordered list is published even when some of
// those writes fail.
func (m *Manager) Reorder(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) error {
	m.mu.Lock()
	current := m.listLocked(ownerID)
	byID := make(map[uuid.UUID]domain.Habit, len(current))
	for _, h := range current {
		byID[h.ID] = h
	}
	if len(ids) != len(current) {
		m.mu.Unlock()
		return fmt.Errorf("%w: order must list all %d habits", domain.ErrInvalidInput, len(current))
	}

	reordered := make([]domain.Habit, 0, len(ids))
	for _, id := range ids {
		h, ok := byID[id]
		if !ok {
			m.mu.Unlock()
			return fmt.Errorf("%w: unknown habit id %s", domain.ErrInvalidInput, id)
		}
		delete(byID, id)
		reordered = append(reordered, h)
	}

	var changed []int
	for i := range reordered {
		if reordered[i].Order != i+1 {
			reordered[i].Order = i + 1
			changed = append(changed, i)
		}
	}
	m.publishLocked(ownerID, reordered)
	m.mu.Unlock()

	var failed []uuid.UUID
	for _, i := range changed {
		h := reordered[i]
		if err := m.store.SetHabitOrder(ctx, h.ID, h.Order); err != nil {
			failed = append(failed, h.ID)
		}
	}
	if len(failed) > 0 {
		return &ReorderFailure{FailedIDs: failed}
	}
	return nil
}

// ResetCompletion clears every completion flag, remotely first and then in the
// published list and cache. The reconciler calls this once per day rollover.
func (m *Manager) ResetCompletion(ctx context.Context, ownerID uuid.UUID) error {
	if err := m.store.ResetCompletion(ctx, ownerID); err != nil {
		return fmt.Errorf("%w: reset completion: %v", domain.ErrRemoteUnavailable, err)
	}

	m.mu.Lock()
	updated := copyHabits(m.listLocked(ownerID))
	for i := range updated {
		updated[i].IsCompleted = false
	}
	m.publishLocked(ownerID, updated)
	m.mu.Unlock()
	return nil
}

func copyHabits(habits []domain.Habit) []domain.Habit {
	out := make([]domain.Habit, len(habits))
	copy(out, habits)
	return out
}
