// Package cache persists the last-known habit list on disk so the collection
// can render instantly while offline.
package cache

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/peterbourgon/diskv/v3"

	"github.com/peterdesantis17/66-Challenge/internal/domain"
)

// currentSchema tags written blobs. Unknown fields are ignored on read, so the
// schema number only moves for incompatible layout changes.
const currentSchema = 1

type envelope struct {
	Schema int            `json:"schema"`
	Habits []domain.Habit `json:"habits"`
}

// Store is a diskv-backed habit snapshot cache keyed by owner id.
type Store struct {
	d *diskv.Diskv
}

// New creates a Store rooted at basePath. The directory is created lazily on
// first write.
func New(basePath string) *Store {
	return &Store{d: diskv.New(diskv.Options{
		BasePath:     basePath,
		CacheSizeMax: 1024 * 1024, // 1MB
	})}
}

// Load returns the cached habit list for the owner. A missing, corrupt, or
// unreadable blob yields an empty list, never an error: the cache is a
// convenience copy and the next successful remote fetch rewrites it.
func (s *Store) Load(ownerID uuid.UUID) []domain.Habit {
	raw, err := s.d.Read(ownerID.String())
	if err != nil {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil
	}
	return env.Habits
}

// Save replaces the owner's cached habit list.
func (s *Store) Save(ownerID uuid.UUID, habits []domain.Habit) error {
	if habits == nil {
		habits = []domain.Habit{}
	}
	raw, err := json.Marshal(envelope{Schema: currentSchema, Habits: habits})
	if err != nil {
		return err
	}
	return s.d.Write(ownerID.String(), raw)
}
