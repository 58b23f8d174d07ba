// Package stats reads the daily statistics ledger.
package stats

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/peterdesantis17/66-Challenge/internal/domain"
)

// DefaultLimit caps reads when the caller does not ask for a specific window.
const DefaultLimit = 30

// Reader fetches recent daily stats. Read-only; failures are surfaced, never
// retried.
type Reader struct {
	store        domain.RemoteStore
	defaultLimit int
}

// Option customises a Reader.
type Option func(*Reader)

// WithDefaultLimit overrides the window used when a caller passes no limit.
// Non-positive values are ignored.
func WithDefaultLimit(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.defaultLimit = n
		}
	}
}

// NewReader constructs a Reader.
func NewReader(store domain.RemoteStore, opts ...Option) *Reader {
	r := &Reader{store: store, defaultLimit: DefaultLimit}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recent returns up to limit stats ordered by date descending. A non-positive
// limit falls back to the reader's default window.
func (r *Reader) Recent(ctx context.Context, ownerID uuid.UUID, limit int) ([]domain.DailyStat, error) {
	if limit <= 0 {
		limit = r.defaultLimit
	}
	stats, err := r.store.ListDailyStats(ctx, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list daily stats: %v", domain.ErrRemoteUnavailable, err)
	}
	return stats, nil
}
