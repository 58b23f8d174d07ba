// Package reconcile implements the day-rollover engine. On each activation it
// compares today against the owner's last-seen anchor, writes one daily stat
// per elapsed calendar day, resets completion flags exactly once, and only
// then advances the anchor. Because the anchor moves last and stat writes are
// idempotent per (owner, date), a crash or partial failure mid-run is repaired
// by simply running again.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/peterdesantis17/66-Challenge/internal/domain"
	"github.com/peterdesantis17/66-Challenge/internal/events"
	"github.com/peterdesantis17/66-Challenge/internal/habits"
	"github.com/peterdesantis17/66-Challenge/internal/observability"
)

// Reconciler runs the rollover procedure. Runs for the same owner are
// single-flighted: a second activation while one is in flight shares its
// result instead of interleaving.
type Reconciler struct {
	store     domain.RemoteStore
	habits    *habits.Manager
	publisher *events.Publisher
	now       func() time.Time
	logger    *log.Logger
	group     singleflight.Group
}

// Option customises a Reconciler.
type Option func(*Reconciler)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithLogger overrides the default stderr logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// WithPublisher attaches an event publisher. Nil is fine; events are then
// dropped.
func WithPublisher(p *events.Publisher) Option {
	return func(r *Reconciler) { r.publisher = p }
}

// New constructs a Reconciler.
func New(store domain.RemoteStore, manager *habits.Manager, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:  store,
		habits: manager,
		now:    time.Now,
		logger: log.New(os.Stderr, "reconcile: ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result summarises one reconciliation run.
type Result struct {
	Today          domain.Day
	BackfilledDays int
	HabitsReset    bool
	FailedDays     []domain.Day
	ResetFailed    bool
}

// PartialFailure reports a run whose anchor advanced even though one or more
// independent writes failed. The listed days have no stat row and will not be
// revisited by a later run, so callers should surface them for observability.
type PartialFailure struct {
	FailedDays  []domain.Day
	ResetFailed bool
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("reconciliation advanced with %d failed stat write(s), reset failed: %t",
		len(e.FailedDays), e.ResetFailed)
}

func (e *PartialFailure) Unwrap() error { return domain.ErrRemoteUnavailable }

// Run executes one reconciliation for the owner. Concurrent calls for the
// same owner coalesce into a single run.
func (r *Reconciler) Run(ctx context.Context, ownerID uuid.UUID) (Result, error) {
	if ownerID == uuid.Nil {
		return Result{}, domain.ErrSessionLost
	}

	value, err, _ := r.group.Do(ownerID.String(), func() (interface{}, error) {
		return r.run(ctx, ownerID)
	})
	result, _ := value.(Result)
	return result, err
}

func (r *Reconciler) run(ctx context.Context, ownerID uuid.UUID) (Result, error) {
	today := domain.DayOf(r.now())
	result := Result{Today: today}

	anchor, err := r.store.GetLastSeen(ctx, ownerID)
	if err != nil {
		observability.RecordReconcileRun(observability.OutcomeFailed, r.now())
		return result, fmt.Errorf("%w: fetch last seen: %v", domain.ErrRemoteUnavailable, err)
	}

	// First-ever run: nothing elapsed, just plant the anchor.
	lastSeen := today
	if anchor != nil {
		lastSeen = anchor.LastSeenDay
	}

	if lastSeen.Before(today) {
		if err := r.backfill(ctx, ownerID, lastSeen, today, &result); err != nil {
			observability.RecordReconcileRun(observability.OutcomeFailed, r.now())
			return result, err
		}
	}

	// The anchor moves only after all gap processing above. It moves even when
	// some writes failed, so a repeated activation on the same day stays a
	// no-op; if this upsert itself fails the anchor is untouched and the next
	// run reprocesses the whole gap, which the stat upserts tolerate.
	if err := r.store.UpsertLastSeen(ctx, domain.LastSeen{OwnerID: ownerID, LastSeenDay: today}); err != nil {
		observability.RecordRemoteWriteFailure()
		observability.RecordReconcileRun(observability.OutcomeFailed, r.now())
		return result, fmt.Errorf("%w: advance anchor: %v", domain.ErrRemoteUnavailable, err)
	}

	observability.RecordBackfilledDays(result.BackfilledDays)
	r.publishRollover(ctx, ownerID, lastSeen, result)

	if len(result.FailedDays) > 0 || result.ResetFailed {
		observability.RecordReconcileRun(observability.OutcomePartial, r.now())
		return result, &PartialFailure{FailedDays: result.FailedDays, ResetFailed: result.ResetFailed}
	}
	observability.RecordReconcileRun(observability.OutcomeSuccess, r.now())
	return result, nil
}

// backfill writes one stat per day in [lastSeen, today) and resets completion
// flags once. Each write is independent: a failure is logged, counted, and the
// loop moves on.
func (r *Reconciler) backfill(ctx context.Context, ownerID uuid.UUID, lastSeen, today domain.Day, result *Result) error {
	list := r.habits.Published(ownerID)
	total := len(list)
	completed := 0
	for _, h := range list {
		if h.IsCompleted {
			completed++
		}
	}

	for day := lastSeen; day.Before(today); day = day.Next() {
		// Sign-out cancels the context; stop writing with the stale identity.
		// The anchor has not moved, so the next run redoes the whole gap.
		if ctx.Err() != nil {
			return fmt.Errorf("%w: run canceled mid-backfill", domain.ErrSessionLost)
		}

		stat := domain.DailyStat{
			ID:          uuid.New(),
			OwnerID:     ownerID,
			Date:        day,
			TotalHabits: total,
			CreatedAt:   r.now().UTC(),
		}
		// Only the boundary day was (partially) observed; every later day the
		// owner never opened the app, so it scores zero.
		if day.Equal(lastSeen) {
			stat.HabitsCompleted = completed
		}
		stat.CompletionPercentage = domain.CompletionPercentage(stat.HabitsCompleted, stat.TotalHabits)

		if err := r.store.UpsertDailyStat(ctx, stat); err != nil {
			r.logger.Printf("owner %s: stat write for %s failed: %v", ownerID, day, err)
			observability.RecordRemoteWriteFailure()
			result.FailedDays = append(result.FailedDays, day)
			continue
		}
		result.BackfilledDays++
	}

	if ctx.Err() != nil {
		return fmt.Errorf("%w: run canceled before reset", domain.ErrSessionLost)
	}

	if err := r.habits.ResetCompletion(ctx, ownerID); err != nil {
		r.logger.Printf("owner %s: completion reset failed: %v", ownerID, err)
		observability.RecordRemoteWriteFailure()
		result.ResetFailed = true
	} else {
		result.HabitsReset = true
	}
	return nil
}

// publishRollover emits a day-rollover event when at least one day elapsed.
// Publishing is fire-and-forget; a broker outage never fails the run.
func (r *Reconciler) publishRollover(ctx context.Context, ownerID uuid.UUID, lastSeen domain.Day, result Result) {
	if r.publisher == nil || !lastSeen.Before(result.Today) {
		return
	}
	err := r.publisher.PublishDayRolledOver(ctx, events.DayRolledOver{
		OwnerID:        ownerID,
		Today:          result.Today,
		DaysBackfilled: result.BackfilledDays,
		FailedWrites:   len(result.FailedDays),
		HabitsReset:    result.HabitsReset,
		OccurredAt:     r.now().UTC(),
	})
	if err != nil {
		r.logger.Printf("owner %s: day rollover event not published: %v", ownerID, err)
	}
}
