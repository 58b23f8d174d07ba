package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/peterdesantis17/66-Challenge/internal/auth"
	"github.com/peterdesantis17/66-Challenge/internal/cache"
	"github.com/peterdesantis17/66-Challenge/internal/domain"
	"github.com/peterdesantis17/66-Challenge/internal/habits"
	"github.com/peterdesantis17/66-Challenge/internal/persistence/memory"
	"github.com/peterdesantis17/66-Challenge/internal/reconcile"
	"github.com/peterdesantis17/66-Challenge/internal/stats"
)

// flakyStore fails reads while down is true.
type flakyStore struct {
	domain.RemoteStore
	down bool
}

func (s *flakyStore) ListHabits(ctx context.Context, ownerID uuid.UUID) ([]domain.Habit, error) {
	if s.down {
		return nil, errors.New("connection refused")
	}
	return s.RemoteStore.ListHabits(ctx, ownerID)
}

type env struct {
	handler *Handler
	store   *flakyStore
	manager *habits.Manager
	ownerID uuid.UUID
	now     time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		store:   &flakyStore{RemoteStore: memory.NewStore()},
		ownerID: uuid.New(),
		now:     time.Date(2025, time.June, 5, 9, 30, 0, 0, time.UTC),
	}
	clock := func() time.Time { return e.now }
	e.manager = habits.NewManager(e.store, cache.New(t.TempDir()), habits.WithClock(clock))
	reconciler := reconcile.New(e.store, e.manager, reconcile.WithClock(clock))
	e.handler = NewHandler(e.manager, reconciler, stats.NewReader(e.store))
	return e
}

func (e *env) request(method, target string, body []byte, scopes ...string) *http.Request {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)

	scopeSet := make(map[string]struct{}, len(scopes))
	for _, scope := range scopes {
		scopeSet[scope] = struct{}{}
	}
	claims := &auth.Claims{
		Subject:   e.ownerID.String(),
		Scopes:    scopeSet,
		ExpiresAt: e.now.Add(time.Hour),
	}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func (e *env) serve(req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	e.handler.RegisterRoutes(mux)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestAddThenListHabits(t *testing.T) {
	e := newEnv(t)

	body, _ := json.Marshal(AddHabitRequest{Title: "drink water"})
	rr := e.serve(e.request(http.MethodPost, "/v1/habits", body, auth.ScopeHabitsWrite))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}

	var created HabitView
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.Order != 1 {
		t.Fatalf("expected order 1 got %d", created.Order)
	}

	rr = e.serve(e.request(http.MethodGet, "/v1/habits", nil, auth.ScopeHabitsRead))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	var list ListHabitsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].Title != "drink water" {
		t.Fatalf("unexpected list %+v", list)
	}
	if list.Stale {
		t.Fatal("fresh remote fetch must not be marked stale")
	}
}

func TestAddHabitRejectsEmptyTitle(t *testing.T) {
	e := newEnv(t)

	body, _ := json.Marshal(AddHabitRequest{Title: "   "})
	rr := e.serve(e.request(http.MethodPost, "/v1/habits", body, auth.ScopeHabitsWrite))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestListHabitsServesCachedSnapshotWhenRemoteDown(t *testing.T) {
	e := newEnv(t)

	body, _ := json.Marshal(AddHabitRequest{Title: "stretch"})
	if rr := e.serve(e.request(http.MethodPost, "/v1/habits", body, auth.ScopeHabitsWrite)); rr.Code != http.StatusCreated {
		t.Fatalf("seed failed: %d", rr.Code)
	}

	e.store.down = true
	rr := e.serve(e.request(http.MethodGet, "/v1/habits", nil, auth.ScopeHabitsRead))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var list ListHabitsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !list.Stale {
		t.Fatal("expected stale flag on cached fallback")
	}
	if len(list.Items) != 1 || list.Items[0].Title != "stretch" {
		t.Fatalf("unexpected cached items %+v", list.Items)
	}
}

func TestToggleHabit(t *testing.T) {
	e := newEnv(t)

	body, _ := json.Marshal(AddHabitRequest{Title: "meditate"})
	rr := e.serve(e.request(http.MethodPost, "/v1/habits", body, auth.ScopeHabitsWrite))
	var created HabitView
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	rr = e.serve(e.request(http.MethodPost, "/v1/habits/"+created.ID.String()+"/toggle", nil, auth.ScopeHabitsWrite))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}
	var toggled HabitView
	if err := json.Unmarshal(rr.Body.Bytes(), &toggled); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !toggled.IsCompleted {
		t.Fatal("expected habit to be completed after toggle")
	}

	rr = e.serve(e.request(http.MethodPost, "/v1/habits/"+uuid.NewString()+"/toggle", nil, auth.ScopeHabitsWrite))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

func TestReorderHabits(t *testing.T) {
	e := newEnv(t)

	ids := make([]uuid.UUID, 0, 3)
	for _, title := range []string{"a", "b", "c"} {
		body, _ := json.Marshal(AddHabitRequest{Title: title})
		rr := e.serve(e.request(http.MethodPost, "/v1/habits", body, auth.ScopeHabitsWrite))
		var created HabitView
		if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		ids = append(ids, created.ID)
	}

	body, _ := json.Marshal(ReorderRequest{IDs: []uuid.UUID{ids[1], ids[2], ids[0]}})
	rr := e.serve(e.request(http.MethodPut, "/v1/habits/order", body, auth.ScopeHabitsWrite))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp ReorderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.FailedIDs) != 0 {
		t.Fatalf("unexpected failed ids %v", resp.FailedIDs)
	}
	if resp.Items[0].ID != ids[1] || resp.Items[2].ID != ids[0] {
		t.Fatalf("unexpected order %+v", resp.Items)
	}
	if resp.Items[0].Order != 1 || resp.Items[2].Order != 3 {
		t.Fatalf("orders not dense 1-based: %+v", resp.Items)
	}
}

func TestSyncBackfillsGapAndReportsSummary(t *testing.T) {
	e := newEnv(t)

	// Two habits, one completed, last seen three days ago.
	for _, title := range []string{"a", "b"} {
		body, _ := json.Marshal(AddHabitRequest{Title: title})
		e.serve(e.request(http.MethodPost, "/v1/habits", body, auth.ScopeHabitsWrite))
	}
	var list ListHabitsResponse
	rr := e.serve(e.request(http.MethodGet, "/v1/habits", nil, auth.ScopeHabitsRead))
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	e.serve(e.request(http.MethodPost, "/v1/habits/"+list.Items[0].ID.String()+"/toggle", nil, auth.ScopeHabitsWrite))

	today := domain.DayOf(e.now)
	if err := e.store.RemoteStore.UpsertLastSeen(context.Background(),
		domain.LastSeen{OwnerID: e.ownerID, LastSeenDay: today.AddDays(-3)}); err != nil {
		t.Fatalf("seed anchor: %v", err)
	}

	rr = e.serve(e.request(http.MethodPost, "/v1/sync", nil, auth.ScopeHabitsWrite))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var sync SyncResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &sync); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if sync.DaysBackfilled != 3 {
		t.Fatalf("expected 3 backfilled days got %d", sync.DaysBackfilled)
	}
	if !sync.HabitsReset || sync.Partial {
		t.Fatalf("unexpected sync summary %+v", sync)
	}

	rr = e.serve(e.request(http.MethodGet, "/v1/stats", nil, auth.ScopeHabitsRead))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	var statsResp ListStatsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &statsResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(statsResp.Items) != 3 {
		t.Fatalf("expected 3 stats got %d", len(statsResp.Items))
	}
	// Newest first; the oldest entry is the boundary day at 50%.
	boundary := statsResp.Items[len(statsResp.Items)-1]
	if boundary.CompletionPercentage != 50 {
		t.Fatalf("expected boundary day at 50%% got %f", boundary.CompletionPercentage)
	}

	// Habits were reset for the new day.
	rr = e.serve(e.request(http.MethodGet, "/v1/habits", nil, auth.ScopeHabitsRead))
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	for _, item := range list.Items {
		if item.IsCompleted {
			t.Fatalf("habit %s still completed after rollover", item.ID)
		}
	}
}

func TestStatsRejectsMalformedLimit(t *testing.T) {
	e := newEnv(t)
	rr := e.serve(e.request(http.MethodGet, "/v1/stats?limit=bananas", nil, auth.ScopeHabitsRead))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestMissingClaimsRejected(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/habits", nil)
	rr := e.serve(req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestNonUUIDSubjectIsSessionLost(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/habits", nil)
	claims := &auth.Claims{Subject: "not-an-owner", Scopes: map[string]struct{}{auth.ScopeHabitsRead: {}}}
	req = req.WithContext(auth.WithClaims(req.Context(), claims))
	rr := e.serve(req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestWriteScopeRequiredForMutations(t *testing.T) {
	e := newEnv(t)
	body, _ := json.Marshal(AddHabitRequest{Title: "x"})
	rr := e.serve(e.request(http.MethodPost, "/v1/habits", body, auth.ScopeHabitsRead))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}

	rr = e.serve(e.request(http.MethodPost, "/v1/sync", nil, auth.ScopeHabitsRead))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}
}
