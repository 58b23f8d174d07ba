// Package api exposes HTTP handlers for the habit sync service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/peterdesantis17/66-Challenge/internal/auth"
	"github.com/peterdesantis17/66-Challenge/internal/domain"
	"github.com/peterdesantis17/66-Challenge/internal/habits"
	"github.com/peterdesantis17/66-Challenge/internal/reconcile"
	"github.com/peterdesantis17/66-Challenge/internal/stats"
)

// Handler coordinates HTTP requests with the collection manager, the
// reconciler, and the stats reader.
type Handler struct {
	habits     *habits.Manager
	reconciler *reconcile.Reconciler
	stats      *stats.Reader
}

// NewHandler builds a Handler.
func NewHandler(manager *habits.Manager, reconciler *reconcile.Reconciler, reader *stats.Reader) *Handler {
	return &Handler{habits: manager, reconciler: reconciler, stats: reader}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/habits", h.habitsCollection)
	mux.HandleFunc("/v1/habits/order", h.reorderHabits)
	mux.HandleFunc("/v1/habits/", h.habitByID)
	mux.HandleFunc("/v1/stats", h.listStats)
	mux.HandleFunc("/v1/sync", h.sync)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) habitsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listHabits(w, r)
	case http.MethodPost:
		h.addHabit(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) listHabits(w http.ResponseWriter, r *http.Request) {
	ownerID, claims, ok := h.owner(w, r)
	if !ok {
		return
	}
	if !claims.HasScope(auth.ScopeHabitsRead) && !claims.HasScope(auth.ScopeHabitsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope habits:read required")
		return
	}

	list, err := h.habits.FetchAll(r.Context(), ownerID)
	if err != nil {
		if errors.Is(err, domain.ErrRemoteUnavailable) {
			// Stale data shown, retry available: serve the last-known-good
			// snapshot instead of failing the render.
			writeJSON(w, http.StatusOK, ListHabitsResponse{
				Items: toHabitViews(h.habits.Published(ownerID)),
				Stale: true,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ListHabitsResponse{Items: toHabitViews(list)})
}

func (h *Handler) addHabit(w http.ResponseWriter, r *http.Request) {
	ownerID, claims, ok := h.owner(w, r)
	if !ok {
		return
	}
	if !claims.HasScope(auth.ScopeHabitsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope habits:write required")
		return
	}

	var req AddHabitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	habit, err := h.habits.Add(r.Context(), ownerID, req.Title)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toHabitView(habit))
}

func (h *Handler) habitByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/habits/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing habit id")
		return
	}

	switch {
	case r.Method == http.MethodPost && action == "toggle":
		h.toggleHabit(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) toggleHabit(w http.ResponseWriter, r *http.Request, rawID string) {
	ownerID, claims, ok := h.owner(w, r)
	if !ok {
		return
	}
	if !claims.HasScope(auth.ScopeHabitsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope habits:write required")
		return
	}

	habitID, err := uuid.Parse(rawID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "malformed habit id")
		return
	}

	habit, err := h.habits.Toggle(r.Context(), ownerID, habitID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHabitView(habit))
}

func (h *Handler) reorderHabits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	ownerID, claims, ok := h.owner(w, r)
	if !ok {
		return
	}
	if !claims.HasScope(auth.ScopeHabitsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope habits:write required")
		return
	}

	var req ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	err := h.habits.Reorder(r.Context(), ownerID, req.IDs)
	resp := ReorderResponse{Items: toHabitViews(h.habits.Published(ownerID))}
	if err != nil {
		var partial *habits.ReorderFailure
		if errors.As(err, &partial) {
			// The local order is already applied; report what still needs a
			// remote retry instead of failing the whole request.
			resp.FailedIDs = partial.FailedIDs
			writeJSON(w, http.StatusOK, resp)
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	ownerID, claims, ok := h.owner(w, r)
	if !ok {
		return
	}
	if !claims.HasScope(auth.ScopeHabitsRead) && !claims.HasScope(auth.ScopeHabitsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope habits:read required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := h.stats.Recent(r.Context(), ownerID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]StatView, 0, len(records))
	for _, record := range records {
		items = append(items, toStatView(record))
	}
	writeJSON(w, http.StatusOK, ListStatsResponse{Items: items})
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	ownerID, claims, ok := h.owner(w, r)
	if !ok {
		return
	}
	if !claims.HasScope(auth.ScopeHabitsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope habits:write required")
		return
	}

	result, err := h.reconciler.Run(r.Context(), ownerID)
	if err != nil {
		var partial *reconcile.PartialFailure
		if errors.As(err, &partial) {
			// The anchor advanced; the run completed in a degraded way and
			// will not rerun today. Report instead of erroring.
			writeJSON(w, http.StatusOK, toSyncResponse(result, true))
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSyncResponse(result, false))
}

// owner resolves the authenticated owner id, writing the error response when
// identity is missing or malformed.
func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (uuid.UUID, *auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return uuid.Nil, nil, false
	}
	ownerID, err := uuid.Parse(claims.Subject)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "session_lost", "token subject is not a valid owner id")
		return uuid.Nil, nil, false
	}
	return ownerID, claims, true
}

// AddHabitRequest is the payload for POST /v1/habits.
type AddHabitRequest struct {
	Title string `json:"title"`
}

// ReorderRequest is the payload for PUT /v1/habits/order. IDs lists every
// habit in its new display order.
type ReorderRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

// HabitView exposes a habit over the wire.
type HabitView struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	IsCompleted bool      `json:"is_completed"`
	CreatedAt   time.Time `json:"created_at"`
	Order       int       `json:"order"`
}

// ListHabitsResponse packages list results. Stale marks a cached fallback
// served because the remote store was unreachable.
type ListHabitsResponse struct {
	Items []HabitView `json:"items"`
	Stale bool        `json:"stale,omitempty"`
}

// ReorderResponse returns the collection in its new order plus any ids whose
// position write still needs a retry.
type ReorderResponse struct {
	Items     []HabitView `json:"items"`
	FailedIDs []uuid.UUID `json:"failed_ids,omitempty"`
}

// StatView exposes one daily stat record.
type StatView struct {
	ID                   uuid.UUID  `json:"id"`
	Date                 domain.Day `json:"date"`
	CompletionPercentage float64    `json:"completion_percentage"`
	HabitsCompleted      int        `json:"habits_completed"`
	TotalHabits          int        `json:"total_habits"`
	CreatedAt            time.Time  `json:"created_at"`
}

// ListStatsResponse packages stat reads.
type ListStatsResponse struct {
	Items []StatView `json:"items"`
}

// SyncResponse summarises a reconciliation run.
type SyncResponse struct {
	Today          domain.Day   `json:"today"`
	DaysBackfilled int          `json:"days_backfilled"`
	HabitsReset    bool         `json:"habits_reset"`
	FailedDays     []domain.Day `json:"failed_days,omitempty"`
	ResetFailed    bool         `json:"reset_failed,omitempty"`
	Partial        bool         `json:"partial"`
}

func toSyncResponse(result reconcile.Result, partial bool) SyncResponse {
	return SyncResponse{
		Today:          result.Today,
		DaysBackfilled: result.BackfilledDays,
		HabitsReset:    result.HabitsReset,
		FailedDays:     result.FailedDays,
		ResetFailed:    result.ResetFailed,
		Partial:        partial,
	}
}

func toHabitView(habit domain.Habit) HabitView {
	return HabitView{
		ID:          habit.ID,
		Title:       habit.Title,
		IsCompleted: habit.IsCompleted,
		CreatedAt:   habit.CreatedAt,
		Order:       habit.Order,
	}
}

func toHabitViews(habits []domain.Habit) []HabitView {
	views := make([]HabitView, 0, len(habits))
	for _, habit := range habits {
		views = append(views, toHabitView(habit))
	}
	return views
}

func toStatView(stat domain.DailyStat) StatView {
	return StatView{
		ID:                   stat.ID,
		Date:                 stat.Date,
		CompletionPercentage: stat.CompletionPercentage,
		HabitsCompleted:      stat.HabitsCompleted,
		TotalHabits:          stat.TotalHabits,
		CreatedAt:            stat.CreatedAt,
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrHabitNotFound):
		writeError(w, http.StatusNotFound, "not_found", "habit not found")
	case errors.Is(err, domain.ErrSessionLost):
		writeError(w, http.StatusUnauthorized, "session_lost", err.Error())
	case errors.Is(err, domain.ErrRemoteUnavailable):
		writeError(w, http.StatusServiceUnavailable, "remote_unavailable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
