// Package api exposes the small HTTP surface the dashboard process consumes:
// health plus the break-session endpoints backing the client countdown.
// The dashboard UI itself is an external collaborator.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/shoreagents/lifecycle-engine/internal/breaktimer"
	"github.com/shoreagents/lifecycle-engine/internal/domain"
)

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// CacheChecker provides cache health status. Satisfied by *redis.Client.
type CacheChecker interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// Handler routes the engine's HTTP endpoints.
type Handler struct {
	breaks *breaktimer.Controller
	db     HealthChecker
	cache  CacheChecker
}

// NewHandler creates a Handler.
func NewHandler(breaks *breaktimer.Controller) *Handler {
	return &Handler{breaks: breaks}
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

// WithCacheChecker sets the cache health checker for verbose /health responses.
func (h *Handler) WithCacheChecker(cache CacheChecker) *Handler {
	h.cache = cache
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case path == "/breaks/current" && r.Method == http.MethodGet:
		h.currentBreak(w, r)

	case path == "/breaks/start" && r.Method == http.MethodPost:
		h.startBreak(w, r)

	case path == "/breaks/pause" && r.Method == http.MethodPost:
		h.pauseBreak(w, r)

	case path == "/breaks/resume" && r.Method == http.MethodPost:
		h.resumeBreak(w, r)

	case path == "/breaks/refresh" && r.Method == http.MethodPost:
		h.refreshBreak(w, r)

	case path == "/breaks/end" && r.Method == http.MethodPost:
		h.endBreak(w, r)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || (h.db == nil && h.cache == nil) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			resp.Status = "degraded"
			resp.Components["database"] = "unhealthy: " + err.Error()
		} else {
			resp.Components["database"] = "healthy"
		}
	}

	// The cache is best-effort everywhere else, but verbose health still
	// reports it so operators can see a dead cache before the stale windows do.
	if h.cache != nil {
		if err := h.cache.Ping(ctx).Err(); err != nil {
			resp.Status = "degraded"
			resp.Components["cache"] = "unhealthy: " + err.Error()
		} else {
			resp.Components["cache"] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, resp)
}

// BreakSessionResponse is the break-session projection plus the reconciled
// countdown.
type BreakSessionResponse struct {
	Session         domain.BreakSession `json:"session"`
	TimeLeftSeconds int                 `json:"time_left_seconds"`
}

func (h *Handler) currentBreak(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	session, timeLeft, err := h.breaks.Current(r.Context(), userID)
	if err != nil {
		writeBreakError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BreakSessionResponse{Session: session, TimeLeftSeconds: timeLeft})
}

func (h *Handler) startBreak(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	session, err := h.breaks.Start(r.Context(), userID)
	if err != nil {
		writeBreakError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, BreakSessionResponse{
		Session:         session,
		TimeLeftSeconds: session.TimeRemainingSeconds,
	})
}

func (h *Handler) pauseBreak(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	session, err := h.breaks.Pause(r.Context(), userID)
	if err != nil {
		writeBreakError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BreakSessionResponse{
		Session:         session,
		TimeLeftSeconds: session.TimeRemainingSeconds,
	})
}

func (h *Handler) resumeBreak(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	session, err := h.breaks.Resume(r.Context(), userID)
	if err != nil {
		writeBreakError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BreakSessionResponse{
		Session:         session,
		TimeLeftSeconds: session.TimeRemainingSeconds,
	})
}

// refreshBreak re-anchors the countdown of a running session. Clients call it
// on a periodic cadence so a reload never observes a stale remainder.
func (h *Handler) refreshBreak(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	session, err := h.breaks.Refresh(r.Context(), userID)
	if err != nil {
		writeBreakError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BreakSessionResponse{
		Session:         session,
		TimeLeftSeconds: session.TimeRemainingSeconds,
	})
}

func (h *Handler) endBreak(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(w, r)
	if !ok {
		return
	}

	if err := h.breaks.End(r.Context(), userID); err != nil {
		writeBreakError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// userIDParam extracts and validates the user query parameter. Writes the
// error response itself when invalid.
func userIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.URL.Query().Get("user")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing user parameter")
		return uuid.UUID{}, false
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return uuid.UUID{}, false
	}
	return userID, true
}

func writeBreakError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, breaktimer.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "no active break session")
	case errors.Is(err, breaktimer.ErrEmergencyPauseUsed):
		writeError(w, http.StatusConflict, "emergency pause already used")
	case errors.Is(err, breaktimer.ErrNotPaused):
		writeError(w, http.StatusConflict, "break session is not paused")
	default:
		log.Printf("api: break session error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}
