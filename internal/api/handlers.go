package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/co-gci/internal/session"
	"github.com/yegors/co-gci/internal/storage/sqlite"
	"github.com/yegors/co-gci/internal/telemetry"
	"github.com/yegors/co-gci/internal/tracks"
	"github.com/yegors/co-gci/pkg/logger"
)

const (
	defaultCallLimit = 50
	maxCallLimit     = 500
)

// Handler serves the status API from read-only views of the running services.
type Handler struct {
	store      *tracks.Store
	ingest     *telemetry.Service
	dispatcher *session.Dispatcher
	calls      *sqlite.CallStorage
	logger     *logger.Logger
	startedAt  time.Time
}

// NewHandler creates a new API handler
func NewHandler(store *tracks.Store, ingest *telemetry.Service, dispatcher *session.Dispatcher, calls *sqlite.CallStorage, log *logger.Logger) *Handler {
	return &Handler{
		store:      store,
		ingest:     ingest,
		dispatcher: dispatcher,
		calls:      calls,
		logger:     log.Named("api-handler"),
		startedAt:  time.Now(),
	}
}

// trackResponse is the wire form of a track, with the side spelled out.
type trackResponse struct {
	tracks.Track
	Side string `json:"side"`
}

func toTrackResponse(t tracks.Track) trackResponse {
	return trackResponse{Track: t, Side: t.Side.String()}
}

// GetAllTracks returns every live track on scope
func (h *Handler) GetAllTracks(w http.ResponseWriter, r *http.Request) {
	snapshot := h.store.Snapshot(time.Now())
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].ID < snapshot[j].ID })

	out := make([]trackResponse, 0, len(snapshot))
	for _, t := range snapshot {
		out = append(out, toTrackResponse(t))
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(out),
		"tracks": out,
	})
}

// GetTrackByID returns a single track by telemetry ID
func (h *Handler) GetTrackByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	track, ok := h.store.Get(time.Now(), id)
	if !ok {
		h.respondError(w, http.StatusNotFound, "track not found")
		return
	}
	h.respondJSON(w, http.StatusOK, toTrackResponse(track))
}

// GetSessions returns the radio sessions currently in flight
func (h *Handler) GetSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.dispatcher.Sessions()
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].StartedAt.Before(sessions[j].StartedAt) })
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

// GetRecentCalls returns the most recent completed exchanges
func (h *Handler) GetRecentCalls(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"))
	records, err := h.calls.GetRecentCalls(limit)
	if err != nil {
		h.logger.Error("Failed to query recent calls", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to query calls")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(records),
		"calls": records,
	})
}

// GetCallsByPilot returns recent exchanges for one pilot
func (h *Handler) GetCallsByPilot(w http.ResponseWriter, r *http.Request) {
	pilot := chi.URLParam(r, "pilot")
	limit := parseLimit(r.URL.Query().Get("limit"))
	records, err := h.calls.GetCallsByPilot(pilot, limit)
	if err != nil {
		h.logger.Error("Failed to query calls by pilot",
			logger.String("pilot", pilot),
			logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to query calls")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"pilot": pilot,
		"count": len(records),
		"calls": records,
	})
}

// GetHealth returns process health and ingest counters
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
		"tracks":    h.store.Len(),
		"sessions":  len(h.dispatcher.Sessions()),
		"telemetry": h.ingest.Stats(),
	})
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultCallLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultCallLimit
	}
	if limit > maxCallLimit {
		return maxCallLimit
	}
	return limit
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", logger.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
