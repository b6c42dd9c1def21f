package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ow-stat-tracker/internal/dashboard"
	"github.com/ow-stat-tracker/internal/kafka"
	"github.com/ow-stat-tracker/internal/overfast"
	"github.com/ow-stat-tracker/internal/stats"
	"github.com/ow-stat-tracker/internal/storage"
	"github.com/ow-stat-tracker/internal/websocket"
)

// SessionCookie carries the browser's session ID
const SessionCookie = "ow_session"

// MinTrendPoints is how many all-heroes snapshots the trend charts need
const MinTrendPoints = 2

// Handlers holds API handler dependencies
type Handlers struct {
	service  *dashboard.Service
	sessions *dashboard.Sessions
	hub      *websocket.Hub
	producer *kafka.Producer
	consumer *kafka.Consumer
}

// NewHandlers creates a new API handlers instance. hub, producer and
// consumer may be nil.
func NewHandlers(service *dashboard.Service, sessions *dashboard.Sessions, hub *websocket.Hub, producer *kafka.Producer, consumer *kafka.Consumer) *Handlers {
	return &Handlers{
		service:  service,
		sessions: sessions,
		hub:      hub,
		producer: producer,
		consumer: consumer,
	}
}

// RegisterRoutes registers API routes
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/session", h.GetSession)
	r.Post("/fetch", h.Fetch)
	r.Post("/snapshots/aggregate", h.SaveAggregate)
	r.Post("/snapshots/view", h.SaveView)
	r.Get("/snapshots", h.GetSnapshots)
	r.Get("/trends", h.GetTrends)
	r.Get("/history/{playerID}", h.GetHistory)
	r.Get("/heroes", h.GetHeroes)
	r.Get("/analytics", h.GetAnalytics)
	r.Get("/status", h.GetStatus)
}

// SessionID returns the caller's session ID, creating a session and
// setting the cookie when the request has none or an unknown one.
func (h *Handlers) SessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if _, ok := h.sessions.Get(c.Value); ok {
			return c.Value
		}
	}

	sess := h.sessions.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	log.Printf("[session] created %s", sess.ID)
	return sess.ID
}

// sessionView is a session as the UI renders it
type sessionView struct {
	dashboard.Session
	HasData bool `json:"hasData"`
}

func viewOf(sess dashboard.Session) sessionView {
	sess.Table = stats.SortByTimePlayed(sess.Table)
	return sessionView{Session: sess, HasData: sess.HasData()}
}

// GetSession returns the current session state
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	id := h.SessionID(w, r)
	sess, _ := h.sessions.Get(id)
	respondJSON(w, viewOf(sess))
}

// Fetch runs a lookup for the session
func (h *Handlers) Fetch(w http.ResponseWriter, r *http.Request) {
	var in dashboard.FetchInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id := h.SessionID(w, r)
	// a closed tab does not abort retries already underway
	ctx := context.WithoutCancel(r.Context())

	sess, _, err := h.sessions.Update(id, func(s dashboard.Session) (dashboard.Session, error) {
		return h.service.Fetch(ctx, s, in)
	})
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, viewOf(sess))
}

// SaveAggregate appends the all-heroes row of the current table
func (h *Handlers) SaveAggregate(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, h.service.SaveAggregate)
}

// SaveView appends every row of the current table
func (h *Handlers) SaveView(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, h.service.SaveView)
}

func (h *Handlers) save(w http.ResponseWriter, r *http.Request, fn func(context.Context, dashboard.Session) (dashboard.SaveResult, error)) {
	id := h.SessionID(w, r)

	var result dashboard.SaveResult
	_, _, err := h.sessions.Update(id, func(s dashboard.Session) (dashboard.Session, error) {
		var err error
		result, err = fn(r.Context(), s)
		return s, err
	})
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, result)
}

// GetSnapshots returns every saved snapshot, newest first
func (h *Handlers) GetSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.service.Snapshots(r.Context())
	if err != nil {
		log.Printf("Error loading snapshots: %v", err)
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, snaps)
}

// GetTrends returns the all-heroes trend points, optionally for ?player=
func (h *Handlers) GetTrends(w http.ResponseWriter, r *http.Request) {
	points, err := h.service.Trend(r.Context(), r.URL.Query().Get("player"))
	if err != nil {
		log.Printf("Error loading trends: %v", err)
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, map[string]interface{}{
		"points":    points,
		"enough":    len(points) >= MinTrendPoints,
		"minPoints": MinTrendPoints,
	})
}

// GetHistory returns mirrored snapshots for one player and ?hero=
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	playerID := chi.URLParam(r, "playerID")
	if playerID == "" {
		respondError(w, http.StatusBadRequest, "Player ID required")
		return
	}

	rows, err := h.service.History(r.Context(), playerID, r.URL.Query().Get("hero"))
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, rows)
}

// GetHeroes returns the hero keys offered by the filter input
func (h *Handlers) GetHeroes(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]interface{}{
		"heroes":    stats.Heroes,
		"gamemodes": dashboard.Gamemodes,
		"platforms": dashboard.Platforms,
	})
}

// GetAnalytics returns usage analytics
func (h *Handlers) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"realtime": h.realtime(),
	}

	// Add Kafka metrics if available
	if h.consumer != nil {
		response["kafka"] = map[string]interface{}{
			"mostTrackedPlayer": h.consumer.GetMostTrackedPlayer(),
			"fetchesPerHour":    h.consumer.GetFetchesPerHour(),
			"metrics":           h.consumer.GetMetrics(),
		}
	}

	respondJSON(w, response)
}

// GetStatus returns server status
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := h.realtime()
	status["status"] = "ok"
	respondJSON(w, status)
}

func (h *Handlers) realtime() map[string]interface{} {
	clients := 0
	if h.hub != nil {
		clients = h.hub.ClientCount()
	}
	return map[string]interface{}{
		"sessions":         h.sessions.Len(),
		"websocketClients": clients,
		"kafkaEnabled":     h.producer != nil && h.producer.IsEnabled(),
	}
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, dashboard.ErrCooldown):
		return http.StatusTooManyRequests
	case errors.Is(err, dashboard.ErrNoBattletag),
		errors.Is(err, dashboard.ErrInvalidMode),
		errors.Is(err, dashboard.ErrInvalidPlatform):
		return http.StatusBadRequest
	case errors.Is(err, dashboard.ErrNothingToSave):
		return http.StatusConflict
	case errors.Is(err, dashboard.ErrNoHistory):
		return http.StatusServiceUnavailable
	case errors.Is(err, storage.ErrStoreCorrupt):
		return http.StatusInternalServerError
	case errors.Is(err, overfast.ErrRateLimitExceeded),
		errors.Is(err, overfast.ErrMalformedJSON):
		return http.StatusBadGateway
	}

	var reqErr *overfast.RequestError
	if errors.As(err, &reqErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// respondError writes a JSON error body with the given status
func respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		log.Printf("Error encoding error response: %v", err)
	}
}
