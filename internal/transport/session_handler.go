package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"storefront/internal/middleware"
	"storefront/internal/notify"
	"storefront/internal/orchestrator"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const eventsHeartbeat = 25 * time.Second

// SessionHandler handles session lifecycle and the change event stream
type SessionHandler struct {
	sync   *orchestrator.Orchestrator
	broker *notify.Broker
	logger *zap.Logger

	done     chan struct{}
	stopOnce sync.Once
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(sync *orchestrator.Orchestrator, broker *notify.Broker, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sync: sync, broker: broker, logger: logger, done: make(chan struct{})}
}

// CloseStreams ends every open event stream. Other requests are unaffected.
func (h *SessionHandler) CloseStreams() {
	h.stopOnce.Do(func() { close(h.done) })
}

// RegisterRoutes registers session and event routes
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/session/load", h.Load)
	r.Post("/api/session/logout", h.Logout)
	r.Get("/api/events", h.Events)
}

// Load pulls the cart, wishlist and owned products from the marketplace
func (h *SessionHandler) Load(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.LoadSession(r.Context()); err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "session loaded"})
}

// Logout clears all session state in memory and storage
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.Logout(r.Context()); err != nil {
		respondWithDomainError(w, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Events streams change notifications as server-sent events. The optional
// topic query parameter may be repeated to filter.
func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.RespondWithError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	var topics []notify.Topic
	for _, t := range r.URL.Query()["topic"] {
		topics = append(topics, notify.Topic(t))
	}
	events, cancel := h.broker.Subscribe(16, topics...)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(eventsHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("Failed to encode event", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Topic, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
