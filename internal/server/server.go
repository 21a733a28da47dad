package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/eventpilot/internal/calendar"
	"github.com/dukerupert/eventpilot/internal/handler"
	"github.com/dukerupert/eventpilot/internal/middleware"
	ws "github.com/dukerupert/eventpilot/internal/websocket"
)

// RateLimit configures the limiter applied to mutating routes. A zero
// Requests disables limiting.
type RateLimit struct {
	Limiter  middleware.Limiter
	Requests int
	Window   time.Duration
}

type Server struct {
	hub       *ws.Hub
	userH     *handler.UserHandler
	eventH    *handler.EventHandler
	rateLimit RateLimit
	logger    *slog.Logger
}

func New(svc *calendar.Service, hub *ws.Hub, rl RateLimit, logger *slog.Logger) *Server {
	return &Server{
		hub:       hub,
		userH:     handler.NewUserHandler(svc, logger.With("component", "user")),
		eventH:    handler.NewEventHandler(svc, logger.With("component", "event")),
		rateLimit: rl,
		logger:    logger,
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	// Users
	mux.HandleFunc("GET /api/users", s.userH.List)
	mux.HandleFunc("POST /api/users", s.rateLimitedHandler(s.userH.Create))
	mux.HandleFunc("GET /api/users/{id}", s.userH.Get)
	mux.HandleFunc("PUT /api/users/{id}", s.rateLimitedHandler(s.userH.Update))
	mux.HandleFunc("DELETE /api/users/{id}", s.rateLimitedHandler(s.userH.Delete))

	// Per-user schedule queries
	mux.HandleFunc("GET /api/users/{id}/events", s.eventH.ForUser)
	mux.HandleFunc("GET /api/users/{id}/conflicts", s.eventH.Conflicts)
	mux.HandleFunc("GET /api/users/{id}/calendar.ics", s.eventH.Calendar)

	// Events
	mux.HandleFunc("POST /api/events", s.rateLimitedHandler(s.eventH.CreateBusy))
	mux.HandleFunc("POST /api/meetings", s.rateLimitedHandler(s.eventH.CreateMeeting))
	mux.HandleFunc("GET /api/events/{id}", s.eventH.Get)
	mux.HandleFunc("DELETE /api/events/{id}", s.rateLimitedHandler(s.eventH.Delete))

	mux.HandleFunc("GET /api/free-slots", s.eventH.FreeSlots)

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.RequestLogger(s.logger.With("component", "http")),
	)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	if s.rateLimit.Limiter == nil || s.rateLimit.Requests <= 0 {
		return h
	}
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimit.Limiter, keyFunc, s.rateLimit.Requests, s.rateLimit.Window, s.logger.With("component", "ratelimit"))
	return rl(h).ServeHTTP
}
