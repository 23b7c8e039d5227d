// internal/handlers/api_server.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/magyk-ai/mvow/internal/hub"
	"github.com/magyk-ai/mvow/internal/middleware"
	"github.com/sirupsen/logrus"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the dependencies of the HTTP and WebSocket handlers.
type Server struct {
	Lobbies Lobbies
	Hub     *hub.Hub
	Store   Pinger
	Logger  logrus.FieldLogger

	// OriginPatterns are the host patterns accepted on the WebSocket handshake.
	OriginPatterns []string
	// CORSOrigins are the origins allowed by the CORS middleware.
	CORSOrigins []string

	Now func() time.Time
}

// Router builds the chi router serving /health and /ws.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.LogMiddleware(s.Logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.HealthHandler)
	r.Get("/ws", s.WSHandler)
	return r
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// HealthHandler reports liveness and whether Redis answers a ping.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Timestamp: s.now().UnixMilli()}
	code := http.StatusOK
	if err := s.Store.Ping(ctx); err != nil {
		s.Logger.WithError(err).Warn("Health check: redis unreachable")
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
