package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lazypower/nudge/internal/cooldown"
	"github.com/lazypower/nudge/internal/scheduler"
	"github.com/lazypower/nudge/internal/signal"
	"github.com/lazypower/nudge/internal/store"
)

// Deps are the collaborators the API serves from.
type Deps struct {
	DB        *store.DB // optional; health reports db=false without it
	Host      *scheduler.Host
	Signals   *signal.State
	Visits    *signal.VisitLog
	Cooldowns *cooldown.Store
	Gatherer  prometheus.Gatherer // defaults to prometheus.DefaultGatherer

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Server is the nudge HTTP API server.
type Server struct {
	Deps
	router  chi.Router
	version string
}

// New creates a new Server over d.
func New(d Deps, version string) *Server {
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	s := &Server{Deps: d, version: version}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/surfaces", s.handleListSurfaces)
		r.Get("/surfaces/{name}", s.handleGetSurface)
		r.Post("/surfaces/{name}/evaluate", s.handleEvaluate)

		r.Post("/candidates/{id}/dismiss", s.handleDismiss)
		r.Post("/candidates/{id}/act", s.handleAct)

		r.Put("/signals/tasks", s.handlePutTasks)
		r.Put("/signals/events", s.handlePutEvents)
		r.Put("/signals/routines", s.handlePutRoutines)
		r.Put("/signals/condition", s.handlePutCondition)
		r.Put("/signals/integration", s.handlePutIntegration)
		r.Post("/visits", s.handleVisit)

		r.Get("/cooldowns", s.handleCooldowns)
		r.Get("/actions", s.handleActions)
	})

	r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK, dbPath := false, ""
	if s.DB != nil {
		dbOK = s.DB.Ping() == nil
		dbPath = s.DB.Path
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"version":    s.version,
		"session_id": s.Host.SessionID,
		"uptime":     s.Host.Uptime().Seconds(),
		"db":         dbOK,
		"db_path":    dbPath,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
