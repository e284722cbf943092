// It defines the API server, sets up the routes (endpoints)
// using chi, and links them to the handler functions.

package api

import (
	"net/http"
	"time"

	"github.com/EmmettHwang/ssirn/internal/core"
	"github.com/EmmettHwang/ssirn/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Server holds the dependencies for our API.
type Server struct {
	app    *core.App
	logger *zap.Logger
}

// NewServer creates a new Server instance.
func NewServer(app *core.App) *Server {
	return &Server{app: app, logger: app.Logger().Named("api")}
}

// Router sets up and returns the main router for the application.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.RequestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.With(middleware.Timeout(30*time.Second)).Get("/health", s.handleHealth)
		r.Get("/cameras", s.handleListCameras)

		r.Route("/jobs", func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Post("/convert", s.handleStartConvert)
			r.Post("/resize", s.handleStartResize)
			r.Post("/resize-all", s.handleStartResizeAll)
			r.Post("/convert-range", s.handleStartConvertRange)

			r.Get("/", s.handleListJobs)
			r.Get("/running", s.handleListRunningJobs)
			r.Get("/history", s.handleJobHistory)
			r.Post("/sweep", s.handleSweepJobs)
			r.Get("/{jobID}", s.handleGetJob)
		})
	})

	// WebSocket route
	r.Get("/ws/jobs", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(s.app.WsHub(), w, r)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if db := s.app.DB(); db != nil {
		if err := db.PingContext(r.Context()); err != nil {
			RespondWithError(w, http.StatusServiceUnavailable, "Database connection failed")
			return
		}
	}
	RespondWithJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"version":      s.app.Version(),
		"running_jobs": len(s.app.Registry().ListRunning()),
	})
}

func (s *Server) handleListCameras(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.app.Cameras())
}
