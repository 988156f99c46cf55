package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/fingest/internal/app"
	"github.com/dgallion1/fingest/internal/config"
	"github.com/dgallion1/fingest/internal/pipeline"
	"github.com/dgallion1/fingest/internal/store"
)

// Server is the HTTP API server for fingest.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	app          *app.App
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, a *app.App, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		app:          a,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) store() *store.Store { return s.orchestrator.Store() }

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/ingest", s.handleIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)
		r.Post("/api/ingest/batch", s.handleBatchIngest)
		r.Get("/api/stats/llm", s.handleLLMStats)

		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/documents/{docID}", s.handleGetDocument)
		r.Get("/api/documents/{docID}/report", s.handleGetReport)
		r.Delete("/api/documents/{docID}", s.handleDeleteDocument)

		r.Post("/api/context", s.handleContext)
		r.Post("/api/search", s.handleSearch)
		r.Post("/api/ask", s.handleAsk)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
