// Package server exposes the anonymization engine over HTTP: document
// upload, dictionary management, and a live event stream.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/albertcande/docx-anonymizer/internal/config"
	"github.com/albertcande/docx-anonymizer/internal/dictionary"
	"github.com/albertcande/docx-anonymizer/internal/events"
	"github.com/albertcande/docx-anonymizer/internal/logger"
	"github.com/albertcande/docx-anonymizer/internal/redact"
)

// Server represents the anonymizer HTTP server
type Server struct {
	config  *config.Config
	logger  *logger.Logger
	store   *dictionary.Store
	session *redact.Session
	router  *mux.Router
	server  *http.Server
	hub     *events.Hub
	limiter *clientLimiter
}

// New creates a new server instance
func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	store := dictionary.New(cfg.Dictionary, log.WithComponent("dictionary"))
	session := redact.NewSession(store, cfg.Limits, log.WithComponent("redact"))
	hub := events.NewHub(cfg.WebSocket, log.WithComponent("events").Logger)

	router := mux.NewRouter()

	server := &Server{
		config:  cfg,
		logger:  log.WithComponent("server"),
		store:   store,
		session: session,
		router:  router,
		hub:     hub,
		limiter: newClientLimiter(cfg.Server.RateLimit),
	}

	server.setupRoutes()

	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return server, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.handleWebSocket).Methods("GET")
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)

	api.HandleFunc("/anonymize", s.handleAnonymize).Methods("POST")
	api.HandleFunc("/dictionary", s.handleDictionaryList).Methods("GET")
	api.HandleFunc("/dictionary", s.handleDictionaryAdd).Methods("POST")
	api.HandleFunc("/dictionary", s.handleDictionaryClear).Methods("DELETE")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting anonymizer server",
		zap.Int("port", s.config.Server.Port),
		zap.String("dictionary_path", s.config.Dictionary.Path),
	)

	if s.config.WebSocket.Enabled {
		go s.hub.Run()
	}

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping anonymizer server")
	return s.server.Shutdown(ctx)
}

// Router exposes the handler for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{
		"name":"docx-anonymizer",
		"version":"0.1.0",
		"max_file_size_mb":%d,
		"max_files_per_batch":%d,
		"max_keywords":%d
	}`, s.config.Limits.MaxFileSizeMB, s.config.Limits.MaxFilesPerBatch, s.config.Limits.MaxKeywords)
}

// handleWebSocket handles WebSocket connections for the event stream
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.HandleWebSocket(w, r)
}
